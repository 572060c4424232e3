package host

import (
	"sync"

	"github.com/go-drift/locate/pkg/platform"
)

type grantState int

const (
	notAsked grantState = iota
	granted
	denied
	deniedForever
)

// permissionStore keeps per-permission grant state with the phone's
// rationale rules: a rationale is wanted only after a plain denial, and
// never once the user chose "never ask again".
type permissionStore struct {
	mu    sync.Mutex
	state map[platform.PermissionID]grantState
}

func newPermissionStore(initial []platform.PermissionID) *permissionStore {
	s := &permissionStore{state: make(map[platform.PermissionID]grantState)}
	for _, id := range initial {
		s.state[id] = granted
	}
	return s
}

func (s *permissionStore) status(id platform.PermissionID) platform.PermissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state[id] {
	case granted:
		return platform.PermissionGranted
	case denied:
		return platform.PermissionDenied
	case deniedForever:
		return platform.PermissionPermanentlyDenied
	default:
		return platform.PermissionNotDetermined
	}
}

func (s *permissionStore) shouldShowRationale(id platform.PermissionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[id] == denied
}

// needsPrompt reports whether a request for id shows a dialog. Granted
// and permanently denied permissions are answered without asking.
func (s *permissionStore) needsPrompt(id platform.PermissionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state[id]
	return st == notAsked || st == denied
}

func (s *permissionStore) set(id platform.PermissionID, st grantState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[id] = st
}

func (s *permissionStore) isGranted(id platform.PermissionID) bool {
	return s.status(id) == platform.PermissionGranted
}
