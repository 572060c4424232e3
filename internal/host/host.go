// Package host is a terminal stand-in for the phone shell. It implements
// platform.NativeBridge: permission dialogs, availability checks, dialogs
// and toasts become terminal prompts, location updates come from a
// sources.Provider and the location view is rendered as a text box.
package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-drift/locate/pkg/errors"
	"github.com/go-drift/locate/pkg/platform"
	"github.com/go-drift/locate/pkg/sources"
)

// Channel names served by the host.
const (
	PermissionsChannel    = "locate/permissions"
	PermissionResults     = "locate/permissions/results"
	LocationChannel       = "locate/location"
	LocationUpdates       = "locate/location/updates"
	AvailabilityChannel   = "locate/availability"
	DialogsChannel        = "locate/dialogs"
	ViewChannel           = "locate/view"
	LifecycleEvents       = "locate/lifecycle/events"
	permissionPromptTitle = "Allow locate to access this device's location?"
)

// Options configure a Host.
type Options struct {
	// Provider supplies fixes for update subscriptions.
	Provider sources.Provider
	// Granted permissions start out granted.
	Granted []platform.PermissionID
	// Availability is the code isAvailable answers with until the user
	// resolves it through the error dialog.
	Availability platform.AvailabilityCode
	// Out receives the rendered UI. Nil discards it.
	Out io.Writer
	// Logger receives host diagnostics.
	Logger zerolog.Logger
}

// Host implements platform.NativeBridge on a terminal.
type Host struct {
	term    *Terminal
	perms   *permissionStore
	updates *updateManager
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// prompts bounds terminal dialogs; CancelPrompts ends it early.
	prompts       context.Context
	cancelPrompts context.CancelFunc

	mu           sync.Mutex
	availability platform.AvailabilityCode
	streams      map[string]bool
	views        map[string]string
	lifecycle    platform.LifecycleState

	requests sync.WaitGroup
	reqMu    sync.Mutex
}

// New creates a host. Call Close to stop its pollers.
func New(opts Options) *Host {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	provider := opts.Provider
	if provider == nil {
		provider = sources.Static{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	prompts, cancelPrompts := context.WithCancel(ctx)
	h := &Host{
		term:          NewTerminal(out),
		perms:         newPermissionStore(opts.Granted),
		log:           opts.Logger.With().Str("component", "host").Logger(),
		ctx:           ctx,
		cancel:        cancel,
		prompts:       prompts,
		cancelPrompts: cancelPrompts,
		availability:  opts.Availability,
		streams:       make(map[string]bool),
		views:         make(map[string]string),
		lifecycle:     platform.LifecycleStateResumed,
	}
	h.updates = newUpdateManager(provider, h.emitFix, h.log)
	return h
}

// Terminal returns the host's terminal.
func (h *Host) Terminal() *Terminal {
	return h.term
}

// CancelPrompts answers every open and future dialog with an error. The
// pollers keep running.
func (h *Host) CancelPrompts() {
	h.cancelPrompts()
}

// Close stops every poller and cancels pending prompts.
func (h *Host) Close() {
	h.cancel()
	h.updates.stopAll()
	h.requests.Wait()
}

// InvokeMethod implements platform.NativeBridge.
func (h *Host) InvokeMethod(channel, method string, argsData []byte) ([]byte, error) {
	codec := platform.DefaultCodec()
	decoded, err := codec.Decode(argsData)
	if err != nil {
		return nil, err
	}
	m, _ := decoded.(map[string]any)

	var result any
	switch channel {
	case PermissionsChannel:
		result, err = h.handlePermissions(method, m)
	case LocationChannel:
		result, err = h.handleLocation(method, m)
	case AvailabilityChannel:
		result, err = h.handleAvailability(method, m)
	case DialogsChannel:
		result, err = h.handleDialogs(method, m)
	case ViewChannel:
		result, err = h.handleView(method, m)
	default:
		err = fmt.Errorf("%w: %s", platform.ErrChannelNotFound, channel)
	}
	if err != nil {
		return nil, err
	}
	return codec.Encode(result)
}

// StartEventStream implements platform.NativeBridge.
func (h *Host) StartEventStream(channel string) error {
	h.mu.Lock()
	h.streams[channel] = true
	h.mu.Unlock()
	return nil
}

// StopEventStream implements platform.NativeBridge.
func (h *Host) StopEventStream(channel string) error {
	h.mu.Lock()
	delete(h.streams, channel)
	h.mu.Unlock()
	return nil
}

func (h *Host) streaming(channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streams[channel]
}

// emit sends payload to Go listeners of channel. Channels nobody listens
// to are skipped.
func (h *Host) emit(channel string, payload any) {
	if !h.streaming(channel) {
		h.log.Debug().Str("channel", channel).Msg("event dropped: stream not started")
		return
	}
	data, err := platform.DefaultCodec().Encode(payload)
	if err != nil {
		errors.Report(&errors.Error{Op: "host.emit", Kind: errors.KindPlatform, Channel: channel, Err: err})
		return
	}
	if err := platform.HandleEvent(channel, data); err != nil {
		h.log.Debug().Err(err).Str("channel", channel).Msg("event not delivered")
	}
}

func (h *Host) emitFix(id string, fix platform.LocationFix) {
	h.emit(LocationUpdates, platform.UpdatePayload(id, fix))
}

// SetLifecycle moves the screen to state and notifies Go.
func (h *Host) SetLifecycle(state platform.LifecycleState) {
	h.mu.Lock()
	if h.lifecycle == state {
		h.mu.Unlock()
		return
	}
	h.lifecycle = state
	h.mu.Unlock()
	h.log.Debug().Str("state", string(state)).Msg("lifecycle")
	h.emit(LifecycleEvents, map[string]any{"state": string(state)})
}

// Revoke withdraws a permission, as a user would from the system settings.
func (h *Host) Revoke(id platform.PermissionID) {
	h.perms.set(id, denied)
}

// Grant grants a permission without asking.
func (h *Host) Grant(id platform.PermissionID) {
	h.perms.set(id, granted)
}

// View returns the current text of view id.
func (h *Host) View(id string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.views[id]
}

// ActiveSubscriptions returns the number of running update subscriptions.
func (h *Host) ActiveSubscriptions() int {
	return h.updates.active()
}

// ReadInput reads lines from r until "quit", EOF or ctx ends, returning
// io.EOF when the input ran out. Lines answer the pending prompt if there
// is one; otherwise they are host commands:
//
//	pause, resume      move the screen to the background and back
//	revoke <perm>      withdraw fine or coarse
//	grant <perm>       grant fine or coarse
//	quit               return from ReadInput
func (h *Host) ReadInput(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		errc <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if h.term.Feed(line) {
				continue
			}
			if quit := h.command(line); quit {
				return nil
			}
		}
	}
}

func (h *Host) command(line string) (quit bool) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "q", "quit", "exit":
		return true
	case "p", "pause":
		h.SetLifecycle(platform.LifecycleStatePaused)
	case "r", "resume":
		h.SetLifecycle(platform.LifecycleStateResumed)
	case "revoke", "grant":
		if len(fields) < 2 {
			h.term.Println("usage: " + fields[0] + " fine|coarse")
			return false
		}
		id, ok := shortPermission(fields[1])
		if !ok {
			h.term.Println("unknown permission " + fields[1])
			return false
		}
		if fields[0] == "revoke" {
			h.Revoke(id)
			h.term.Println("revoked " + string(id))
		} else {
			h.Grant(id)
			h.term.Println("granted " + string(id))
		}
	default:
		h.term.Println("commands: pause, resume, revoke fine|coarse, grant fine|coarse, quit")
	}
	return false
}

func shortPermission(name string) (platform.PermissionID, bool) {
	switch name {
	case "fine":
		return platform.AccessFineLocation, true
	case "coarse":
		return platform.AccessCoarseLocation, true
	}
	return "", false
}
