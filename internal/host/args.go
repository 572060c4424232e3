package host

import "fmt"

// args reads fields of a decoded method-call argument map. Numbers come
// back as float64 from JSON and as int64 or uint64 from CBOR.
type args map[string]any

func (a args) str(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a args) int64(key string) int64 {
	switch n := a[key].(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func (a args) strings(key string) ([]string, error) {
	list, ok := a[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected list, got %T", key, a[key])
	}
	out := make([]string, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected string, got %T", key, i, v)
		}
		out[i] = s
	}
	return out, nil
}
