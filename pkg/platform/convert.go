package platform

import "time"

// toNumber narrows any numeric value the JSON or CBOR codec can produce.
// JSON yields float64 throughout; CBOR keeps the integer width it was sent
// with.
func toNumber[T int64 | float64](v any) (T, bool) {
	switch n := v.(type) {
	case float64:
		return T(n), true
	case float32:
		return T(n), true
	case int:
		return T(n), true
	case int8:
		return T(n), true
	case int16:
		return T(n), true
	case int32:
		return T(n), true
	case int64:
		return T(n), true
	case uint:
		return T(n), true
	case uint8:
		return T(n), true
	case uint16:
		return T(n), true
	case uint32:
		return T(n), true
	case uint64:
		return T(n), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool)     { return toNumber[int64](v) }
func toFloat64(v any) (float64, bool) { return toNumber[float64](v) }

func parseString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// parseBool accepts booleans, "true"/"false" and 0/1, since hosts differ
// in how they encode flags.
func parseBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	n, ok := toInt64(value)
	return ok && n != 0
}

// parseMap returns nil for anything that is not a string-keyed map.
// Non-string keys from a CBOR peer are dropped.
func parseMap(value any) map[string]any {
	switch m := value.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			if s, ok := k.(string); ok {
				out[s] = v
			}
		}
		return out
	}
	return nil
}

// parseList treats a missing value as an empty list.
func parseList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case nil:
		return nil, true
	}
	return nil, false
}

// parseTime reads epoch milliseconds or an RFC 3339 string. Anything else
// is the zero time.
func parseTime(value any) time.Time {
	if s, ok := value.(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	millis, ok := toInt64(value)
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}
