package sandbox

import (
	"encoding/json"
	"reflect"
)

// cloneArgs performs a deep copy of an args map.
// It normalizes typed maps/slices into JSON-native shapes (map[string]any, []any).
func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	result := make(map[string]any, len(args))
	for k, v := range args {
		result[k] = cloneValue(v)
	}
	return result
}

// cloneValue recursively copies a value into JSON-native shapes.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return cloneArgs(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = e
		}
		return out
	case string, bool, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val
	case json.Number:
		return val
	default:
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil
			}
			return cloneValue(rv.Elem().Interface())
		}
		if out, err := normalize(val); err == nil {
			return out
		}
		return val
	}
}

// normalize round-trips v through JSON so values produced by interpreted
// code reach the caller as plain maps, slices, strings, float64s, and bools.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
