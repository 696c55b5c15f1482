package entities

import "encoding/json"

// CloneValue returns a structural copy of JSON-like data.
// Maps and slices are copied recursively; other values are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case Query:
		return Query(CloneMap(t))
	case Properties:
		return Properties(CloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			out[i] = CloneMap(item)
		}
		return out
	case []Query:
		out := make([]Query, len(t))
		for i, item := range t {
			out[i] = Query(CloneMap(item))
		}
		return out
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}

// CloneMap returns a deep copy of m
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// NormalizeMap returns a copy of m in the shape it decodes to from JSON:
// numbers become float64, times RFC3339 strings, typed slices []any.
func NormalizeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
