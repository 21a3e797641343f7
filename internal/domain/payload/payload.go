// Package payload defines the named-field mappings exchanged between agents.
package payload

import "maps"

// Fields is a mapping of named primitive values: strings or string lists.
// Delegation requests and structured decisions are both Fields whose shape
// is fixed by the schema registry.
type Fields map[string]any

// String returns the named field as a string, or "" when absent or not a
// string.
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Strings returns the named field as a string list. JSON-decoded lists
// ([]any) are converted; non-string elements are skipped.
func (f Fields) Strings(name string) []string {
	switch v := f[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Has reports whether the named field is present.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Clone returns a shallow copy. String lists are copied.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := maps.Clone(f)
	for k, v := range out {
		if l, ok := v.([]string); ok {
			out[k] = append([]string(nil), l...)
		}
	}
	return out
}
