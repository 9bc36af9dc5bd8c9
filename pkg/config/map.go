package config

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Map is a configuration table that remembers the order in which its keys
// appeared in the source document. Deck cards are emitted in that order.
type Map struct {
	keys   []string
	values map[string]interface{}
}

// NewMap returns an empty Map
func NewMap() *Map {
	return &Map{values: make(map[string]interface{})}
}

// Set stores value under key, appending key if it is new
func (m *Map) Set(key string, value interface{}) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key
func (m *Map) Get(key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in document order
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Table returns the nested table stored under key
func (m *Map) Table(key string) (*Map, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	t, ok := v.(*Map)
	return t, ok
}

// List returns the value under key as a list. A scalar is promoted to a
// one-element list.
func (m *Map) List(key string) ([]interface{}, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	return AsList(v), true
}

// AsList promotes a scalar to a one-element list and passes lists through
func AsList(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	default:
		return []interface{}{v}
	}
}

// Floats converts a list of numbers. key is used to name the offending
// entry on failure.
func Floats(key string, values []interface{}) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		if s, isStr := v.(string); isStr {
			return nil, &ConfigurationError{Key: key, Reason: "expected a number, got " + strconv.Quote(s)}
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, &ConfigurationError{Key: key, Reason: err.Error()}
		}
		out[i] = f
	}
	return out, nil
}

// Strings converts a list of scalars to their deck text
func Strings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = Format(v)
	}
	return out
}

// Format renders a scalar or a list the way it appears on a card: lists
// are space-joined, floats use the shortest representation that still
// reads back as a float (so 1.0 stays "1.0").
func Format(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float32:
		return FormatFloat(float64(t))
	case float64:
		return FormatFloat(t)
	case []interface{}:
		return strings.Join(Strings(t), " ")
	case *Map:
		parts := make([]string, 0, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			parts = append(parts, k+"="+Format(val))
		}
		return strings.Join(parts, " ")
	default:
		return cast.ToString(v)
	}
}

// FormatFloat renders f in shortest round-trip form, using positional
// notation for exponents in [-4, 16) and always keeping a decimal point.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
