package domain

import (
	"encoding/json"
	"strings"
)

// CustomFields holds organization-defined extraction fields. Values are
// scalars only: string, float64, bool or nil.
type CustomFields map[string]any

// Set stores v under key after reducing it to a scalar.
// Objects and arrays are kept as their JSON text.
func (c CustomFields) Set(key string, v any) {
	c[key] = ToScalar(v)
}

// Clone returns an independent copy.
func (c CustomFields) Clone() CustomFields {
	if c == nil {
		return nil
	}
	out := make(CustomFields, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Scalars returns a copy with every value passed through ToScalar.
func (c CustomFields) Scalars() CustomFields {
	if c == nil {
		return nil
	}
	out := make(CustomFields, len(c))
	for k, v := range c {
		out.Set(k, v)
	}
	return out
}

// ToScalar reduces an arbitrary decoded JSON value to a scalar.
func ToScalar(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	}
}

// normalizeEnum upper-cases and trims enum input, mapping spaces to underscores.
func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}
