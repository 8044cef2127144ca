package widget

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// OptionKind is the value type accepted for an option key.
type OptionKind int

const (
	KindString OptionKind = iota
	KindInt
	KindFloat
	KindBool
)

func (k OptionKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the kind by name so templates read naturally.
func (k OptionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// OptionSpec enumerates the keys a settings or configs mapping may hold.
type OptionSpec map[string]OptionKind

// Options is a validated key-to-value mapping. Values are string, int,
// float64 or bool, matching the option set it was normalized against.
type Options map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// SettingsSpec is the display option set shared by every widget instance.
var SettingsSpec = OptionSpec{
	"background":        KindString,
	"backgroundOpacity": KindFloat,
	"color":             KindString,
	"fontSize":          KindInt,
	"titlebar":          KindBool,
	"borders":           KindBool,
	"rotation":          KindInt,
	"z":                 KindInt,
}

// Keys returns the declared keys in sorted order.
func (s OptionSpec) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize checks every key of in against the declared options and converts values to
// the declared kind. JSON numbers arrive as float64 and are narrowed to int
// when the key is KindInt and the value is integral.
func (s OptionSpec) Normalize(in map[string]any) (Options, error) {
	out := make(Options, len(in))
	for key, raw := range in {
		kind, ok := s[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidOption, key)
		}
		v, err := coerce(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOption, key, err)
		}
		out[key] = v
	}
	return out, nil
}

func coerce(kind OptionKind, raw any) (any, error) {
	switch kind {
	case KindString:
		if v, ok := raw.(string); ok {
			return v, nil
		}
	case KindBool:
		if v, ok := raw.(bool); ok {
			return v, nil
		}
	case KindInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return intFrom64(v)
		case float64:
			if v != math.Trunc(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%v is not an integer", v)
			}
			// -MinInt is a power of two, so both bounds are exact as float64.
			if v < float64(math.MinInt) || v >= -float64(math.MinInt) {
				return nil, fmt.Errorf("%v is out of range", v)
			}
			return int(v), nil
		case json.Number:
			i, err := v.Int64()
			if err != nil {
				return nil, err
			}
			return intFrom64(i)
		}
	case KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			return v.Float64()
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, raw)
}

func intFrom64(v int64) (any, error) {
	if int64(int(v)) != v {
		return nil, fmt.Errorf("%d is out of range", v)
	}
	return int(v), nil
}
