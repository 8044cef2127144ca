package rowstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// encodeValue converts a field value into something every backend can store.
// Scalars pass through; maps, slices and structs become JSON text.
func encodeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64:
		return val, nil
	case []byte:
		return string(val), nil
	case json.RawMessage:
		return string(val), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field value: %w", err)
		}
		return string(data), nil
	}
}

// encodeRow applies encodeValue to every field.
func encodeRow(r Row) (Row, error) {
	out := make(Row, len(r))
	for k, v := range r {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

// keyString normalizes a key value so 3, int64(3) and "3" address the same row.
func keyString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

// Int reads an integer column. Backends return ints, int64s, float64s
// (JSON) or strings (Redis), all of which are accepted.
func Int(r Row, column string) (int, error) {
	v, ok := r[column]
	if !ok || v == nil {
		return 0, fmt.Errorf("column %s: missing", column)
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int32:
		return int(val), nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", column, err)
		}
		return i, nil
	case []byte:
		i, err := strconv.Atoi(string(val))
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", column, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("column %s: unsupported type %T", column, v)
	}
}

// IntOr reads an integer column, returning def when it is absent.
func IntOr(r Row, column string, def int) (int, error) {
	if v, ok := r[column]; !ok || v == nil {
		return def, nil
	}
	return Int(r, column)
}

// String reads a text column. Absent columns read as the empty string.
func String(r Row, column string) string {
	switch val := r[column].(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// DecodeJSON unmarshals a JSON column into dst.
// Empty or absent columns leave dst untouched and report false.
func DecodeJSON(r Row, column string, dst any) (bool, error) {
	var data []byte
	switch val := r[column].(type) {
	case nil:
		return false, nil
	case string:
		data = []byte(val)
	case []byte:
		data = val
	default:
		enc, err := json.Marshal(val)
		if err != nil {
			return false, fmt.Errorf("column %s: %w", column, err)
		}
		data = enc
	}
	if len(data) == 0 || string(data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("column %s: %w", column, err)
	}
	return true, nil
}
