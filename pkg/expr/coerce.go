package expr

import (
	"fmt"
	"strconv"
	"strings"
)

func truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func coerceBool(value any) (bool, bool) {
	if value == nil {
		return false, false
	}
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return parsed, true
		}
		return strings.TrimSpace(v) != "", true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		return v != 0, true
	default:
		return truthy(value), true
	}
}

func coerceNumber(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}

// equalValues compares with type-aware coercion: bools win, then numbers,
// then string comparison as the fallback so mixed snapshot/literal types stay
// forgiving.
func equalValues(left, right any) bool {
	if left == nil && right == nil {
		return true
	}
	if left == nil || right == nil {
		return coerceString(left) == coerceString(right)
	}
	if _, ok := left.(bool); ok {
		lb, _ := coerceBool(left)
		rb, _ := coerceBool(right)
		return lb == rb
	}
	if _, ok := right.(bool); ok {
		lb, _ := coerceBool(left)
		rb, _ := coerceBool(right)
		return lb == rb
	}
	if ln, ok := coerceNumber(left); ok {
		if rn, ok := coerceNumber(right); ok {
			return ln == rn
		}
	}
	return coerceString(left) == coerceString(right)
}

// orderValues returns -1/0/1 and whether the operands are orderable. Numbers
// order numerically when both sides coerce; everything else falls back to
// string ordering.
func orderValues(left, right any) (int, bool) {
	if left == nil || right == nil {
		return 0, false
	}
	if ln, ok := coerceNumber(left); ok {
		if rn, ok := coerceNumber(right); ok {
			switch {
			case ln < rn:
				return -1, true
			case ln > rn:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	ls, rs := coerceString(left), coerceString(right)
	switch {
	case ls < rs:
		return -1, true
	case ls > rs:
		return 1, true
	default:
		return 0, true
	}
}
