package expr

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// builtin is one allowlisted pure function. maxArgs of -1 means variadic.
type builtin struct {
	minArgs int
	maxArgs int
	call    func(args []any) (any, error)
}

func (b builtin) checkArity(name string, got int) error {
	if got < b.minArgs || (b.maxArgs >= 0 && got > b.maxArgs) {
		return fmt.Errorf("formengine/expr: %s: wrong argument count %d", name, got)
	}
	return nil
}

// builtins is the fixed allowlist of functions evaluated in-process. Every
// other call name goes through the native function bridge.
var builtins = map[string]builtin{
	"length": {1, 1, func(args []any) (any, error) {
		switch v := args[0].(type) {
		case nil:
			return float64(0), nil
		case string:
			return float64(utf8.RuneCountInString(v)), nil
		case []any:
			return float64(len(v)), nil
		case []string:
			return float64(len(v)), nil
		case map[string]any:
			return float64(len(v)), nil
		default:
			return float64(utf8.RuneCountInString(coerceString(v))), nil
		}
	}},
	"upper": {1, 1, func(args []any) (any, error) {
		return strings.ToUpper(coerceString(args[0])), nil
	}},
	"lower": {1, 1, func(args []any) (any, error) {
		return strings.ToLower(coerceString(args[0])), nil
	}},
	"trim": {1, 1, func(args []any) (any, error) {
		return strings.TrimSpace(coerceString(args[0])), nil
	}},
	"substring": {2, 3, func(args []any) (any, error) {
		runes := []rune(coerceString(args[0]))
		start, ok := coerceNumber(args[1])
		if !ok {
			return nil, fmt.Errorf("formengine/expr: substring: start is not a number")
		}
		end := float64(len(runes))
		if len(args) == 3 {
			if end, ok = coerceNumber(args[2]); !ok {
				return nil, fmt.Errorf("formengine/expr: substring: end is not a number")
			}
		}
		s := clampIndex(int(start), len(runes))
		e := clampIndex(int(end), len(runes))
		if s > e {
			return "", nil
		}
		return string(runes[s:e]), nil
	}},
	"replace": {3, 3, func(args []any) (any, error) {
		return strings.ReplaceAll(coerceString(args[0]), coerceString(args[1]), coerceString(args[2])), nil
	}},
	"contains": {2, 2, func(args []any) (any, error) {
		if list, ok := args[0].([]any); ok {
			for _, item := range list {
				if equalValues(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		}
		return strings.Contains(coerceString(args[0]), coerceString(args[1])), nil
	}},
	"indexOf": {2, 2, func(args []any) (any, error) {
		if list, ok := args[0].([]any); ok {
			for i, item := range list {
				if equalValues(item, args[1]) {
					return float64(i), nil
				}
			}
			return float64(-1), nil
		}
		return float64(strings.Index(coerceString(args[0]), coerceString(args[1]))), nil
	}},
	"min": {1, -1, func(args []any) (any, error) {
		return foldNumbers("min", args, math.Min)
	}},
	"max": {1, -1, func(args []any) (any, error) {
		return foldNumbers("max", args, math.Max)
	}},
	"abs": {1, 1, func(args []any) (any, error) {
		n, ok := coerceNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("formengine/expr: abs: not a number")
		}
		return math.Abs(n), nil
	}},
	"round": {1, 1, func(args []any) (any, error) {
		n, ok := coerceNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("formengine/expr: round: not a number")
		}
		return math.Round(n), nil
	}},
	"now": {0, 0, func([]any) (any, error) {
		return time.Now(), nil
	}},
	"formatDate": {2, 2, func(args []any) (any, error) {
		t, err := coerceTime(args[0])
		if err != nil {
			return nil, err
		}
		return t.Format(coerceString(args[1])), nil
	}},
	"dateDiff": {2, 3, func(args []any) (any, error) {
		from, err := coerceTime(args[0])
		if err != nil {
			return nil, err
		}
		to, err := coerceTime(args[1])
		if err != nil {
			return nil, err
		}
		unit := "days"
		if len(args) == 3 {
			unit = strings.ToLower(coerceString(args[2]))
		}
		diff := to.Sub(from)
		switch unit {
		case "days":
			return diff.Hours() / 24, nil
		case "hours":
			return diff.Hours(), nil
		case "minutes":
			return diff.Minutes(), nil
		case "seconds":
			return diff.Seconds(), nil
		default:
			return nil, fmt.Errorf("formengine/expr: dateDiff: unknown unit %q", unit)
		}
	}},
}

func clampIndex(idx, length int) int {
	if idx < 0 {
		return 0
	}
	if idx > length {
		return length
	}
	return idx
}

func foldNumbers(name string, args []any, fold func(a, b float64) float64) (any, error) {
	acc, ok := coerceNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("formengine/expr: %s: argument 0 is not a number", name)
	}
	for i, arg := range args[1:] {
		n, ok := coerceNumber(arg)
		if !ok {
			return nil, fmt.Errorf("formengine/expr: %s: argument %d is not a number", name, i+1)
		}
		acc = fold(acc, n)
	}
	return acc, nil
}

func coerceTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("formengine/expr: cannot parse time %q", v)
	default:
		return time.Time{}, fmt.Errorf("formengine/expr: cannot coerce %T to time", value)
	}
}
