package tmpl

import (
	"fmt"
	"sort"
	"strconv"
)

// Value is the dynamic type every expression evaluates to: nil, bool,
// int64, float64, string, []Value, or map[string]Value.
type Value any

// Truthy implements Jinja-style truthiness for `when` conditions and
// boolean operators.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int64:
		return x != 0
	case float64:
		return x != 0
	case []Value:
		return len(x) > 0
	case map[string]Value:
		return len(x) > 0
	default:
		return true
	}
}

// Stringify renders a Value the way it is interpolated into a string field.
func Stringify(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []Value:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Stringify(e)
		}
		return fmt.Sprint(parts)
	default:
		return fmt.Sprint(x)
	}
}

// AsString coerces v to a string, erroring on shapes that have no sensible
// string-like representation (sequences, mappings).
func AsString(v Value) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case nil:
		return "", nil
	case bool, int64, float64:
		return Stringify(x), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

// AsList coerces v to a []Value, the contract `foreach` and filters like
// sort/uniq/flatten rely on.
func AsList(v Value) ([]Value, error) {
	switch x := v.(type) {
	case []Value:
		return x, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected an iterable, got %T", v)
	}
}

// Compare orders two values for sort/comparison operators. Strings compare
// lexicographically; numbers compare numerically; mixed types compare by
// their stringified form as a last resort so sort never panics.
func Compare(a, b Value) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := Stringify(a), Stringify(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// SortValues returns a stable, lexicographically/numerically sorted copy,
// the ordering the `sort` filter relies on for determinism.
func SortValues(vs []Value) []Value {
	out := make([]Value, len(vs))
	copy(out, vs)
	sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out
}

// Equal reports deep equality for the `==`/`!=`/`in` operators.
func Equal(a, b Value) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
