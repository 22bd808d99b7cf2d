package assertions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Matcher decides whether an actual value is acceptable. String describes
// the expectation for diagnostics, e.g. `equal to "2018-01-01"`.
type Matcher interface {
	Matches(actual any) bool
	String() string
}

type matcherFunc struct {
	desc  string
	match func(actual any) bool
}

func (m matcherFunc) Matches(actual any) bool { return m.match(actual) }
func (m matcherFunc) String() string          { return m.desc }

func newMatcher(desc string, match func(actual any) bool) Matcher {
	return matcherFunc{desc: desc, match: match}
}

// EqualTo matches values that are deeply equal to expected once both are in
// their JSON form: any Go number equals the same float64, and structs or
// typed slices compare by their JSON encoding. There is no string fallback,
// so EqualTo(111) does not match "111".
func EqualTo(expected any) Matcher {
	want := normalize(expected)
	return newMatcher("equal to "+describe(expected), func(actual any) bool {
		return reflect.DeepEqual(normalize(actual), want)
	})
}

func Not(m Matcher) Matcher {
	return newMatcher("not "+m.String(), func(actual any) bool {
		return !m.Matches(actual)
	})
}

// Is returns v when it is already a Matcher and EqualTo(v) otherwise.
func Is(v any) Matcher {
	if m, ok := v.(Matcher); ok {
		return m
	}
	return EqualTo(v)
}

// Anything matches every value, including null.
func Anything() Matcher {
	return newMatcher("anything", func(any) bool { return true })
}

func NotNull() Matcher {
	return newMatcher("not null", func(actual any) bool { return actual != nil })
}

func Null() Matcher {
	return newMatcher("null", func(actual any) bool { return actual == nil })
}

func GreaterThan(n any) Matcher {
	return compareNumeric(">", n, func(a, b float64) bool { return a > b })
}

func GreaterOrEqual(n any) Matcher {
	return compareNumeric(">=", n, func(a, b float64) bool { return a >= b })
}

func LessThan(n any) Matcher {
	return compareNumeric("<", n, func(a, b float64) bool { return a < b })
}

func LessOrEqual(n any) Matcher {
	return compareNumeric("<=", n, func(a, b float64) bool { return a <= b })
}

func compareNumeric(op string, expected any, cmp func(a, b float64) bool) Matcher {
	want, ok := toFloat64(expected)
	return newMatcher(fmt.Sprintf("a number %s %v", op, describe(expected)), func(actual any) bool {
		got, aOk := toFloat64(actual)
		return ok && aOk && cmp(got, want)
	})
}

func ContainsString(s string) Matcher {
	return stringMatcher("a string containing "+strconv.Quote(s), func(a string) bool {
		return strings.Contains(a, s)
	})
}

func StartsWith(prefix string) Matcher {
	return stringMatcher("a string starting with "+strconv.Quote(prefix), func(a string) bool {
		return strings.HasPrefix(a, prefix)
	})
}

func EndsWith(suffix string) Matcher {
	return stringMatcher("a string ending with "+strconv.Quote(suffix), func(a string) bool {
		return strings.HasSuffix(a, suffix)
	})
}

// MatchesPattern matches strings against a regular expression. Surrounding
// slashes, as in /^\d+$/, are stripped. It panics on an invalid pattern.
func MatchesPattern(pattern string) Matcher {
	re := regexp.MustCompile(trimSlashes(pattern))
	return stringMatcher("a string matching /"+re.String()+"/", re.MatchString)
}

func trimSlashes(pattern string) string {
	if len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		return pattern[1 : len(pattern)-1]
	}
	return pattern
}

func stringMatcher(desc string, match func(string) bool) Matcher {
	return newMatcher(desc, func(actual any) bool {
		s, ok := actual.(string)
		return ok && match(s)
	})
}

// Contains matches a string containing v or an array with an item equal to v.
func Contains(v any) Matcher {
	return newMatcher("containing "+describe(v), func(actual any) bool {
		switch a := normalize(actual).(type) {
		case string:
			s, ok := v.(string)
			return ok && strings.Contains(a, s)
		case []any:
			return HasItem(v).Matches(a)
		}
		return false
	})
}

// HasLength matches strings, arrays and objects of length n.
func HasLength(n int) Matcher {
	return newMatcher(fmt.Sprintf("length %d", n), func(actual any) bool {
		return computeLength(actual) == n
	})
}

// HasItem matches arrays with at least one item matching v (via Is).
func HasItem(v any) Matcher {
	m := Is(v)
	return newMatcher("an array with an item "+m.String(), func(actual any) bool {
		items, ok := normalize(actual).([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if m.Matches(item) {
				return true
			}
		}
		return false
	})
}

// Every matches arrays whose items all match v. An empty array matches.
func Every(v any) Matcher {
	m := Is(v)
	return newMatcher("an array where every item is "+m.String(), func(actual any) bool {
		items, ok := normalize(actual).([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !m.Matches(item) {
				return false
			}
		}
		return true
	})
}

func OneOf(values ...any) Matcher {
	matchers := make([]Matcher, len(values))
	descs := make([]string, len(values))
	for i, v := range values {
		matchers[i] = EqualTo(v)
		descs[i] = describe(v)
	}
	return newMatcher("one of ["+strings.Join(descs, ", ")+"]", func(actual any) bool {
		for _, m := range matchers {
			if m.Matches(actual) {
				return true
			}
		}
		return false
	})
}

func AllOf(matchers ...Matcher) Matcher {
	return newMatcher(joinDescriptions(matchers, " and "), func(actual any) bool {
		for _, m := range matchers {
			if !m.Matches(actual) {
				return false
			}
		}
		return true
	})
}

func AnyOf(matchers ...Matcher) Matcher {
	return newMatcher(joinDescriptions(matchers, " or "), func(actual any) bool {
		for _, m := range matchers {
			if m.Matches(actual) {
				return true
			}
		}
		return false
	})
}

func joinDescriptions(matchers []Matcher, sep string) string {
	descs := make([]string, len(matchers))
	for i, m := range matchers {
		descs[i] = "(" + m.String() + ")"
	}
	return strings.Join(descs, sep)
}

// TypeOf matches values of the named JSON type: null, boolean, number,
// string, array or object.
func TypeOf(name string) Matcher {
	return newMatcher("of type "+name, func(actual any) bool {
		return typeName(actual) == name
	})
}

func typeName(v any) string {
	switch normalize(v).(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

// normalize converts v to the shape encoding/json decodes into: numbers
// become float64, and anything that is not already a JSON value goes through
// a JSON round trip.
func normalize(v any) any {
	switch n := v.(type) {
	case nil, bool, string, float64:
		return v
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[k] = normalize(item)
		}
		return out
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// describe renders v for diagnostics in its JSON form.
func describe(v any) string {
	if m, ok := v.(Matcher); ok {
		return m.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	}
	if actual == nil {
		return -1
	}
	rv := reflect.ValueOf(actual)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return -1
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := normalize(v).(type) {
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat64(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
