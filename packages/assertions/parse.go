package assertions

import (
	"fmt"
	"regexp"
)

// ParseMatcher builds a matcher from an operator name and its operand, as
// written in scenario files and on the command line.
//
//	==  !=  >  >=  <  <=  contains  !contains  startsWith  endsWith
//	matches  exists  null  notNull  length  includes  !includes
//	in  !in  type  each
//
// "in" takes an array operand. "each" takes either a plain value or a map
// with "operator" and "value" applied to every item.
func ParseMatcher(op string, value any) (Matcher, error) {
	parse, ok := operators[op]
	if !ok {
		return nil, fmt.Errorf("unknown operator: %s", op)
	}
	return parse(op, value)
}

type parseFunc func(op string, value any) (Matcher, error)

// operators maps every operator name and alias to its parser.
var operators = map[string]parseFunc{}

func init() {
	register := func(parse parseFunc, names ...string) {
		for _, name := range names {
			operators[name] = parse
		}
	}
	plain := func(build func(any) Matcher) parseFunc {
		return func(_ string, value any) (Matcher, error) {
			return build(value), nil
		}
	}
	negated := func(build func(any) Matcher) parseFunc {
		return func(_ string, value any) (Matcher, error) {
			return Not(build(value)), nil
		}
	}
	numeric := func(build func(any) Matcher) parseFunc {
		return func(op string, value any) (Matcher, error) {
			return numericOperand(op, value, build)
		}
	}
	text := func(build func(string) Matcher) parseFunc {
		return func(_ string, value any) (Matcher, error) {
			return build(fmt.Sprintf("%v", value)), nil
		}
	}
	constant := func(build func() Matcher) parseFunc {
		return func(string, any) (Matcher, error) {
			return build(), nil
		}
	}
	oneOf := func(negate bool) parseFunc {
		return func(op string, value any) (Matcher, error) {
			items, ok := normalize(value).([]any)
			if !ok {
				return nil, fmt.Errorf("expected array for '%s' operator, got %T", op, value)
			}
			if negate {
				return Not(OneOf(items...)), nil
			}
			return OneOf(items...), nil
		}
	}

	register(plain(EqualTo), "==", "equals", "eq")
	register(negated(EqualTo), "!=", "notEquals", "ne")
	register(numeric(GreaterThan), ">", "gt")
	register(numeric(GreaterOrEqual), ">=", "gte")
	register(numeric(LessThan), "<", "lt")
	register(numeric(LessOrEqual), "<=", "lte")
	register(plain(Contains), "contains")
	register(negated(Contains), "!contains", "notContains")
	register(text(StartsWith), "startsWith")
	register(text(EndsWith), "endsWith")
	register(parseMatches, "matches")
	register(constant(Anything), "exists")
	register(constant(Null), "null")
	register(constant(NotNull), "notNull")
	register(parseLength, "length")
	register(plain(HasItem), "includes")
	register(negated(HasItem), "!includes", "notIncludes")
	register(oneOf(false), "in")
	register(oneOf(true), "!in", "notIn")
	register(text(TypeOf), "type")
	register(func(_ string, value any) (Matcher, error) { return parseEach(value) }, "each")
}

func parseMatches(_ string, value any) (Matcher, error) {
	pattern := trimSlashes(fmt.Sprintf("%v", value))
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %v", err)
	}
	return MatchesPattern(pattern), nil
}

func parseLength(_ string, value any) (Matcher, error) {
	n, ok := toInt(value)
	if !ok {
		return nil, fmt.Errorf("expected length must be a number, got %v", value)
	}
	return HasLength(n), nil
}

func numericOperand(op string, value any, build func(any) Matcher) (Matcher, error) {
	if _, ok := toFloat64(value); !ok {
		return nil, fmt.Errorf("operator %s needs a number, got %v", op, value)
	}
	return build(value), nil
}

func parseEach(value any) (Matcher, error) {
	spec, ok := value.(map[string]any)
	if ok {
		op, hasOp := spec["operator"]
		val, hasVal := spec["value"]
		if hasOp && hasVal {
			m, err := ParseMatcher(fmt.Sprintf("%v", op), val)
			if err != nil {
				return nil, fmt.Errorf("each: %w", err)
			}
			return Every(m), nil
		}
	}
	return Every(value), nil
}

// KnownOperator reports whether ParseMatcher accepts op. Scenario files are
// checked with it before their operands are resolved.
func KnownOperator(op string) bool {
	_, ok := operators[op]
	return ok
}
