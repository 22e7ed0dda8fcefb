package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The emulator supports the filter subset the write path can produce plus
// simple read predicates: and-joined comparisons on properties against
// string, number or boolean literals.

type filterPredicate func(Entity) bool

type condition struct {
	property string
	operator string
	literal  literal
}

type literal struct {
	str    string
	num    float64
	b      bool
	isStr  bool
	isBool bool
}

func compileFilter(filter string) (filterPredicate, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return func(Entity) bool { return true }, nil
	}

	tokens, err := scanFilter(filter)
	if err != nil {
		return nil, err
	}

	conditions := []condition{}

	for i := 0; i < len(tokens); i += 4 {
		if len(tokens)-i < 3 {
			return nil, fmt.Errorf("incomplete filter condition near %q", strings.Join(tokens[i:], " "))
		}

		cond, err := parseCondition(tokens[i], tokens[i+1], tokens[i+2])
		if err != nil {
			return nil, err
		}

		conditions = append(conditions, cond)

		if i+3 < len(tokens) && !strings.EqualFold(tokens[i+3], "and") {
			return nil, fmt.Errorf("unsupported filter connective: %s", tokens[i+3])
		}
	}

	return func(entity Entity) bool {
		for _, cond := range conditions {
			if !cond.matches(entity) {
				return false
			}
		}

		return true
	}, nil
}

// scanFilter splits a filter into tokens, keeping quoted string literals
// whole. Quote marks stay on string tokens so literal kinds remain
// distinguishable.
func scanFilter(filter string) ([]string, error) {
	tokens := []string{}
	i := 0

	for i < len(filter) {
		switch {
		case filter[i] == ' ' || filter[i] == '\t':
			i++
		case filter[i] == '\'':
			start := i
			i++

			for i < len(filter) {
				if filter[i] != '\'' {
					i++
					continue
				}

				// Doubled quote is an escaped quote inside the literal.
				if i+1 < len(filter) && filter[i+1] == '\'' {
					i += 2
					continue
				}

				break
			}

			if i >= len(filter) {
				return nil, fmt.Errorf("unterminated string literal in filter: %s", filter[start:])
			}

			i++
			tokens = append(tokens, filter[start:i])
		default:
			start := i
			for i < len(filter) && filter[i] != ' ' && filter[i] != '\t' {
				i++
			}

			tokens = append(tokens, filter[start:i])
		}
	}

	return tokens, nil
}

func parseCondition(property, operator, rawLiteral string) (condition, error) {
	switch operator {
	case "eq", "ne", "gt", "ge", "lt", "le":
	default:
		return condition{}, fmt.Errorf("unsupported filter operator: %s", operator)
	}

	lit, err := parseLiteral(rawLiteral)
	if err != nil {
		return condition{}, err
	}

	return condition{property: property, operator: operator, literal: lit}, nil
}

func parseLiteral(raw string) (literal, error) {
	if strings.HasPrefix(raw, "'") {
		if len(raw) < 2 || !strings.HasSuffix(raw, "'") {
			return literal{}, fmt.Errorf("malformed string literal: %s", raw)
		}

		unquoted := strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")

		return literal{str: unquoted, isStr: true}, nil
	}

	switch raw {
	case "true":
		return literal{b: true, isBool: true}, nil
	case "false":
		return literal{isBool: true}, nil
	}

	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return literal{}, fmt.Errorf("unsupported filter literal: %s", raw)
	}

	return literal{num: num}, nil
}

func (c condition) matches(entity Entity) bool {
	value, ok := entity[c.property]
	if !ok {
		return false
	}

	switch {
	case c.literal.isStr:
		s, ok := value.(string)
		if !ok {
			return false
		}

		return applyOrder(strings.Compare(s, c.literal.str), c.operator)
	case c.literal.isBool:
		b, ok := value.(bool)
		if !ok {
			return false
		}

		switch c.operator {
		case "eq":
			return b == c.literal.b
		case "ne":
			return b != c.literal.b
		}

		return false
	default:
		num, ok := numericValue(value)
		if !ok {
			return false
		}

		return applyOrder(compareFloats(num, c.literal.num), c.operator)
	}
}

func applyOrder(cmp int, operator string) bool {
	switch operator {
	case "eq":
		return cmp == 0
	case "ne":
		return cmp != 0
	case "gt":
		return cmp > 0
	case "ge":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "le":
		return cmp <= 0
	}

	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

// numericValue widens any stored numeric shape to float64. Entities decoded
// from request JSON carry float64, entities built in-process may carry
// fixed-width integers.
func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}

	return 0, false
}
