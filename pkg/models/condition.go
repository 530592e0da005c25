// Package models provides condition evaluation for trigger filters and
// flow-control steps.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ConditionType identifies how a condition is evaluated.
type ConditionType string

const (
	ConditionFieldEquals      ConditionType = "field_equals"
	ConditionFieldNotEquals   ConditionType = "field_not_equals"
	ConditionFieldContains    ConditionType = "field_contains"
	ConditionFieldMatches     ConditionType = "field_matches"
	ConditionFieldGreaterThan ConditionType = "field_greater_than"
	ConditionFieldLessThan    ConditionType = "field_less_than"
	ConditionAnd              ConditionType = "and"
	ConditionOr               ConditionType = "or"
	ConditionNot              ConditionType = "not"
)

// Regex safety limits. Patterns and inputs beyond these are rejected rather
// than evaluated.
const (
	maxPatternLength = 1000
	maxInputLength   = 1_000_000
)

var (
	// ErrUnsafePattern is returned for regex patterns that exceed the size
	// limit or contain constructs prone to catastrophic backtracking.
	ErrUnsafePattern = errors.New("unsafe or oversized regex pattern")
	// ErrInputTooLarge is returned when the matched input exceeds the limit.
	ErrInputTooLarge = errors.New("condition input exceeds maximum length")
)

// Condition is a predicate over a key->value context (an event payload or an
// execution's variables). Field conditions reference a single field; logical
// conditions compose sub-conditions.
type Condition struct {
	Type          ConditionType `json:"type" validate:"required"`
	Field         string        `json:"field,omitempty"`
	Value         any           `json:"value,omitempty"`
	SubConditions []*Condition  `json:"sub_conditions,omitempty"`
}

// IsLogical reports whether the condition composes sub-conditions.
func (c *Condition) IsLogical() bool {
	return c.Type == ConditionAnd || c.Type == ConditionOr || c.Type == ConditionNot
}

// EvaluateCondition evaluates a condition against a context map. A nil
// condition matches.
func EvaluateCondition(condition *Condition, context map[string]any) (bool, error) {
	if condition == nil {
		return true, nil
	}

	if condition.IsLogical() {
		return evaluateLogical(condition, context)
	}

	contextValue, ok := context[condition.Field]
	if condition.Field == "" || !ok {
		return false, nil
	}

	if contextValue == nil {
		return condition.Value == nil, nil
	}

	fieldValue := fmt.Sprintf("%v", contextValue)

	switch condition.Type {
	case ConditionFieldEquals:
		return fieldValue == stringValue(condition.Value), nil
	case ConditionFieldNotEquals:
		return fieldValue != stringValue(condition.Value), nil
	case ConditionFieldContains:
		return condition.Value != nil && strings.Contains(fieldValue, stringValue(condition.Value)), nil
	case ConditionFieldMatches:
		return evaluateRegexMatch(fieldValue, stringValue(condition.Value))
	case ConditionFieldGreaterThan:
		return compareNumeric(contextValue, condition.Value, func(a, b float64) bool { return a > b })
	case ConditionFieldLessThan:
		return compareNumeric(contextValue, condition.Value, func(a, b float64) bool { return a < b })
	default:
		return false, fmt.Errorf("unknown condition type %q", condition.Type)
	}
}

// EvaluateBool coerces a rendered expression value to a boolean, for
// condition and loop steps whose expression is a template result. Nil and
// empty string evaluate to true, matching an absent condition.
func EvaluateBool(exp any) (bool, error) {
	if exp == nil {
		return true, nil
	}

	switch v := exp.(type) {
	case bool:
		return v, nil
	case string:
		if v == "" {
			return true, nil
		}

		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", exp)
	}
}

func evaluateLogical(condition *Condition, context map[string]any) (bool, error) {
	switch condition.Type {
	case ConditionAnd:
		for _, sub := range condition.SubConditions {
			ok, err := EvaluateCondition(sub, context)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil
	case ConditionOr:
		for _, sub := range condition.SubConditions {
			ok, err := EvaluateCondition(sub, context)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	case ConditionNot:
		if len(condition.SubConditions) == 0 {
			return false, nil
		}

		ok, err := EvaluateCondition(condition.SubConditions[0], context)
		if err != nil {
			return false, err
		}

		return !ok, nil
	default:
		return false, fmt.Errorf("unknown logical condition type %q", condition.Type)
	}
}

var (
	nestedRepetition    = regexp.MustCompile(`\([^)]*[+*]\)[+*]`)
	optionalAlternation = regexp.MustCompile(`\([^)]*\|[^)]*\?\)[+*]`)
	quantifiedBackref   = regexp.MustCompile(`\\\d[+*]`)
)

// evaluateRegexMatch matches input against pattern with guards against
// patterns prone to catastrophic backtracking. Go's RE2 engine is linear,
// so the guards exist to keep definitions portable across engines.
func evaluateRegexMatch(input, pattern string) (bool, error) {
	if pattern == "" || len(pattern) > maxPatternLength {
		return false, ErrUnsafePattern
	}

	if len(input) > maxInputLength {
		return false, ErrInputTooLarge
	}

	if nestedRepetition.MatchString(pattern) ||
		optionalAlternation.MatchString(pattern) ||
		quantifiedBackref.MatchString(pattern) {
		return false, ErrUnsafePattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern: %w", err)
	}

	return re.MatchString(input), nil
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}

	return fmt.Sprintf("%v", v)
}

func compareNumeric(left, right any, cmp func(a, b float64) bool) (bool, error) {
	l, lok := toFloat(left)
	r, rok := toFloat(right)

	if !lok || !rok {
		return false, nil
	}

	return cmp(l, r), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
