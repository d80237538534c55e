package audience

import (
	"time"

	pkgerrors "audience/pkg/errors"
)

var comparisonOps = map[Operator]CompareOp{
	OpGreater:        CmpGt,
	OpLess:           CmpLt,
	OpNotEqual:       CmpNe,
	OpGreaterOrEqual: CmpGte,
	OpLessOrEqual:    CmpLte,
}

// BuildCondition coerces the rule value and maps its operator to a field
// predicate. Equality on a date field matches the whole UTC day of the value.
func BuildCondition(rule Rule) (Condition, error) {
	if _, ok := comparisonOps[rule.Operator]; !ok && rule.Operator != OpEqual {
		return Condition{}, pkgerrors.ErrUnsupportedOperator.
			WithMessage("Unsupported operator %q.", rule.Operator).
			WithDetail("operator", string(rule.Operator)).
			WithDetail("field", rule.Field)
	}

	value, err := Coerce(rule.Field, rule.Value)
	if err != nil {
		return Condition{}, pkgerrors.ErrInvalidInput.
			WithMessage("Invalid value for field %s.", rule.Field).
			WithDetail("field", rule.Field).
			WithCause(err)
	}

	cond := Condition{Field: rule.Field, Logic: rule.Condition}

	// only equality widens a date to its UTC day; other operators compare the
	// instant itself
	switch {
	case rule.Operator != OpEqual:
		cond.Clauses = []Clause{{Op: comparisonOps[rule.Operator], Value: value}}
	case IsDateField(rule.Field):
		start, end := DayBounds(value.(time.Time))
		cond.Clauses = []Clause{{Op: CmpGte, Value: start}, {Op: CmpLt, Value: end}}
	default:
		cond.Clauses = []Clause{{Op: CmpEq, Value: value}}
	}

	return cond, nil
}

// BuildConditions builds one condition per rule, preserving order.
func BuildConditions(rules []Rule) ([]Condition, error) {
	conditions := make([]Condition, 0, len(rules))
	for i, rule := range rules {
		cond, err := BuildCondition(rule)
		if err != nil {
			if appErr, ok := err.(*pkgerrors.Error); ok {
				err = appErr.WithDetail("index", i)
			}
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// DayBounds returns midnight and 23:59:59.999 of t's UTC calendar day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Millisecond)
}
