package audience

import (
	"fmt"
	"strings"

	"audience/internal/constants"
	pkgerrors "audience/pkg/errors"
)

// Combiner merges built conditions into the filter sent to the store.
type Combiner interface {
	Combine(conditions []Condition) (Filter, error)
	Policy() string
}

// NewCombiner returns the combiner registered for policy.
func NewCombiner(policy string) (Combiner, error) {
	switch strings.ToLower(policy) {
	case "", constants.CombinePolicyLegacy:
		return LegacyCombiner{}, nil
	case constants.CombinePolicyGrouped:
		return GroupedCombiner{}, nil
	default:
		return nil, fmt.Errorf("unknown combine policy: %s", policy)
	}
}

// HasOr reports whether any condition is tagged OR.
func HasOr(conditions []Condition) bool {
	for _, c := range conditions {
		if c.Logic == LogicOr {
			return true
		}
	}
	return false
}

// LegacyCombiner reproduces the legacy audience query shape: if any rule is
// tagged OR only the first condition is kept, otherwise all conditions are
// joined with $and.
type LegacyCombiner struct{}

func (LegacyCombiner) Policy() string {
	return constants.CombinePolicyLegacy
}

func (LegacyCombiner) Combine(conditions []Condition) (Filter, error) {
	if len(conditions) == 0 {
		return nil, errNoConditions()
	}

	if HasOr(conditions) {
		return conditions[0], nil
	}

	and := make(And, 0, len(conditions))
	for _, c := range conditions {
		and = append(and, c)
	}
	return and, nil
}

// GroupedCombiner joins each condition to its predecessor with the
// condition's own tag. AND binds tighter than OR, so the result is an $or of
// $and groups.
type GroupedCombiner struct{}

func (GroupedCombiner) Policy() string {
	return constants.CombinePolicyGrouped
}

func (GroupedCombiner) Combine(conditions []Condition) (Filter, error) {
	if len(conditions) == 0 {
		return nil, errNoConditions()
	}

	groups := [][]Condition{{conditions[0]}}
	for _, c := range conditions[1:] {
		if c.Logic == LogicOr {
			groups = append(groups, []Condition{c})
			continue
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], c)
	}

	if len(groups) == 1 {
		return andOf(groups[0]), nil
	}

	or := make(Or, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			or = append(or, g[0])
			continue
		}
		or = append(or, andOf(g))
	}
	return or, nil
}

func andOf(conditions []Condition) And {
	and := make(And, 0, len(conditions))
	for _, c := range conditions {
		and = append(and, c)
	}
	return and
}

func errNoConditions() error {
	return pkgerrors.ErrInvalidInput.WithMessage("At least one rule is required.")
}
