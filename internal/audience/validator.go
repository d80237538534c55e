package audience

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	pkgerrors "audience/pkg/errors"
)

var requiredStringKeys = []string{"field", "operator", "condition"}

// ValidateRules checks that raw is a sequence of complete rules and decodes it.
// It accepts the loosely typed shapes produced by JSON decoding as well as
// already typed rules.
func ValidateRules(raw interface{}) ([]Rule, error) {
	switch items := raw.(type) {
	case []Rule:
		for i, rule := range items {
			if err := checkRule(rule); err != nil {
				return nil, missingProperties(i, err)
			}
		}
		return items, nil
	case []map[string]interface{}:
		generic := make([]interface{}, len(items))
		for i, item := range items {
			generic[i] = item
		}
		return decodeRules(generic)
	case []interface{}:
		return decodeRules(items)
	default:
		return nil, pkgerrors.ErrInvalidInput.WithMessage("Rules must be an array.")
	}
}

func decodeRules(items []interface{}) ([]Rule, error) {
	rules := make([]Rule, 0, len(items))
	for i, item := range items {
		rule, err := decodeRule(item)
		if err != nil {
			return nil, missingProperties(i, err)
		}
		if err := checkRule(rule); err != nil {
			return nil, missingProperties(i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func decodeRule(item interface{}) (Rule, error) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return Rule{}, fmt.Errorf("rule is %T, not an object", item)
	}

	for _, key := range requiredStringKeys {
		s, ok := m[key].(string)
		if !ok || s == "" {
			return Rule{}, fmt.Errorf("%s must be a non-empty string", key)
		}
	}

	// null is a defined value; only an absent key is missing
	if _, ok := m["value"]; !ok {
		return Rule{}, fmt.Errorf("value is required")
	}

	var rule Rule
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &rule,
		TagName: "mapstructure",
	})
	if err != nil {
		return Rule{}, fmt.Errorf("create rule decoder: %w", err)
	}

	if err := decoder.Decode(m); err != nil {
		return Rule{}, fmt.Errorf("decode rule: %w", err)
	}

	return rule, nil
}

func checkRule(rule Rule) error {
	if rule.Field == "" {
		return fmt.Errorf("field is required")
	}
	if rule.Operator == "" {
		return fmt.Errorf("operator is required")
	}
	if rule.Condition == "" {
		return fmt.Errorf("condition is required")
	}
	if !rule.Condition.Valid() {
		return fmt.Errorf("condition %q is not AND or OR", rule.Condition)
	}
	return nil
}

func missingProperties(index int, cause error) error {
	return pkgerrors.ErrInvalidInput.
		WithMessage("Rule at index %d is missing required properties.", index).
		WithDetail("index", index).
		WithCause(cause)
}
