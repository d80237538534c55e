package audience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "audience/pkg/errors"
)

func rule(field, op string, value interface{}, condition string) map[string]interface{} {
	return map[string]interface{}{
		"field":     field,
		"operator":  op,
		"value":     value,
		"condition": condition,
	}
}

func TestValidateRules_Accepts(t *testing.T) {
	raw := []interface{}{
		rule("visits", ">", "5", "AND"),
		rule("total_spends", "<=", 120.5, "OR"),
		rule("visits", "=", 0, "AND"),
		rule("city", "=", nil, "AND"),
	}

	rules, err := ValidateRules(raw)
	require.NoError(t, err)
	require.Len(t, rules, 4)

	assert.Equal(t, Rule{Field: "visits", Operator: OpGreater, Value: "5", Condition: LogicAnd}, rules[0])
	assert.Equal(t, 120.5, rules[1].Value)
	assert.Equal(t, LogicOr, rules[1].Condition)
	assert.Equal(t, 0, rules[2].Value)
	assert.Nil(t, rules[3].Value)
}

func TestValidateRules_AcceptsTypedShapes(t *testing.T) {
	t.Run("map slice", func(t *testing.T) {
		rules, err := ValidateRules([]map[string]interface{}{rule("visits", ">", 1, "AND")})
		require.NoError(t, err)
		assert.Len(t, rules, 1)
	})

	t.Run("rule slice", func(t *testing.T) {
		in := []Rule{{Field: "visits", Operator: OpLess, Value: 3, Condition: LogicOr}}
		rules, err := ValidateRules(in)
		require.NoError(t, err)
		assert.Equal(t, in, rules)
	})

	t.Run("empty sequence", func(t *testing.T) {
		rules, err := ValidateRules([]interface{}{})
		require.NoError(t, err)
		assert.Empty(t, rules)
	})
}

func TestValidateRules_NotASequence(t *testing.T) {
	inputs := []interface{}{
		nil,
		"visits > 5",
		map[string]interface{}{"field": "visits"},
		42,
	}

	for _, in := range inputs {
		_, err := ValidateRules(in)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalidInput(err))

		var appErr *pkgerrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "Rules must be an array.", appErr.UserMessage())
	}
}

func TestValidateRules_MissingProperties(t *testing.T) {
	withoutValue := rule("visits", ">", 1, "AND")
	delete(withoutValue, "value")

	numericField := rule("visits", ">", 1, "AND")
	numericField["field"] = 7

	valid := rule("visits", ">", 1, "AND")

	tests := []struct {
		name  string
		raw   []interface{}
		index int
	}{
		{name: "missing field", raw: []interface{}{map[string]interface{}{"operator": ">", "value": 1, "condition": "AND"}}},
		{name: "empty operator", raw: []interface{}{rule("visits", "", 1, "AND")}},
		{name: "absent value", raw: []interface{}{withoutValue}},
		{name: "empty condition", raw: []interface{}{rule("visits", ">", 1, "")}},
		{name: "non-string field", raw: []interface{}{valid, numericField}, index: 1},
		{name: "not an object", raw: []interface{}{"visits > 1"}},
		{name: "unknown condition", raw: []interface{}{rule("visits", ">", 1, "XOR")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRules(tt.raw)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsInvalidInput(err))

			var appErr *pkgerrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.UserMessage(), "missing required properties")
			assert.Equal(t, tt.index, appErr.Details["index"])
		})
	}
}

func TestValidateRules_ReportsFirstInvalidIndex(t *testing.T) {
	raw := []interface{}{
		rule("visits", ">", 1, "AND"),
		rule("visits", ">", 1, "AND"),
		map[string]interface{}{"field": "visits"},
		map[string]interface{}{},
	}

	_, err := ValidateRules(raw)
	require.Error(t, err)

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Rule at index 2 is missing required properties.", appErr.UserMessage())
}
