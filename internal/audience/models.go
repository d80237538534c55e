package audience

import "encoding/json"

type Operator string

const (
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
)

// Logic is the connective tag a rule carries towards the rest of the sequence.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

func (l Logic) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

// Rule is one validated filter predicate. Value keeps whatever type the caller
// sent until it is coerced for its field.
type Rule struct {
	Field     string      `json:"field" mapstructure:"field" example:"visits"`
	Operator  Operator    `json:"operator" mapstructure:"operator" example:">"`
	Value     interface{} `json:"value" mapstructure:"value" swaggertype:"string" example:"5"`
	Condition Logic       `json:"condition" mapstructure:"condition" example:"AND"`
}

// SizeRequest is the body of the audience size endpoints. Rules is decoded
// loosely and validated by ValidateRules.
type SizeRequest struct {
	Rules interface{} `json:"rules" swaggertype:"array,object"`
}

type SizeResponse struct {
	Size int64 `json:"size" example:"42"`
}

type FilterResponse struct {
	Policy    string          `json:"policy" example:"legacy"`
	Collapsed bool            `json:"collapsed"`
	Rules     int             `json:"rules" example:"2"`
	Filter    json.RawMessage `json:"filter" swaggertype:"object"`
}
