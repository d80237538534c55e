package audience

import (
	"go.mongodb.org/mongo-driver/bson"
)

type CompareOp string

const (
	CmpEq  CompareOp = "$eq"
	CmpNe  CompareOp = "$ne"
	CmpGt  CompareOp = "$gt"
	CmpGte CompareOp = "$gte"
	CmpLt  CompareOp = "$lt"
	CmpLte CompareOp = "$lte"
)

type Clause struct {
	Op    CompareOp
	Value interface{}
}

// Filter is a store-agnostic filter expression. BSON renders it for MongoDB,
// Document for the embedded datastore.
type Filter interface {
	BSON() bson.D
	Document() map[string]interface{}
}

// Condition is a single-field predicate. Logic is the connective tag of the
// rule it was built from and is only read by combiners.
type Condition struct {
	Field   string
	Clauses []Clause
	Logic   Logic
}

// plain equality renders as {field: value} rather than {field: {$eq: value}}
func (c Condition) plainEquality() bool {
	return len(c.Clauses) == 1 && c.Clauses[0].Op == CmpEq
}

func (c Condition) BSON() bson.D {
	if c.plainEquality() {
		return bson.D{{Key: c.Field, Value: c.Clauses[0].Value}}
	}

	ops := make(bson.D, 0, len(c.Clauses))
	for _, cl := range c.Clauses {
		ops = append(ops, bson.E{Key: string(cl.Op), Value: cl.Value})
	}

	return bson.D{{Key: c.Field, Value: ops}}
}

// Document renders the condition for the embedded datastore. Its $ne skips
// documents without the field, so a condition MongoDB would match on a
// missing field gets an explicit $exists branch.
func (c Condition) Document() map[string]interface{} {
	var doc map[string]interface{}
	if c.plainEquality() {
		doc = map[string]interface{}{c.Field: c.Clauses[0].Value}
	} else {
		ops := make(map[string]interface{}, len(c.Clauses))
		for _, cl := range c.Clauses {
			ops[string(cl.Op)] = cl.Value
		}
		doc = map[string]interface{}{c.Field: ops}
	}

	if !c.matchesMissing() {
		return doc
	}

	return map[string]interface{}{"$or": []interface{}{
		map[string]interface{}{c.Field: map[string]interface{}{"$exists": false}},
		doc,
	}}
}

// matchesMissing reports whether MongoDB matches a document lacking the
// field. Only $ne against a value and equality with null do.
func (c Condition) matchesMissing() bool {
	if len(c.Clauses) == 0 {
		return false
	}
	for _, cl := range c.Clauses {
		switch {
		case cl.Op == CmpNe && cl.Value != nil:
		case cl.Op == CmpEq && cl.Value == nil:
		default:
			return false
		}
	}
	return true
}

type And []Filter

func (a And) BSON() bson.D {
	items := make(bson.A, 0, len(a))
	for _, f := range a {
		items = append(items, f.BSON())
	}
	return bson.D{{Key: "$and", Value: items}}
}

func (a And) Document() map[string]interface{} {
	items := make([]interface{}, 0, len(a))
	for _, f := range a {
		items = append(items, f.Document())
	}
	return map[string]interface{}{"$and": items}
}

type Or []Filter

func (o Or) BSON() bson.D {
	items := make(bson.A, 0, len(o))
	for _, f := range o {
		items = append(items, f.BSON())
	}
	return bson.D{{Key: "$or", Value: items}}
}

func (o Or) Document() map[string]interface{} {
	items := make([]interface{}, 0, len(o))
	for _, f := range o {
		items = append(items, f.Document())
	}
	return map[string]interface{}{"$or": items}
}

// ExtJSON renders the filter as relaxed MongoDB extended JSON.
func ExtJSON(f Filter) ([]byte, error) {
	return bson.MarshalExtJSON(f.BSON(), false, false)
}
