package entities

// Query is a Mongo-style condition object (e.g., {"createdBy.id": 1}).
type Query map[string]any

// Query operators used to combine condition results
const (
	OpAnd = "$and"
	OpOr  = "$or"
)

// Rule is the compiled form of a permission handed to an ability builder.
// Condition is nil for unconditional rules; otherwise it is a tree of the form
// {"$and": [{"$or": [...]}, ...]}.
type Rule struct {
	Action     string     `json:"action"`
	Subject    string     `json:"subject,omitempty"`
	Properties Properties `json:"properties"`
	Condition  Query      `json:"condition,omitempty"`
}

// Clone returns a deep copy of the rule
func (r Rule) Clone() Rule {
	out := r
	if r.Properties != nil {
		out.Properties = r.Properties.Clone()
	}
	if r.Condition != nil {
		out.Condition = Query(CloneMap(r.Condition))
	}
	return out
}

// HasCondition reports whether the rule is conditional
func (r Rule) HasCondition() bool {
	return r.Condition != nil
}

// NewConditionTree returns {"$and": [{"$or": clauses}]}
func NewConditionTree(clauses []Query) Query {
	or := make([]any, 0, len(clauses))
	for _, c := range clauses {
		or = append(or, map[string]any(c))
	}
	return Query{OpAnd: []any{map[string]any{OpOr: or}}}
}

// AndClauses returns the $and list of a condition tree
func (q Query) AndClauses() []any {
	if q == nil {
		return nil
	}
	clauses, _ := q[OpAnd].([]any)
	return clauses
}
