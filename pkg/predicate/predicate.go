// Package predicate carries the engine-agnostic filter produced by the
// segment criteria compiler. A Predicate is a conjunction of conditions whose
// values travel as typed parameters; storage collaborators render it into
// their own query language and must never interpolate values into strings.
package predicate

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "starts_with"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpBetween     Operator = "between"
	OpIn          Operator = "in"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
)

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpStartsWith,
		OpGreaterThan, OpLessThan, OpBetween, OpIn, OpExists, OpNotExists:
		return true
	}
	return false
}

// Condition is one field/operator/values node. Values holds zero, one, two or
// N parameters depending on the operator (none for exists, two for between,
// N for in).
type Condition struct {
	Field    string
	Operator Operator
	Values   []any
}

// Predicate is an AND of conditions. The zero value (no conditions) is the
// universal-true predicate: no criteria means everyone matches.
type Predicate struct {
	conds []Condition
}

func True() *Predicate {
	return &Predicate{}
}

func (p *Predicate) Add(c Condition) {
	p.conds = append(p.conds, c)
}

// IsTrue reports whether the predicate matches every record.
func (p *Predicate) IsTrue() bool {
	return p == nil || len(p.conds) == 0
}

func (p *Predicate) Conditions() []Condition {
	if p == nil {
		return nil
	}
	return p.conds
}
