package segment

import (
	"fmt"

	"adserve-engine/pkg/predicate"
)

// Skip records one criterion the compiler dropped and why. Skipped criteria
// never silently widen a segment: they contribute no condition at all, and
// the diagnostics let admins see what was ignored.
type Skip struct {
	Index  int
	Field  string
	Reason string
}

func (s Skip) String() string {
	return fmt.Sprintf("criterion %d (%s): %s", s.Index, s.Field, s.Reason)
}

// Compile turns a criteria list into an engine-agnostic predicate. Malformed
// criteria are skipped, not failed: a segment with only bad criteria compiles
// to the universal-true predicate. Values stay typed; nothing is ever
// rendered into a query string here.
func Compile(criteria []Criterion) (*predicate.Predicate, []Skip) {
	pred := predicate.True()
	var skips []Skip

	skip := func(i int, c Criterion, reason string) {
		skips = append(skips, Skip{Index: i, Field: c.Field, Reason: reason})
	}

	for i, c := range criteria {
		if c.Field == "" || c.Operator == "" {
			skip(i, c, "missing field or operator")
			continue
		}
		if _, ok := queryableFields[c.Field]; !ok {
			skip(i, c, "field is not queryable")
			continue
		}

		op := predicate.Operator(c.Operator)
		if !op.Valid() {
			skip(i, c, "unsupported operator")
			continue
		}

		switch op {
		case predicate.OpExists, predicate.OpNotExists:
			pred.Add(predicate.Condition{Field: c.Field, Operator: op})

		case predicate.OpBetween:
			if c.Value == nil || c.Value2 == nil {
				skip(i, c, "between requires value and value2")
				continue
			}
			pred.Add(predicate.Condition{Field: c.Field, Operator: op, Values: []any{c.Value, c.Value2}})

		case predicate.OpIn:
			values := normalizeIn(c.Value)
			if values == nil {
				skip(i, c, "in requires a value")
				continue
			}
			if len(values) == 0 {
				skip(i, c, "in list is empty")
				continue
			}
			pred.Add(predicate.Condition{Field: c.Field, Operator: op, Values: values})

		default:
			if c.Value == nil {
				skip(i, c, "missing value")
				continue
			}
			pred.Add(predicate.Condition{Field: c.Field, Operator: op, Values: []any{c.Value}})
		}
	}

	return pred, skips
}

// normalizeIn accepts a JSON array or a bare scalar, treating the scalar as a
// single-element list. A nil value stays nil so the caller can distinguish
// "absent" from "empty list".
func normalizeIn(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}
