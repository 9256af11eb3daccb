package segment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"adserve-engine/pkg/predicate"
)

// evalEnv is built once: the variable set is the fixed queryable field list.
var evalEnv = func() *cel.Env {
	opts := make([]cel.EnvOption, 0, len(queryableFields))
	for field, spec := range queryableFields {
		if spec.kind == kindString {
			opts = append(opts, cel.Variable(field, cel.StringType))
		} else {
			opts = append(opts, cel.Variable(field, cel.IntType))
		}
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		panic(err)
	}
	return env
}()

// EvaluateProfile checks one profile against a criteria list in memory. It
// exists for previews: an admin can probe a segment definition against a
// sample profile without touching visitor storage. Malformed criteria are
// skipped exactly as Compile skips them.
func EvaluateProfile(criteria []Criterion, profile *VisitorProfile) (bool, []Skip, error) {
	pred, skips := Compile(criteria)
	if pred.IsTrue() {
		return true, skips, nil
	}

	expr, err := celExpr(pred)
	if err != nil {
		return false, skips, err
	}

	ast, issues := evalEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, skips, issues.Err()
	}
	prg, err := evalEnv.Program(ast)
	if err != nil {
		return false, skips, err
	}

	out, _, err := prg.Eval(profileAttrs(profile))
	if err != nil {
		return false, skips, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, skips, fmt.Errorf("expression did not evaluate to a boolean")
	}
	return matched, skips, nil
}

// profileAttrs flattens a profile into the CEL activation. Time fields are
// exposed as unix seconds, zero when unset.
func profileAttrs(p *VisitorProfile) map[string]any {
	unix := func(t *time.Time) int64 {
		if t == nil {
			return 0
		}
		return t.Unix()
	}
	return map[string]any{
		"country":        p.Country,
		"city":           p.City,
		"device_type":    p.DeviceType,
		"browser":        p.Browser,
		"os":             p.OS,
		"language":       p.Language,
		"visit_count":    p.VisitCount,
		"total_time_sec": p.TotalTimeSec,
		"tags":           p.Tags,
		"first_visit_at": unix(p.FirstVisitAt),
		"last_visit_at":  unix(p.LastVisitAt),
	}
}

// celExpr renders a predicate as one CEL conjunction. Literals go through
// strconv quoting or integer formatting, never raw interpolation.
func celExpr(pred *predicate.Predicate) (string, error) {
	var terms []string
	for _, cond := range pred.Conditions() {
		spec := queryableFields[cond.Field]
		term, err := celTerm(cond, spec)
		if err != nil {
			return "", err
		}
		terms = append(terms, term)
	}
	return strings.Join(terms, " && "), nil
}

func celTerm(cond predicate.Condition, spec fieldSpec) (string, error) {
	lit := func(v any) (string, error) { return celLiteral(spec.kind, v) }

	switch cond.Operator {
	case predicate.OpEquals:
		v, err := lit(cond.Values[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s == %s", cond.Field, v), nil
	case predicate.OpNotEquals:
		v, err := lit(cond.Values[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s != %s", cond.Field, v), nil
	case predicate.OpContains:
		if spec.kind != kindString {
			return "", fmt.Errorf("contains requires a string field")
		}
		return fmt.Sprintf("%s.contains(%s)", cond.Field, strconv.Quote(fmt.Sprint(cond.Values[0]))), nil
	case predicate.OpStartsWith:
		if spec.kind != kindString {
			return "", fmt.Errorf("starts_with requires a string field")
		}
		return fmt.Sprintf("%s.startsWith(%s)", cond.Field, strconv.Quote(fmt.Sprint(cond.Values[0]))), nil
	case predicate.OpGreaterThan:
		v, err := lit(cond.Values[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s > %s", cond.Field, v), nil
	case predicate.OpLessThan:
		v, err := lit(cond.Values[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s < %s", cond.Field, v), nil
	case predicate.OpBetween:
		lo, err := lit(cond.Values[0])
		if err != nil {
			return "", err
		}
		hi, err := lit(cond.Values[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s >= %s && %s <= %s)", cond.Field, lo, cond.Field, hi), nil
	case predicate.OpIn:
		elems := make([]string, 0, len(cond.Values))
		for _, raw := range cond.Values {
			v, err := lit(raw)
			if err != nil {
				return "", err
			}
			elems = append(elems, v)
		}
		return fmt.Sprintf("%s in [%s]", cond.Field, strings.Join(elems, ", ")), nil
	case predicate.OpExists:
		if spec.kind == kindString {
			return fmt.Sprintf("%s != \"\"", cond.Field), nil
		}
		return fmt.Sprintf("%s != 0", cond.Field), nil
	case predicate.OpNotExists:
		if spec.kind == kindString {
			return fmt.Sprintf("%s == \"\"", cond.Field), nil
		}
		return fmt.Sprintf("%s == 0", cond.Field), nil
	}
	return "", fmt.Errorf("operator %q is not evaluable", cond.Operator)
}

// celLiteral renders one typed literal. Numeric and time fields take integer
// literals; RFC3339 strings against time fields convert to unix seconds.
func celLiteral(kind fieldKind, v any) (string, error) {
	if kind == kindString {
		return strconv.Quote(fmt.Sprint(v)), nil
	}

	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case float64:
		return strconv.FormatInt(int64(n), 10), nil
	case string:
		if kind == kindTime {
			if t, err := time.Parse(time.RFC3339, n); err == nil {
				return strconv.FormatInt(t.Unix(), 10), nil
			}
		}
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return "", fmt.Errorf("value %q is not numeric", n)
	}
	return "", fmt.Errorf("unsupported literal type %T", v)
}
