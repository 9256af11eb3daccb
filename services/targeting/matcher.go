package targeting

import "strings"

// Matches reports whether the stored criteria admit the request context.
//
// An ad with no criteria is untargeted and matches everything. Criteria are
// grouped by type: values within a type are alternatives, types are
// conjunctive. A type the ad does not constrain is "don't care" regardless of
// what the context carries; a type the ad does constrain fails closed when
// the context lacks the key. Callers relying on exclusion must encode it as
// an explicit stored value.
func Matches(criteria []*Criterion, reqCtx Context) bool {
	if len(criteria) == 0 {
		return true
	}

	byType := make(map[CriterionType][]string)
	for _, c := range criteria {
		byType[c.Type] = append(byType[c.Type], c.Value)
	}

	if !timeWindowMatches(byType, reqCtx) {
		return false
	}

	for typ, stored := range byType {
		if typ == CriterionTimeStart || typ == CriterionTimeEnd {
			continue
		}
		ctxVals, ok := reqCtx[string(typ)]
		if !ok || len(ctxVals) == 0 {
			return false
		}
		if !dimensionMatches(typ, stored, ctxVals) {
			return false
		}
	}

	return true
}

// timeWindowMatches checks the context's "time" value against stored
// time_start/time_end bounds. The comparison is lexical over "HH:MM"
// strings, which is equivalent to clock order for zero-padded 24-hour
// values; windows do not wrap past midnight.
func timeWindowMatches(byType map[CriterionType][]string, reqCtx Context) bool {
	starts, hasStart := byType[CriterionTimeStart]
	ends, hasEnd := byType[CriterionTimeEnd]
	if !hasStart && !hasEnd {
		return true
	}

	start, end := defaultTimeStart, defaultTimeEnd
	if hasStart && len(starts) > 0 {
		start = starts[0]
	}
	if hasEnd && len(ends) > 0 {
		end = ends[0]
	}

	now, ok := reqCtx.First(ContextTime)
	if !ok {
		return false
	}
	return now >= start && now <= end
}

func dimensionMatches(typ CriterionType, stored, ctxVals []string) bool {
	for _, want := range stored {
		for _, got := range ctxVals {
			if valueMatches(typ, want, got) {
				return true
			}
		}
	}
	return false
}

// valueMatches compares one stored value against one context value.
// Locations match hierarchically: stored "US" admits context "US-CA".
func valueMatches(typ CriterionType, stored, ctx string) bool {
	if typ == CriterionLocation {
		return strings.HasPrefix(ctx, stored)
	}
	return stored == ctx
}
