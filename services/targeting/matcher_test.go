package targeting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func criteria(adID int64, pairs ...string) []*Criterion {
	out := make([]*Criterion, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &Criterion{AdID: adID, Type: CriterionType(pairs[i]), Value: pairs[i+1]})
	}
	return out
}

func TestMatchesEmptyCriteria(t *testing.T) {
	require.True(t, Matches(nil, Context{}))
	require.True(t, Matches(nil, Context{"device": {"mobile"}, "location": {"US-CA"}}))
	require.True(t, Matches([]*Criterion{}, Context{"anything": {"at all"}}))
}

func TestMatchesExactDimension(t *testing.T) {
	crit := criteria(1, "device", "mobile", "device", "tablet")

	require.True(t, Matches(crit, Context{"device": {"mobile"}}))
	require.True(t, Matches(crit, Context{"device": {"tablet"}}))
	require.False(t, Matches(crit, Context{"device": {"desktop"}}))
}

func TestMatchesUnconstrainedContextKey(t *testing.T) {
	crit := criteria(1, "device", "mobile")

	// Extra context dimensions the ad does not target are "don't care".
	require.True(t, Matches(crit, Context{"device": {"mobile"}, "browser": {"firefox"}}))
}

func TestMatchesMissingContextKeyFailsClosed(t *testing.T) {
	crit := criteria(1, "device", "mobile")

	require.False(t, Matches(crit, Context{"browser": {"firefox"}}))
	require.False(t, Matches(crit, Context{}))
}

func TestMatchesConjunctionAcrossTypes(t *testing.T) {
	crit := criteria(1, "device", "mobile", "os", "android")

	require.True(t, Matches(crit, Context{"device": {"mobile"}, "os": {"android"}}))
	require.False(t, Matches(crit, Context{"device": {"mobile"}, "os": {"ios"}}))
}

func TestMatchesLocationPrefix(t *testing.T) {
	crit := criteria(1, "location", "US")

	require.True(t, Matches(crit, Context{"location": {"US"}}))
	require.True(t, Matches(crit, Context{"location": {"US-CA"}}))
	require.False(t, Matches(crit, Context{"location": {"CA"}}))

	// Direction matters: the stored value is the prefix, not the context.
	narrow := criteria(1, "location", "US-CA")
	require.False(t, Matches(narrow, Context{"location": {"US"}}))
}

func TestMatchesTimeWindow(t *testing.T) {
	crit := criteria(1, "time_start", "09:00", "time_end", "17:30")

	require.True(t, Matches(crit, Context{"time": {"09:00"}}))
	require.True(t, Matches(crit, Context{"time": {"12:15"}}))
	require.True(t, Matches(crit, Context{"time": {"17:30"}}))
	require.False(t, Matches(crit, Context{"time": {"08:59"}}))
	require.False(t, Matches(crit, Context{"time": {"17:31"}}))

	// Fails closed when the context has no time value.
	require.False(t, Matches(crit, Context{}))
}

func TestMatchesTimeWindowDefaults(t *testing.T) {
	startOnly := criteria(1, "time_start", "22:00")
	require.True(t, Matches(startOnly, Context{"time": {"23:59"}}))
	require.False(t, Matches(startOnly, Context{"time": {"21:00"}}))

	endOnly := criteria(1, "time_end", "06:00")
	require.True(t, Matches(endOnly, Context{"time": {"00:00"}}))
	require.False(t, Matches(endOnly, Context{"time": {"06:01"}}))
}

func TestMatchesSegmentDimensionIntersection(t *testing.T) {
	crit := criteria(1, "segment", "seg-returning", "segment", "seg-highvalue")

	require.True(t, Matches(crit, Context{"segment": {"seg-casual", "seg-highvalue"}}))
	require.False(t, Matches(crit, Context{"segment": {"seg-casual"}}))
	require.False(t, Matches(crit, Context{}))
}
