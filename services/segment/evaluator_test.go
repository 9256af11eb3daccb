package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleProfile() *VisitorProfile {
	return &VisitorProfile{
		VisitorID:    "v1",
		Country:      "US",
		City:         "Chicago",
		DeviceType:   "mobile",
		Browser:      "firefox",
		OS:           "android",
		Language:     "en",
		VisitCount:   6,
		TotalTimeSec: 300,
		Tags:         "sports,news",
	}
}

func TestEvaluateProfile(t *testing.T) {
	profile := sampleProfile()

	matched, skips, err := EvaluateProfile([]Criterion{
		{Field: "country", Operator: "equals", Value: "US"},
		{Field: "visit_count", Operator: "greater_than", Value: 5},
		{Field: "tags", Operator: "contains", Value: "sports"},
		{Field: "city", Operator: "starts_with", Value: "Chi"},
		{Field: "total_time_sec", Operator: "between", Value: 60, Value2: 600},
		{Field: "device_type", Operator: "in", Value: []any{"mobile", "tablet"}},
	}, profile)
	require.NoError(t, err)
	require.Empty(t, skips)
	require.True(t, matched)

	matched, _, err = EvaluateProfile([]Criterion{
		{Field: "country", Operator: "equals", Value: "DE"},
	}, profile)
	require.NoError(t, err)
	require.False(t, matched)

	// visit_count is 6: greater_than 6 is false, not_equals works on numbers.
	matched, _, err = EvaluateProfile([]Criterion{
		{Field: "visit_count", Operator: "greater_than", Value: 6},
	}, profile)
	require.NoError(t, err)
	require.False(t, matched)

	matched, _, err = EvaluateProfile([]Criterion{
		{Field: "visit_count", Operator: "not_equals", Value: 7},
	}, profile)
	require.NoError(t, err)
	require.True(t, matched)
}

func TestEvaluateProfileExists(t *testing.T) {
	profile := sampleProfile()
	profile.Language = ""

	matched, _, err := EvaluateProfile([]Criterion{
		{Field: "language", Operator: "not_exists"},
	}, profile)
	require.NoError(t, err)
	require.True(t, matched)

	matched, _, err = EvaluateProfile([]Criterion{
		{Field: "language", Operator: "exists"},
	}, profile)
	require.NoError(t, err)
	require.False(t, matched)
}

func TestEvaluateProfileSkipsBadCriteria(t *testing.T) {
	// Only the malformed criterion is dropped; the rest still evaluate.
	matched, skips, err := EvaluateProfile([]Criterion{
		{Field: "secret", Operator: "equals", Value: "x"},
		{Field: "country", Operator: "equals", Value: "US"},
	}, sampleProfile())
	require.NoError(t, err)
	require.Len(t, skips, 1)
	require.True(t, matched)
}

func TestEvaluateProfileEmptyCriteriaMatchesAll(t *testing.T) {
	matched, skips, err := EvaluateProfile(nil, sampleProfile())
	require.NoError(t, err)
	require.Empty(t, skips)
	require.True(t, matched)
}
