package targeting

import (
	"time"
)

// CriterionType names one targeting dimension. Any string is accepted in
// storage; the constants below are the dimensions the matcher treats
// specially or that admins commonly use.
type CriterionType string

const (
	CriterionLocation  CriterionType = "location"
	CriterionDevice    CriterionType = "device"
	CriterionBrowser   CriterionType = "browser"
	CriterionOS        CriterionType = "os"
	CriterionLanguage  CriterionType = "language"
	CriterionSegment   CriterionType = "segment"
	CriterionTimeStart CriterionType = "time_start"
	CriterionTimeEnd   CriterionType = "time_end"
)

// ContextTime is the request-context key checked against time_start/time_end
// criteria. Values are zero-padded 24-hour "HH:MM" strings.
const ContextTime = "time"

const (
	defaultTimeStart = "00:00"
	defaultTimeEnd   = "23:59"
)

// Criterion is one stored targeting constraint for an advertisement.
// Multiple criteria of the same type are alternatives (OR); different types
// are conjunctive (AND). Rows are replaced in bulk per ad and are read-only
// to the matcher.
type Criterion struct {
	ID        string        `gorm:"column:id;primaryKey"`
	AdID      int64         `gorm:"column:ad_id;index;not null"`
	Type      CriterionType `gorm:"column:type;not null"`
	Value     string        `gorm:"column:value;not null"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
}

func (Criterion) TableName() string { return "targeting_criteria" }

// CriterionSpec is the write-side shape accepted by ReplaceCriteria.
type CriterionSpec struct {
	Type  CriterionType `json:"type"`
	Value string        `json:"value"`
}

// Context is the request context a candidate ad is matched against. Keys are
// criterion types; values are multi-valued so the serving path can pass, for
// example, every segment the visitor belongs to.
type Context map[string][]string

func (c Context) Set(key string, values ...string) {
	c[key] = values
}

// First returns the first value for key, if any.
func (c Context) First(key string) (string, bool) {
	vals, ok := c[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}
