package segment

import (
	"time"

	"gorm.io/datatypes"
)

// Criterion is one row of a segment's criteria list as stored in JSON.
// Value2 is only meaningful for the between operator.
type Criterion struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
	Value2   any    `json:"value2,omitempty"`
}

// Segment is a visitor audience defined by a criteria list. MemberCount and
// LastRefreshedAt are maintained by membership refresh only.
type Segment struct {
	ID              string         `gorm:"column:id;primaryKey"`
	Name            string         `gorm:"column:name;not null"`
	Slug            string         `gorm:"column:slug;uniqueIndex;not null"`
	Description     string         `gorm:"column:description"`
	Criteria        datatypes.JSON `gorm:"column:criteria"`
	IsActive        bool           `gorm:"column:is_active;default:true"`
	MemberCount     int64          `gorm:"column:member_count"`
	LastRefreshedAt *time.Time     `gorm:"column:last_refreshed_at"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Segment) TableName() string { return "segments" }

// VisitorProfile is the aggregated per-visitor row segments are computed
// over. Only the fields listed in queryableFields can appear in criteria.
type VisitorProfile struct {
	VisitorID    string     `gorm:"column:visitor_id;primaryKey"`
	Country      string     `gorm:"column:country"`
	City         string     `gorm:"column:city"`
	DeviceType   string     `gorm:"column:device_type"`
	Browser      string     `gorm:"column:browser"`
	OS           string     `gorm:"column:os"`
	Language     string     `gorm:"column:language"`
	VisitCount   int64      `gorm:"column:visit_count"`
	TotalTimeSec int64      `gorm:"column:total_time_sec"`
	Tags         string     `gorm:"column:tags"`
	FirstVisitAt *time.Time `gorm:"column:first_visit_at"`
	LastVisitAt  *time.Time `gorm:"column:last_visit_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (VisitorProfile) TableName() string { return "visitor_profiles" }

// SegmentMember is one (segment, visitor) membership row, fully rebuilt on
// every refresh.
type SegmentMember struct {
	SegmentID string    `gorm:"column:segment_id;primaryKey"`
	VisitorID string    `gorm:"column:visitor_id;primaryKey"`
	AddedAt   time.Time `gorm:"column:added_at"`
}

func (SegmentMember) TableName() string { return "segment_members" }

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindTime
)

type fieldSpec struct {
	column string
	kind   fieldKind
}

// queryableFields is the closed allow-list of criteria fields. Compilation
// rejects anything else, so criteria can never reach arbitrary columns.
var queryableFields = map[string]fieldSpec{
	"country":        {column: "country", kind: kindString},
	"city":           {column: "city", kind: kindString},
	"device_type":    {column: "device_type", kind: kindString},
	"browser":        {column: "browser", kind: kindString},
	"os":             {column: "os", kind: kindString},
	"language":       {column: "language", kind: kindString},
	"visit_count":    {column: "visit_count", kind: kindNumber},
	"total_time_sec": {column: "total_time_sec", kind: kindNumber},
	"tags":           {column: "tags", kind: kindString},
	"first_visit_at": {column: "first_visit_at", kind: kindTime},
	"last_visit_at":  {column: "last_visit_at", kind: kindTime},
}
