package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModelType is the pricing unit family of a PricingModel.
type ModelType string

const (
	ModelCPM           ModelType = "cpm"
	ModelCPC           ModelType = "cpc"
	ModelTimeBased     ModelType = "time_based"
	ModelPositionBased ModelType = "position_based"
	ModelMixed         ModelType = "mixed"
)

// Kind selects what a resolved price is charged for.
type Kind string

const (
	KindImpression Kind = "impression"
	KindClick      Kind = "click"
)

// familyFor maps a pricing kind to the model family used when an ad carries
// no explicit pricing model.
func familyFor(kind Kind) ModelType {
	if kind == KindClick {
		return ModelCPC
	}
	return ModelCPM
}

// PricingModel describes a pricing unit. A cpm base price is
// cost-per-1000-impressions and is divided by 1000 to price one impression.
type PricingModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Type      ModelType `gorm:"column:type;not null;index"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PricingModel) TableName() string { return "pricing_models" }

// PositionPricing is the price card for one (position, pricing model) pair.
// Uniqueness of the pair is enforced by upsert-on-conflict semantics.
// MinBid is informational here: the effective-price computation never floors
// at it, the serving path applies it when ranking bids.
type PositionPricing struct {
	ID             int64           `gorm:"column:id;primaryKey;autoIncrement"`
	PositionID     int64           `gorm:"column:position_id;not null;uniqueIndex:idx_position_model"`
	PricingModelID int64           `gorm:"column:pricing_model_id;not null;uniqueIndex:idx_position_model"`
	BasePrice      decimal.Decimal `gorm:"column:base_price;type:decimal(14,4);not null"`
	MinBid         decimal.Decimal `gorm:"column:min_bid;type:decimal(14,4);not null"`
	IsActive       bool            `gorm:"column:is_active;default:true"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PositionPricing) TableName() string { return "position_pricing" }

// TimePricingRule scales a position's base price inside a day-of-week hour
// window. Active rules for one (position, day) must not overlap; the admin
// layer validates that at write time and the resolver trusts stored rows.
type TimePricingRule struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	PositionID int64           `gorm:"column:position_id;not null;index"`
	DayOfWeek  int             `gorm:"column:day_of_week;not null"`
	StartHour  int             `gorm:"column:start_hour;not null"`
	EndHour    int             `gorm:"column:end_hour;not null"`
	Multiplier decimal.Decimal `gorm:"column:multiplier;type:decimal(8,3);not null"`
	IsActive   bool            `gorm:"column:is_active;default:true"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (TimePricingRule) TableName() string { return "time_pricing_rules" }

// AppliesAt reports whether the rule's window covers the given instant.
// Hour windows are half-open: [start_hour, end_hour).
func (r *TimePricingRule) AppliesAt(now time.Time) bool {
	return r.IsActive &&
		r.DayOfWeek == int(now.Weekday()) &&
		r.StartHour <= now.Hour() && now.Hour() < r.EndHour
}

// PricingPlanRule grants a plan a percentage discount for a position/model
// scope. NULL position or model means "any".
type PricingPlanRule struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement"`
	PlanID             int64           `gorm:"column:plan_id;not null;index"`
	PositionID         *int64          `gorm:"column:position_id"`
	PricingModelID     *int64          `gorm:"column:pricing_model_id"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:decimal(5,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PricingPlanRule) TableName() string { return "pricing_plan_rules" }

func (r *PricingPlanRule) PositionRef() Ref { return refFromColumn(r.PositionID) }
func (r *PricingPlanRule) ModelRef() Ref    { return refFromColumn(r.PricingModelID) }

// Ref is an "any or one specific ID" selector, replacing the legacy magic-0
// wildcard.
type Ref struct {
	any bool
	id  int64
}

func AnyRef() Ref           { return Ref{any: true} }
func ExactRef(id int64) Ref { return Ref{id: id} }

func (r Ref) IsAny() bool { return r.any }

// Covers reports whether the selector admits the given ID.
func (r Ref) Covers(id int64) bool {
	return r.any || r.id == id
}

func (r Ref) Column() *int64 {
	if r.any {
		return nil
	}
	id := r.id
	return &id
}

func refFromColumn(col *int64) Ref {
	if col == nil {
		return AnyRef()
	}
	return ExactRef(*col)
}

// NewPlanRule builds a plan rule from Ref selectors, mapping any-refs to
// NULL columns.
func NewPlanRule(planID int64, position, model Ref, pct decimal.Decimal) *PricingPlanRule {
	return &PricingPlanRule{
		PlanID:             planID,
		PositionID:         position.Column(),
		PricingModelID:     model.Column(),
		DiscountPercentage: pct,
	}
}

// AdPricing carries the per-ad fields the resolver needs. PricingModelID is
// the ad's explicit model when set; BidAmount is the raw bid used when no
// position price card exists; a zero PriceMultiplier means 1.0.
type AdPricing struct {
	AdID            int64
	PositionID      int64
	PricingModelID  *int64
	BidAmount       decimal.Decimal
	PriceMultiplier decimal.Decimal
}
