package discount

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Validation failure reasons. Services wrap these in errutil errors; callers
// branch with errors.Is.
var (
	ErrCodeNotFound      = errors.New("discount code not found")
	ErrCodeInactive      = errors.New("discount code is inactive")
	ErrCodeNotYetValid   = errors.New("discount code is not yet valid")
	ErrCodeExpired       = errors.New("discount code has expired")
	ErrBelowMinimum      = errors.New("purchase amount below code minimum")
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	ErrAlreadyUsed       = errors.New("discount code already used by this user")
)

// CodeType selects how a code's value is interpreted.
type CodeType string

const (
	TypePercentage CodeType = "percentage"
	TypeFixed      CodeType = "fixed"
)

// DiscountCode is a redeemable code. UsageCount is maintained only by the
// atomic reserve in UsageRepository; it mirrors the usage log row count.
// A zero UsageLimit means unlimited; a zero MaxDiscountAmount means no cap.
type DiscountCode struct {
	ID                int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Code              string          `gorm:"column:code;uniqueIndex;not null"`
	Type              CodeType        `gorm:"column:type;not null"`
	Value             decimal.Decimal `gorm:"column:value;type:decimal(14,4);not null"`
	MinPurchaseAmount decimal.Decimal `gorm:"column:min_purchase_amount;type:decimal(14,4)"`
	MaxDiscountAmount decimal.Decimal `gorm:"column:max_discount_amount;type:decimal(14,4)"`
	UsageLimit        int             `gorm:"column:usage_limit"`
	UsageCount        int             `gorm:"column:usage_count"`
	ValidFrom         *time.Time      `gorm:"column:valid_from"`
	ValidUntil        *time.Time      `gorm:"column:valid_until"`
	IsActive          bool            `gorm:"column:is_active;default:true"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (DiscountCode) TableName() string { return "discount_codes" }

// DiscountUsage logs one redemption. An identified user may redeem a given
// code once; the reserve transaction enforces that. Anonymous redemptions
// carry an empty user_id and are never deduplicated, so the pair index stays
// non-unique.
type DiscountUsage struct {
	ID             string          `gorm:"column:id;primaryKey"`
	DiscountCodeID int64           `gorm:"column:discount_code_id;not null;index:idx_code_user"`
	UserID         string          `gorm:"column:user_id;index:idx_code_user"`
	OrderID        string          `gorm:"column:order_id"`
	PurchaseAmount decimal.Decimal `gorm:"column:purchase_amount;type:decimal(14,4);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:decimal(14,4);not null"`
	FinalAmount    decimal.Decimal `gorm:"column:final_amount;type:decimal(14,4);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (DiscountUsage) TableName() string { return "discount_usages" }

// Application is the outcome of applying a code to a purchase.
// DiscountAmount + FinalAmount always equals the purchase amount.
type Application struct {
	Code           *DiscountCode
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}
