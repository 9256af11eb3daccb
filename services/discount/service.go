package discount

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"adserve-engine/pkg/config"
	"adserve-engine/pkg/errutil"
	"adserve-engine/pkg/repository"
)

var hundred = decimal.NewFromInt(100)

// Service validates, applies and redeems discount codes. Apply computes
// amounts without side effects; Redeem additionally records usage through the
// atomic reserve. Every operation takes the evaluation instant explicitly.
type Service struct {
	codes   repository.Repository[DiscountCode]
	usages  *UsageRepository
	node    *snowflake.Node
	codeLen int
	logger  *zap.Logger
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config `optional:"true"`
	Logger *zap.Logger    `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codeLen := defaultCodeLength
	if p.Config != nil && p.Config.Engine.DiscountCodeLength > 0 {
		codeLen = p.Config.Engine.DiscountCodeLength
	}
	return &Service{
		codes:   repository.ProvideStore[DiscountCode](p.DB),
		usages:  NewUsageRepository(UsageRepositoryParams{DB: p.DB}),
		node:    p.Node,
		codeLen: codeLen,
		logger:  logger,
	}
}

// CreateCode stores a new code. The code string is uppercased; percentage
// values above 100 are rejected.
func (s *Service) CreateCode(ctx context.Context, code *DiscountCode) error {
	code.Code = strings.ToUpper(strings.TrimSpace(code.Code))
	if code.Code == "" {
		return errutil.ValidationFailed("code is required", nil)
	}
	if code.Type != TypePercentage && code.Type != TypeFixed {
		return errutil.ValidationFailed("type must be percentage or fixed", nil)
	}
	if !code.Value.IsPositive() {
		return errutil.ValidationFailed("value must be positive", nil)
	}
	if code.Type == TypePercentage && code.Value.GreaterThan(hundred) {
		return errutil.ValidationFailed("percentage value must not exceed 100", nil)
	}
	if code.MinPurchaseAmount.IsNegative() || code.MaxDiscountAmount.IsNegative() {
		return errutil.ValidationFailed("amounts must not be negative", nil)
	}
	return s.codes.Create(ctx, code)
}

// Validate runs the full check chain for a code against a purchase without
// touching the usage log. Failures wrap the typed reasons in model.go.
func (s *Service) Validate(ctx context.Context, code string, purchase decimal.Decimal, userID string, now time.Time) (*DiscountCode, error) {
	row, err := s.codes.FindOne(ctx, &DiscountCode{Code: strings.ToUpper(strings.TrimSpace(code))})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errutil.NotFound("discount code not found", ErrCodeNotFound)
	}
	if !row.IsActive {
		return nil, errutil.UnprocessableEntity("discount code is inactive", ErrCodeInactive)
	}
	if row.ValidFrom != nil && now.Before(*row.ValidFrom) {
		return nil, errutil.UnprocessableEntity("discount code is not yet valid", ErrCodeNotYetValid)
	}
	if row.ValidUntil != nil && now.After(*row.ValidUntil) {
		return nil, errutil.UnprocessableEntity("discount code has expired", ErrCodeExpired)
	}
	if purchase.LessThan(row.MinPurchaseAmount) {
		return nil, errutil.UnprocessableEntity("purchase amount below code minimum", ErrBelowMinimum)
	}

	if row.UsageLimit > 0 {
		used, err := s.usages.UsageCountFor(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		if used >= int64(row.UsageLimit) {
			return nil, errutil.UnprocessableEntity("discount code usage limit reached", ErrUsageLimitReached)
		}
	}

	if userID != "" {
		alreadyUsed, err := s.usages.UserHasUsed(ctx, row.ID, userID)
		if err != nil {
			return nil, err
		}
		if alreadyUsed {
			return nil, errutil.UnprocessableEntity("discount code already used", ErrAlreadyUsed)
		}
	}

	return row, nil
}

// Apply validates the code and computes the discounted amounts. Nothing is
// persisted; the split always sums back to the purchase amount exactly.
func (s *Service) Apply(ctx context.Context, code string, purchase decimal.Decimal, userID string, now time.Time) (*Application, error) {
	row, err := s.Validate(ctx, code, purchase, userID, now)
	if err != nil {
		return nil, err
	}

	amount := discountAmount(row, purchase)
	return &Application{
		Code:           row,
		DiscountAmount: amount,
		FinalAmount:    purchase.Sub(amount),
	}, nil
}

// Redeem applies the code and records usage atomically. The reserve re-checks
// the usage limit and the per-user rule inside the transaction, so losing a
// race surfaces the same typed reasons Validate produces.
func (s *Service) Redeem(ctx context.Context, code string, purchase decimal.Decimal, userID, orderID string, now time.Time) (*Application, error) {
	app, err := s.Apply(ctx, code, purchase, userID, now)
	if err != nil {
		return nil, err
	}

	usage := &DiscountUsage{
		ID:             s.node.Generate().String(),
		DiscountCodeID: app.Code.ID,
		UserID:         userID,
		OrderID:        orderID,
		PurchaseAmount: purchase,
		DiscountAmount: app.DiscountAmount,
		FinalAmount:    app.FinalAmount,
	}
	if err := s.usages.ReserveUsage(ctx, app.Code.ID, usage); err != nil {
		return nil, err
	}

	s.logger.Info("discount code redeemed",
		zap.String("code", app.Code.Code),
		zap.String("user_id", userID),
		zap.String("discount_amount", app.DiscountAmount.String()),
	)
	return app, nil
}

// discountAmount computes the raw discount for a purchase: the percentage or
// fixed value, capped by max_discount_amount when set, never above the
// purchase itself.
func discountAmount(code *DiscountCode, purchase decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	if code.Type == TypePercentage {
		amount = purchase.Mul(code.Value).Div(hundred)
	} else {
		amount = code.Value
	}
	if code.MaxDiscountAmount.IsPositive() && amount.GreaterThan(code.MaxDiscountAmount) {
		amount = code.MaxDiscountAmount
	}
	if amount.GreaterThan(purchase) {
		amount = purchase
	}
	return amount
}
