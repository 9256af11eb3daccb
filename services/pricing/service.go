package pricing

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adserve-engine/pkg/db/option"
	"adserve-engine/pkg/errutil"
	"adserve-engine/pkg/repository"
)

// Service maintains the pricing rule tables the Resolver reads.
type Service struct {
	db        *gorm.DB
	models    repository.Repository[PricingModel]
	timeRules repository.Repository[TimePricingRule]
	planRules repository.Repository[PricingPlanRule]
	logger    *zap.Logger
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Logger *zap.Logger `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        p.DB,
		models:    repository.ProvideStore[PricingModel](p.DB),
		timeRules: repository.ProvideStore[TimePricingRule](p.DB),
		planRules: repository.ProvideStore[PricingPlanRule](p.DB),
		logger:    logger,
	}
}

// UpsertPositionPricing creates the price card for (position, model) or
// updates it in place when one already exists.
func (s *Service) UpsertPositionPricing(ctx context.Context, card *PositionPricing) error {
	if card.PositionID == 0 || card.PricingModelID == 0 {
		return errutil.ValidationFailed("position_id and pricing_model_id are required", nil)
	}
	if card.BasePrice.IsNegative() || card.MinBid.IsNegative() {
		return errutil.ValidationFailed("base_price and min_bid must not be negative", nil)
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "position_id"}, {Name: "pricing_model_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_price", "min_bid", "is_active", "updated_at",
		}),
	}).Create(card).Error
}

// CreateTimeRule validates and stores a time pricing rule. Active rules for
// the same position and day must not overlap.
func (s *Service) CreateTimeRule(ctx context.Context, rule *TimePricingRule) error {
	if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
		return errutil.ValidationFailed("day_of_week must be between 0 and 6", nil)
	}
	if rule.StartHour < 0 || rule.EndHour > 24 || rule.StartHour >= rule.EndHour {
		return errutil.ValidationFailed("hour window must satisfy 0 <= start < end <= 24", nil)
	}
	if rule.Multiplier.IsNegative() {
		return errutil.ValidationFailed("multiplier must not be negative", nil)
	}

	if rule.IsActive {
		existing, err := s.timeRules.Find(ctx, &TimePricingRule{
			PositionID: rule.PositionID,
			IsActive:   true,
		})
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.DayOfWeek == rule.DayOfWeek &&
				rule.StartHour < other.EndHour && other.StartHour < rule.EndHour {
				return errutil.Conflict(fmt.Sprintf(
					"window overlaps rule %d (%02d:00-%02d:00)",
					other.ID, other.StartHour, other.EndHour,
				), nil)
			}
		}
	}

	return s.timeRules.Create(ctx, rule)
}

// CreatePlanRule stores a plan discount rule. Refs express the wildcard
// dimensions; percentages outside [0, 100] are rejected.
func (s *Service) CreatePlanRule(ctx context.Context, rule *PricingPlanRule) error {
	if rule.PlanID == 0 {
		return errutil.ValidationFailed("plan_id is required", nil)
	}
	if rule.DiscountPercentage.IsNegative() || rule.DiscountPercentage.GreaterThan(hundred) {
		return errutil.ValidationFailed("discount_percentage must be between 0 and 100", nil)
	}
	return s.planRules.Create(ctx, rule)
}

// ActiveModels lists the active models of one family, lowest id first. The
// first entry is the model the resolver falls back to.
func (s *Service) ActiveModels(ctx context.Context, family ModelType) ([]*PricingModel, error) {
	return s.models.Find(ctx,
		&PricingModel{Type: family, IsActive: true},
		option.WithOrderBy("id ASC"),
	)
}
