package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"adserve-engine/pkg/db/option"
	"adserve-engine/pkg/repository"
)

var (
	one      = decimal.NewFromInt(1)
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// Resolver computes effective per-unit prices and plan discounts from the
// pricing rule tables. Every time-sensitive lookup takes the evaluation
// instant explicitly; the resolver never reads the wall clock.
type Resolver struct {
	models    repository.Repository[PricingModel]
	positions repository.Repository[PositionPricing]
	timeRules repository.Repository[TimePricingRule]
	planRules repository.Repository[PricingPlanRule]
	logger    *zap.Logger
}

type ResolverParams struct {
	fx.In

	DB     *gorm.DB
	Logger *zap.Logger `optional:"true"`
}

func NewResolver(p ResolverParams) *Resolver {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		models:    repository.ProvideStore[PricingModel](p.DB),
		positions: repository.ProvideStore[PositionPricing](p.DB),
		timeRules: repository.ProvideStore[TimePricingRule](p.DB),
		planRules: repository.ProvideStore[PricingPlanRule](p.DB),
		logger:    logger,
	}
}

// EffectivePrice resolves the price of one unit (one impression or one click)
// for the given ad at the given instant.
//
// Resolution order: the ad's explicit pricing model, else the lowest-id
// active model of the kind's family. With a model in hand the position's
// price card supplies the base price, scaled by the active time-window
// multiplier and the ad's own multiplier. Without a price card the raw bid
// is used as-is, still divided by 1000 for impressions since bids are quoted
// per mille.
func (r *Resolver) EffectivePrice(ctx context.Context, ad AdPricing, kind Kind, now time.Time) (decimal.Decimal, error) {
	var modelID int64
	if ad.PricingModelID != nil {
		modelID = *ad.PricingModelID
	} else {
		model, err := r.models.FindOne(ctx,
			&PricingModel{Type: familyFor(kind), IsActive: true},
			option.WithOrderBy("id ASC"),
		)
		if err != nil {
			return decimal.Zero, err
		}
		if model != nil {
			modelID = model.ID
		}
	}

	var card *PositionPricing
	if modelID != 0 {
		var err error
		card, err = r.positions.FindOne(ctx, &PositionPricing{
			PositionID:     ad.PositionID,
			PricingModelID: modelID,
			IsActive:       true,
		})
		if err != nil {
			return decimal.Zero, err
		}
	}

	if card == nil {
		if kind == KindImpression {
			return ad.BidAmount.Div(thousand), nil
		}
		return ad.BidAmount, nil
	}

	rules, err := r.timeRules.Find(ctx, &TimePricingRule{PositionID: ad.PositionID, IsActive: true})
	if err != nil {
		return decimal.Zero, err
	}

	return PerUnit(card.BasePrice, TimeMultiplier(rules, now), ad.PriceMultiplier, kind), nil
}

// TimeMultiplier returns the multiplier of the first rule whose window covers
// now, or 1.0 when no rule applies. Active rules for one (position, day) are
// non-overlapping, so at most one rule can match.
func TimeMultiplier(rules []*TimePricingRule, now time.Time) decimal.Decimal {
	for _, rule := range rules {
		if rule.AppliesAt(now) {
			return rule.Multiplier
		}
	}
	return one
}

// PerUnit scales a base price by the time and ad multipliers and converts a
// per-mille cpm base into a single-impression price. A zero ad multiplier
// means "unset" and scales by 1.0.
func PerUnit(base, timeMultiplier, adMultiplier decimal.Decimal, kind Kind) decimal.Decimal {
	if adMultiplier.IsZero() {
		adMultiplier = one
	}
	price := base.Mul(timeMultiplier).Mul(adMultiplier)
	if kind == KindImpression {
		price = price.Div(thousand)
	}
	return price
}

// DiscountFor returns the plan's discount percentage for a (position, model)
// pair. Rule precedence: an exact (position, model) rule beats an any-position
// rule for the model, which beats an any-model rule. The boolean reports
// whether any rule matched; no rule is a normal outcome, not an error.
func (r *Resolver) DiscountFor(ctx context.Context, planID, positionID, modelID int64) (decimal.Decimal, bool, error) {
	rules, err := r.planRules.Find(ctx, &PricingPlanRule{PlanID: planID}, option.WithOrderBy("id ASC"))
	if err != nil {
		return decimal.Zero, false, err
	}

	var positionAny, modelAny *PricingPlanRule
	for _, rule := range rules {
		pos, model := rule.PositionRef(), rule.ModelRef()
		if !pos.Covers(positionID) || !model.Covers(modelID) {
			continue
		}
		switch {
		case !pos.IsAny() && !model.IsAny():
			return rule.DiscountPercentage, true, nil
		case pos.IsAny() && !model.IsAny():
			if positionAny == nil {
				positionAny = rule
			}
		default:
			if modelAny == nil {
				modelAny = rule
			}
		}
	}
	if positionAny != nil {
		return positionAny.DiscountPercentage, true, nil
	}
	if modelAny != nil {
		return modelAny.DiscountPercentage, true, nil
	}
	return decimal.Zero, false, nil
}

// ApplyPlanDiscount reduces price by the plan's discount percentage for the
// given scope. Without a matching rule the price is returned unchanged; the
// result never drops below zero.
func (r *Resolver) ApplyPlanDiscount(ctx context.Context, price decimal.Decimal, planID, positionID, modelID int64) (decimal.Decimal, error) {
	pct, ok, err := r.DiscountFor(ctx, planID, positionID, modelID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return price, nil
	}
	discounted := price.Mul(hundred.Sub(pct)).Div(hundred)
	if discounted.IsNegative() {
		return decimal.Zero, nil
	}
	return discounted, nil
}
