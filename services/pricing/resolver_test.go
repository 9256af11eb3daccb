package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adserve-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	require.True(t, want.Equal(got), "want %s, got %s", want, got)
}

// 2026-08-25 is a Tuesday (weekday 2).
var tuesdayMorning = time.Date(2026, time.August, 25, 10, 30, 0, 0, time.UTC)

func newTestResolver(t *testing.T) *Resolver {
	db := testutil.NewTestDB(t,
		&PricingModel{}, &PositionPricing{}, &TimePricingRule{}, &PricingPlanRule{},
	)
	return NewResolver(ResolverParams{DB: db})
}

func TestTimeMultiplier(t *testing.T) {
	rules := []*TimePricingRule{
		{PositionID: 1, DayOfWeek: 2, StartHour: 9, EndHour: 17, Multiplier: dec("1.5"), IsActive: true},
	}

	requireDecimal(t, dec("1.5"), TimeMultiplier(rules, tuesdayMorning))

	// Same day outside the window falls back to 1.0.
	evening := time.Date(2026, time.August, 25, 20, 0, 0, 0, time.UTC)
	requireDecimal(t, dec("1"), TimeMultiplier(rules, evening))

	// Other weekday, same hour.
	wednesday := time.Date(2026, time.August, 26, 10, 30, 0, 0, time.UTC)
	requireDecimal(t, dec("1"), TimeMultiplier(rules, wednesday))

	// End hour is exclusive.
	atEnd := time.Date(2026, time.August, 25, 17, 0, 0, 0, time.UTC)
	requireDecimal(t, dec("1"), TimeMultiplier(rules, atEnd))

	// Inactive rules never apply.
	rules[0].IsActive = false
	requireDecimal(t, dec("1"), TimeMultiplier(rules, tuesdayMorning))
}

func TestPerUnit(t *testing.T) {
	// $10.00 cpm scaled by a 1.5 time window prices one impression at $0.015.
	requireDecimal(t, dec("0.015"), PerUnit(dec("10.00"), dec("1.5"), dec("1"), KindImpression))

	// Clicks are priced per unit, no per-mille conversion.
	requireDecimal(t, dec("0.75"), PerUnit(dec("0.50"), dec("1.5"), dec("1"), KindClick))

	// A zero ad multiplier means unset.
	requireDecimal(t, dec("0.01"), PerUnit(dec("10.00"), dec("1"), decimal.Zero, KindImpression))

	// Both multipliers compound.
	requireDecimal(t, dec("0.03"), PerUnit(dec("10.00"), dec("1.5"), dec("2"), KindImpression))

	// The impression price is exactly the click price divided by 1000 for
	// identical base and multipliers.
	click := PerUnit(dec("10.00"), dec("1.5"), dec("2"), KindClick)
	impression := PerUnit(dec("10.00"), dec("1.5"), dec("2"), KindImpression)
	requireDecimal(t, click.Div(decimal.NewFromInt(1000)), impression)
}

func TestEffectivePriceWithPriceCard(t *testing.T) {
	db := testutil.NewTestDB(t,
		&PricingModel{}, &PositionPricing{}, &TimePricingRule{}, &PricingPlanRule{},
	)
	r := NewResolver(ResolverParams{DB: db})
	ctx := context.Background()

	require.NoError(t, db.Create(&PricingModel{Type: ModelCPM, IsActive: true}).Error)
	require.NoError(t, db.Create(&PositionPricing{
		PositionID: 7, PricingModelID: 1,
		BasePrice: dec("10.00"), MinBid: dec("0.001"), IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&TimePricingRule{
		PositionID: 7, DayOfWeek: 2, StartHour: 9, EndHour: 17,
		Multiplier: dec("1.5"), IsActive: true,
	}).Error)

	ad := AdPricing{AdID: 1, PositionID: 7, BidAmount: dec("3.00")}

	price, err := r.EffectivePrice(ctx, ad, KindImpression, tuesdayMorning)
	require.NoError(t, err)
	requireDecimal(t, dec("0.015"), price)

	// Outside the time window the base price stands.
	evening := time.Date(2026, time.August, 25, 20, 0, 0, 0, time.UTC)
	price, err = r.EffectivePrice(ctx, ad, KindImpression, evening)
	require.NoError(t, err)
	requireDecimal(t, dec("0.01"), price)
}

func TestEffectivePricePicksLowestActiveModel(t *testing.T) {
	db := testutil.NewTestDB(t,
		&PricingModel{}, &PositionPricing{}, &TimePricingRule{}, &PricingPlanRule{},
	)
	r := NewResolver(ResolverParams{DB: db})
	ctx := context.Background()

	require.NoError(t, db.Create(&PricingModel{Type: ModelCPM, IsActive: false}).Error) // id 1
	require.NoError(t, db.Create(&PricingModel{Type: ModelCPM, IsActive: true}).Error)  // id 2
	require.NoError(t, db.Create(&PricingModel{Type: ModelCPM, IsActive: true}).Error)  // id 3
	require.NoError(t, db.Create(&PositionPricing{
		PositionID: 7, PricingModelID: 2, BasePrice: dec("4.00"), IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&PositionPricing{
		PositionID: 7, PricingModelID: 3, BasePrice: dec("8.00"), IsActive: true,
	}).Error)

	// Family fallback selects model 2, the lowest-id active cpm model.
	price, err := r.EffectivePrice(ctx, AdPricing{AdID: 1, PositionID: 7, BidAmount: dec("1")}, KindImpression, tuesdayMorning)
	require.NoError(t, err)
	requireDecimal(t, dec("0.004"), price)

	// An explicit model on the ad overrides the family fallback.
	modelID := int64(3)
	price, err = r.EffectivePrice(ctx, AdPricing{AdID: 1, PositionID: 7, PricingModelID: &modelID, BidAmount: dec("1")}, KindImpression, tuesdayMorning)
	require.NoError(t, err)
	requireDecimal(t, dec("0.008"), price)
}

func TestEffectivePriceFallsBackToBid(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	ad := AdPricing{AdID: 1, PositionID: 99, BidAmount: dec("3.00")}

	price, err := r.EffectivePrice(ctx, ad, KindImpression, tuesdayMorning)
	require.NoError(t, err)
	requireDecimal(t, dec("0.003"), price)

	price, err = r.EffectivePrice(ctx, ad, KindClick, tuesdayMorning)
	require.NoError(t, err)
	requireDecimal(t, dec("3.00"), price)
}

func TestDiscountForPrecedence(t *testing.T) {
	db := testutil.NewTestDB(t,
		&PricingModel{}, &PositionPricing{}, &TimePricingRule{}, &PricingPlanRule{},
	)
	r := NewResolver(ResolverParams{DB: db})
	ctx := context.Background()

	require.NoError(t, db.Create(NewPlanRule(1, AnyRef(), AnyRef(), dec("5"))).Error)
	require.NoError(t, db.Create(NewPlanRule(1, AnyRef(), ExactRef(2), dec("10"))).Error)
	require.NoError(t, db.Create(NewPlanRule(1, ExactRef(7), ExactRef(2), dec("20"))).Error)

	// Exact rule wins over both wildcard tiers.
	pct, ok, err := r.DiscountFor(ctx, 1, 7, 2)
	require.NoError(t, err)
	require.True(t, ok)
	requireDecimal(t, dec("20"), pct)

	// Other position, same model: the any-position rule for the model.
	pct, ok, err = r.DiscountFor(ctx, 1, 8, 2)
	require.NoError(t, err)
	require.True(t, ok)
	requireDecimal(t, dec("10"), pct)

	// Unrelated model: the any-model rule.
	pct, ok, err = r.DiscountFor(ctx, 1, 8, 9)
	require.NoError(t, err)
	require.True(t, ok)
	requireDecimal(t, dec("5"), pct)

	// Unknown plan matches nothing.
	_, ok, err = r.DiscountFor(ctx, 99, 7, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestApplyPlanDiscount(t *testing.T) {
	db := testutil.NewTestDB(t,
		&PricingModel{}, &PositionPricing{}, &TimePricingRule{}, &PricingPlanRule{},
	)
	r := NewResolver(ResolverParams{DB: db})
	ctx := context.Background()

	require.NoError(t, db.Create(&PricingPlanRule{PlanID: 1, DiscountPercentage: dec("25")}).Error)

	price, err := r.ApplyPlanDiscount(ctx, dec("0.02"), 1, 7, 2)
	require.NoError(t, err)
	requireDecimal(t, dec("0.015"), price)

	// No rule leaves the price untouched.
	price, err = r.ApplyPlanDiscount(ctx, dec("0.02"), 99, 7, 2)
	require.NoError(t, err)
	requireDecimal(t, dec("0.02"), price)

	// A full discount bottoms out at zero, never below.
	require.NoError(t, db.Create(&PricingPlanRule{PlanID: 2, DiscountPercentage: dec("100")}).Error)
	price, err = r.ApplyPlanDiscount(ctx, dec("0.02"), 2, 7, 2)
	require.NoError(t, err)
	requireDecimal(t, decimal.Zero, price)
}

func TestApplyPlanDiscountMonotonic(t *testing.T) {
	db := testutil.NewTestDB(t,
		&PricingModel{}, &PositionPricing{}, &TimePricingRule{}, &PricingPlanRule{},
	)
	r := NewResolver(ResolverParams{DB: db})
	ctx := context.Background()

	pcts := []string{"0", "10", "25", "50", "75", "100"}
	for i, pct := range pcts {
		require.NoError(t, db.Create(NewPlanRule(int64(10+i), AnyRef(), AnyRef(), dec(pct))).Error)
	}

	// A higher percentage never yields a higher price, and the price never
	// drops below zero.
	prev := dec("0.02")
	for i := range pcts {
		price, err := r.ApplyPlanDiscount(ctx, dec("0.02"), int64(10+i), 7, 2)
		require.NoError(t, err)
		require.False(t, price.IsNegative())
		require.True(t, price.LessThanOrEqual(prev), "price %s exceeds %s", price, prev)
		prev = price
	}
}
