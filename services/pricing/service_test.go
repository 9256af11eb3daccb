package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"adserve-engine/services/testutil"
)

func newTestPricingService(t *testing.T) *Service {
	db := testutil.NewTestDB(t,
		&PricingModel{}, &PositionPricing{}, &TimePricingRule{}, &PricingPlanRule{},
	)
	return NewService(ServiceParams{DB: db})
}

func TestUpsertPositionPricing(t *testing.T) {
	svc := newTestPricingService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpsertPositionPricing(ctx, &PositionPricing{
		PositionID: 7, PricingModelID: 1, BasePrice: dec("10.00"), MinBid: dec("0.001"), IsActive: true,
	}))

	// Same (position, model) pair updates in place instead of conflicting.
	require.NoError(t, svc.UpsertPositionPricing(ctx, &PositionPricing{
		PositionID: 7, PricingModelID: 1, BasePrice: dec("12.00"), MinBid: dec("0.002"), IsActive: true,
	}))

	var count int64
	require.NoError(t, svc.db.Model(&PositionPricing{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var card PositionPricing
	require.NoError(t, svc.db.First(&card).Error)
	requireDecimal(t, dec("12.00"), card.BasePrice)
}

func TestUpsertPositionPricingValidation(t *testing.T) {
	svc := newTestPricingService(t)
	ctx := context.Background()

	require.Error(t, svc.UpsertPositionPricing(ctx, &PositionPricing{PricingModelID: 1, BasePrice: dec("1")}))
	require.Error(t, svc.UpsertPositionPricing(ctx, &PositionPricing{
		PositionID: 7, PricingModelID: 1, BasePrice: dec("-1"),
	}))
}

func TestCreateTimeRuleRejectsOverlap(t *testing.T) {
	svc := newTestPricingService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateTimeRule(ctx, &TimePricingRule{
		PositionID: 7, DayOfWeek: 2, StartHour: 9, EndHour: 17, Multiplier: dec("1.5"), IsActive: true,
	}))

	// Overlapping active window on the same position and day.
	err := svc.CreateTimeRule(ctx, &TimePricingRule{
		PositionID: 7, DayOfWeek: 2, StartHour: 16, EndHour: 20, Multiplier: dec("2"), IsActive: true,
	})
	require.Error(t, err)

	// Adjacent windows do not overlap; end hour is exclusive.
	require.NoError(t, svc.CreateTimeRule(ctx, &TimePricingRule{
		PositionID: 7, DayOfWeek: 2, StartHour: 17, EndHour: 20, Multiplier: dec("2"), IsActive: true,
	}))

	// Other days and other positions are independent.
	require.NoError(t, svc.CreateTimeRule(ctx, &TimePricingRule{
		PositionID: 7, DayOfWeek: 3, StartHour: 9, EndHour: 17, Multiplier: dec("1.5"), IsActive: true,
	}))
	require.NoError(t, svc.CreateTimeRule(ctx, &TimePricingRule{
		PositionID: 8, DayOfWeek: 2, StartHour: 9, EndHour: 17, Multiplier: dec("1.5"), IsActive: true,
	}))
}

func TestCreateTimeRuleValidation(t *testing.T) {
	svc := newTestPricingService(t)
	ctx := context.Background()

	require.Error(t, svc.CreateTimeRule(ctx, &TimePricingRule{DayOfWeek: 7, StartHour: 9, EndHour: 17, Multiplier: dec("1")}))
	require.Error(t, svc.CreateTimeRule(ctx, &TimePricingRule{DayOfWeek: 2, StartHour: 17, EndHour: 9, Multiplier: dec("1")}))
	require.Error(t, svc.CreateTimeRule(ctx, &TimePricingRule{DayOfWeek: 2, StartHour: 9, EndHour: 25, Multiplier: dec("1")}))
	require.Error(t, svc.CreateTimeRule(ctx, &TimePricingRule{DayOfWeek: 2, StartHour: 9, EndHour: 17, Multiplier: dec("-1")}))
}

func TestCreatePlanRuleValidation(t *testing.T) {
	svc := newTestPricingService(t)
	ctx := context.Background()

	require.Error(t, svc.CreatePlanRule(ctx, &PricingPlanRule{DiscountPercentage: dec("10")}))
	require.Error(t, svc.CreatePlanRule(ctx, &PricingPlanRule{PlanID: 1, DiscountPercentage: dec("101")}))
	require.NoError(t, svc.CreatePlanRule(ctx, &PricingPlanRule{PlanID: 1, DiscountPercentage: dec("10")}))
}

func TestActiveModelsOrdering(t *testing.T) {
	svc := newTestPricingService(t)
	ctx := context.Background()

	require.NoError(t, svc.db.Create(&PricingModel{Type: ModelCPM, IsActive: true}).Error)
	require.NoError(t, svc.db.Create(&PricingModel{Type: ModelCPC, IsActive: true}).Error)
	require.NoError(t, svc.db.Create(&PricingModel{Type: ModelCPM, IsActive: false}).Error)
	require.NoError(t, svc.db.Create(&PricingModel{Type: ModelCPM, IsActive: true}).Error)

	models, err := svc.ActiveModels(ctx, ModelCPM)
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Less(t, models[0].ID, models[1].ID)
}
