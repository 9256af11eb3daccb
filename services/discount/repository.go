package discount

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"adserve-engine/pkg/db/option"
	"adserve-engine/pkg/repository"
)

// UsageRepository owns the redemption critical section.
type UsageRepository struct {
	db   *gorm.DB
	repo repository.Repository[DiscountUsage]
}

type UsageRepositoryParams struct {
	DB *gorm.DB
}

func NewUsageRepository(p UsageRepositoryParams) *UsageRepository {
	return &UsageRepository{
		db:   p.DB,
		repo: repository.ProvideStore[DiscountUsage](p.DB),
	}
}

// ReserveUsage increments the code's usage count and writes the usage row in
// one transaction. The locked read plus conditional UPDATE serialize
// concurrent redemptions of the same code, so the last slot is never handed
// out twice; the per-user check runs after them, already serialized, and only
// for identified users. Anonymous redemptions repeat freely.
func (r *UsageRepository) ReserveUsage(ctx context.Context, codeID int64, usage *DiscountUsage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var code DiscountCode
		locked := option.Apply(tx.Where("id = ?", codeID), option.WithLockForUpdate())
		if err := locked.First(&code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return err
		}

		res := tx.Model(&DiscountCode{}).
			Where("id = ? AND (usage_limit = 0 OR usage_count < usage_limit)", codeID).
			Update("usage_count", gorm.Expr("usage_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUsageLimitReached
		}

		if usage.UserID != "" {
			var used int64
			if err := tx.Model(&DiscountUsage{}).
				Where("discount_code_id = ? AND user_id = ?", codeID, usage.UserID).
				Count(&used).Error; err != nil {
				return err
			}
			if used > 0 {
				return ErrAlreadyUsed
			}
		}

		return tx.Create(usage).Error
	})
}

// UsageCountFor counts logged redemptions of a code.
func (r *UsageRepository) UsageCountFor(ctx context.Context, codeID int64) (int64, error) {
	return r.repo.Count(ctx, &DiscountUsage{DiscountCodeID: codeID})
}

// UserHasUsed reports whether the user already redeemed the code.
func (r *UsageRepository) UserHasUsed(ctx context.Context, codeID int64, userID string) (bool, error) {
	n, err := r.repo.Count(ctx, &DiscountUsage{DiscountCodeID: codeID, UserID: userID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UsagesFor lists the usage log of one code, newest first. Pass
// option.WithLimit and option.WithOffset to page through large logs.
func (r *UsageRepository) UsagesFor(ctx context.Context, codeID int64, opts ...option.QueryOption) ([]*DiscountUsage, error) {
	opts = append([]option.QueryOption{option.WithOrderBy("created_at DESC")}, opts...)
	return r.repo.Find(ctx, &DiscountUsage{DiscountCodeID: codeID}, opts...)
}
