package segment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"adserve-engine/pkg/predicate"
)

// Repository renders predicates onto visitor_profiles and rebuilds segment
// membership. It is the only place a predicate meets SQL; every value is
// bound as a parameter.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

type RepositoryParams struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewRepository(p RepositoryParams) *Repository {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: p.DB, logger: logger}
}

// MatchingVisitors returns every profile the predicate selects. The
// universal-true predicate selects all profiles.
func (r *Repository) MatchingVisitors(ctx context.Context, pred *predicate.Predicate) ([]*VisitorProfile, error) {
	tx := r.db.WithContext(ctx).Model(&VisitorProfile{})
	tx, err := applyPredicate(tx, pred)
	if err != nil {
		return nil, err
	}

	var out []*VisitorProfile
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// applyPredicate renders each condition as a parameterized WHERE clause using
// the allow-listed column map.
func applyPredicate(tx *gorm.DB, pred *predicate.Predicate) (*gorm.DB, error) {
	for _, cond := range pred.Conditions() {
		spec, ok := queryableFields[cond.Field]
		if !ok {
			return nil, fmt.Errorf("field %q is not queryable", cond.Field)
		}
		col := spec.column

		switch cond.Operator {
		case predicate.OpEquals:
			tx = tx.Where(col+" = ?", cond.Values[0])
		case predicate.OpNotEquals:
			tx = tx.Where(col+" <> ?", cond.Values[0])
		case predicate.OpContains:
			tx = tx.Where(col+" LIKE ?", fmt.Sprintf("%%%v%%", cond.Values[0]))
		case predicate.OpStartsWith:
			tx = tx.Where(col+" LIKE ?", fmt.Sprintf("%v%%", cond.Values[0]))
		case predicate.OpGreaterThan:
			tx = tx.Where(col+" > ?", cond.Values[0])
		case predicate.OpLessThan:
			tx = tx.Where(col+" < ?", cond.Values[0])
		case predicate.OpBetween:
			tx = tx.Where(col+" BETWEEN ? AND ?", cond.Values[0], cond.Values[1])
		case predicate.OpIn:
			tx = tx.Where(col+" IN ?", cond.Values)
		case predicate.OpExists:
			if spec.kind == kindString {
				tx = tx.Where(col + " IS NOT NULL AND " + col + " <> ''")
			} else {
				tx = tx.Where(col + " IS NOT NULL")
			}
		case predicate.OpNotExists:
			if spec.kind == kindString {
				tx = tx.Where(col + " IS NULL OR " + col + " = ''")
			} else {
				tx = tx.Where(col + " IS NULL")
			}
		default:
			return nil, fmt.Errorf("operator %q is not renderable", cond.Operator)
		}
	}
	return tx, nil
}

// RefreshMembership replaces a segment's member rows with the given visitors
// and updates the segment's counters, all in one transaction.
func (r *Repository) RefreshMembership(ctx context.Context, segmentID string, visitors []*VisitorProfile, now time.Time) error {
	members := make([]*SegmentMember, 0, len(visitors))
	for _, v := range visitors {
		members = append(members, &SegmentMember{
			SegmentID: segmentID,
			VisitorID: v.VisitorID,
			AddedAt:   now,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("segment_id = ?", segmentID).Delete(&SegmentMember{}).Error; err != nil {
			return err
		}
		if len(members) > 0 {
			if err := tx.CreateInBatches(members, 500).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Segment{}).
			Where("id = ?", segmentID).
			Updates(map[string]any{
				"member_count":      len(members),
				"last_refreshed_at": now,
			}).Error
	})
}

// MembershipsFor lists the segment IDs a visitor belongs to. The serving
// path feeds these into the targeting context.
func (r *Repository) MembershipsFor(ctx context.Context, visitorID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&SegmentMember{}).
		Where("visitor_id = ?", visitorID).
		Pluck("segment_id", &ids).Error
	return ids, err
}
