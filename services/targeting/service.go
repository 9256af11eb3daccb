package targeting

import (
	"context"
	"strings"

	"adserve-engine/pkg/errutil"
	"adserve-engine/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns reads and bulk writes of targeting criteria and exposes the
// matcher over fetched rows. The serving path calls MatchAd per candidate ad.
type Service struct {
	db       *gorm.DB
	criteria repository.Repository[Criterion]
	node     *snowflake.Node
	logger   *zap.Logger
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Logger *zap.Logger `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       p.DB,
		criteria: repository.ProvideStore[Criterion](p.DB),
		node:     p.Node,
		logger:   logger,
	}
}

// ReplaceCriteria swaps the full criteria set of an ad in one transaction.
// Criteria are immutable once stored, so edits always arrive as the complete
// new list.
func (s *Service) ReplaceCriteria(ctx context.Context, adID int64, specs []CriterionSpec) ([]*Criterion, error) {
	if adID == 0 {
		return nil, errutil.BadRequest("ad_id is required", nil)
	}

	rows := make([]*Criterion, 0, len(specs))
	for _, spec := range specs {
		typ := CriterionType(strings.TrimSpace(string(spec.Type)))
		val := strings.TrimSpace(spec.Value)
		if typ == "" || val == "" {
			return nil, errutil.BadRequest("criterion type and value are required", nil)
		}
		rows = append(rows, &Criterion{
			ID:    s.node.Generate().String(),
			AdID:  adID,
			Type:  typ,
			Value: val,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ad_id = ?", adID).Delete(&Criterion{}).Error; err != nil {
			return err
		}
		return s.criteria.WithTrx(tx).BatchCreate(ctx, rows)
	})
	if err != nil {
		s.logger.Error("failed to replace targeting criteria", zap.Int64("ad_id", adID), zap.Error(err))
		return nil, errutil.Internal("failed to replace targeting criteria", err)
	}

	return rows, nil
}

// Criteria returns the stored criteria for an ad.
func (s *Service) Criteria(ctx context.Context, adID int64) ([]*Criterion, error) {
	if adID == 0 {
		return nil, errutil.BadRequest("ad_id is required", nil)
	}
	return s.criteria.Find(ctx, &Criterion{AdID: adID})
}

// MatchAd fetches an ad's criteria and evaluates them against the request
// context.
func (s *Service) MatchAd(ctx context.Context, adID int64, reqCtx Context) (bool, error) {
	rows, err := s.Criteria(ctx, adID)
	if err != nil {
		return false, err
	}
	return Matches(rows, reqCtx), nil
}
