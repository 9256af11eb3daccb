package segment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	taskdef "adserve-engine/pkg/asynq"
	"adserve-engine/pkg/config"
	"adserve-engine/pkg/errutil"
	"adserve-engine/pkg/repository"
)

const defaultCacheTTL = 5 * time.Minute

// Service owns segment definitions, compiled-criteria caching and membership
// refresh. Refreshes run inline or through the task queue; the serving path
// only ever reads segment_members.
type Service struct {
	db       *gorm.DB
	segments repository.Repository[Segment]
	repo     *Repository
	cache    *Cache
	node     *snowflake.Node
	client   *asynq.Client
	logger   *zap.Logger
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config `optional:"true"`
	Client *asynq.Client  `optional:"true"`
	Logger *zap.Logger    `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := defaultCacheTTL
	if p.Config != nil && p.Config.Engine.SegmentCacheTTL > 0 {
		ttl = p.Config.Engine.SegmentCacheTTL
	}
	return &Service{
		db:       p.DB,
		segments: repository.ProvideStore[Segment](p.DB),
		repo:     NewRepository(RepositoryParams{DB: p.DB, Logger: logger}),
		cache:    NewCache(ttl),
		node:     p.Node,
		client:   p.Client,
		logger:   logger,
	}
}

// CreateSegment validates and stores a new segment. Compilation runs up
// front so bad criteria surface as skips at creation time, not at refresh.
func (s *Service) CreateSegment(ctx context.Context, name, description string, criteria []Criterion) (*Segment, []Skip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, errutil.ValidationFailed("name is required", nil)
	}

	_, skips := Compile(criteria)
	s.logSkips(name, skips)

	raw, err := json.Marshal(criteria)
	if err != nil {
		return nil, skips, err
	}

	seg := &Segment{
		ID:          s.node.Generate().String(),
		Name:        name,
		Slug:        slug.Make(name),
		Description: description,
		Criteria:    datatypes.JSON(raw),
		IsActive:    true,
	}
	if err := s.segments.Create(ctx, seg); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, skips, errutil.Conflict("a segment with this name already exists", err)
		}
		return nil, skips, err
	}
	return seg, skips, nil
}

// UpdateCriteria replaces a segment's criteria list and drops the cached
// compilation. Membership is not recomputed here; enqueue a refresh.
func (s *Service) UpdateCriteria(ctx context.Context, segmentID string, criteria []Criterion) ([]Skip, error) {
	seg, err := s.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, err
	}

	_, skips := Compile(criteria)
	s.logSkips(seg.Name, skips)

	raw, err := json.Marshal(criteria)
	if err != nil {
		return skips, err
	}
	if err := s.segments.Update(ctx, segmentID, map[string]any{"criteria": datatypes.JSON(raw)}); err != nil {
		return skips, err
	}
	s.cache.Invalidate(segmentID)
	return skips, nil
}

func (s *Service) GetSegment(ctx context.Context, segmentID string) (*Segment, error) {
	seg, err := s.segments.FindOne(ctx, &Segment{ID: segmentID})
	if err != nil {
		return nil, err
	}
	if seg == nil {
		return nil, errutil.NotFound("segment not found", nil)
	}
	return seg, nil
}

func (s *Service) ListActive(ctx context.Context) ([]*Segment, error) {
	return s.segments.Find(ctx, &Segment{IsActive: true})
}

// Compiled returns the segment's cached compilation, compiling on miss.
func (s *Service) Compiled(ctx context.Context, segmentID string) (*CompiledSegment, error) {
	return s.cache.GetOrCompile(segmentID, func() (*CompiledSegment, error) {
		seg, err := s.GetSegment(ctx, segmentID)
		if err != nil {
			return nil, err
		}
		criteria, err := decodeCriteria(seg)
		if err != nil {
			return nil, err
		}
		pred, skips := Compile(criteria)
		return &CompiledSegment{
			SegmentID: segmentID,
			Criteria:  criteria,
			Predicate: pred,
			Skips:     skips,
		}, nil
	})
}

// RefreshSegment recomputes the segment's membership from visitor profiles.
func (s *Service) RefreshSegment(ctx context.Context, segmentID string, now time.Time) error {
	compiled, err := s.Compiled(ctx, segmentID)
	if err != nil {
		return err
	}

	visitors, err := s.repo.MatchingVisitors(ctx, compiled.Predicate)
	if err != nil {
		return err
	}
	if err := s.repo.RefreshMembership(ctx, segmentID, visitors, now); err != nil {
		return err
	}

	s.logger.Info("segment refreshed",
		zap.String("segment_id", segmentID),
		zap.Int("member_count", len(visitors)),
	)
	return nil
}

// Preview evaluates the segment's criteria against one profile in memory.
func (s *Service) Preview(ctx context.Context, segmentID string, profile *VisitorProfile) (bool, []Skip, error) {
	compiled, err := s.Compiled(ctx, segmentID)
	if err != nil {
		return false, nil, err
	}
	return EvaluateProfile(compiled.Criteria, profile)
}

// MembershipsFor lists the segment IDs a visitor belongs to.
func (s *Service) MembershipsFor(ctx context.Context, visitorID string) ([]string, error) {
	return s.repo.MembershipsFor(ctx, visitorID)
}

// EnqueueRefresh queues one segment for background refresh.
func (s *Service) EnqueueRefresh(ctx context.Context, segmentID string) error {
	if s.client == nil {
		return errutil.Internal("task queue is not configured", nil)
	}
	payload, err := json.Marshal(taskdef.SegmentRefreshPayload{SegmentID: segmentID})
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx,
		asynq.NewTask(taskdef.SegmentRefreshTask, payload),
		asynq.Queue("low"),
	)
	return err
}

// EnqueueRefreshAll queues the fan-out task that refreshes every active
// segment.
func (s *Service) EnqueueRefreshAll(ctx context.Context) error {
	if s.client == nil {
		return errutil.Internal("task queue is not configured", nil)
	}
	_, err := s.client.EnqueueContext(ctx,
		asynq.NewTask(taskdef.SegmentRefreshAllTask, nil),
		asynq.Queue("low"),
	)
	return err
}

func (s *Service) logSkips(name string, skips []Skip) {
	for _, skip := range skips {
		s.logger.Warn("segment criterion skipped",
			zap.String("segment", name),
			zap.String("skip", skip.String()),
		)
	}
}

func decodeCriteria(seg *Segment) ([]Criterion, error) {
	if len(seg.Criteria) == 0 {
		return nil, nil
	}
	var criteria []Criterion
	if err := json.Unmarshal(seg.Criteria, &criteria); err != nil {
		return nil, err
	}
	return criteria, nil
}
