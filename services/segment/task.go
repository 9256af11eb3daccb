package segment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	taskdef "adserve-engine/pkg/asynq"
)

// Handler processes segment refresh tasks from the queue.
type Handler struct {
	svc *Service
}

// RegisterHandlers mounts the segment task handlers on the worker mux.
func RegisterHandlers(mux *asynq.ServeMux, svc *Service) {
	h := &Handler{svc: svc}
	mux.HandleFunc(taskdef.SegmentRefreshTask, h.HandleRefresh)
	mux.HandleFunc(taskdef.SegmentRefreshAllTask, h.HandleRefreshAll)
}

// HandleRefresh recomputes one segment's membership.
func (h *Handler) HandleRefresh(ctx context.Context, t *asynq.Task) error {
	var payload taskdef.SegmentRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	if err := h.svc.RefreshSegment(ctx, payload.SegmentID, time.Now()); err != nil {
		zap.L().Error("segment refresh failed",
			zap.String("segment_id", payload.SegmentID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// HandleRefreshAll fans out one refresh task per active segment.
func (h *Handler) HandleRefreshAll(ctx context.Context, _ *asynq.Task) error {
	segments, err := h.svc.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if err := h.svc.EnqueueRefresh(ctx, seg.ID); err != nil {
			zap.L().Error("enqueue segment refresh failed",
				zap.String("segment_id", seg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
