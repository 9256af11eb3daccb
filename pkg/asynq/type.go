package asynq

const (
	SegmentRefreshTask    = "segment:refresh"
	SegmentRefreshAllTask = "segment:refresh_all"
)

type SegmentRefreshPayload struct {
	SegmentID string `json:"segment_id"`
}
