package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobSnapshot is the wire representation of a job's observable state,
// pushed to live subscribers and returned by the snapshot endpoints. The
// persisted job record remains the source of truth; a subscriber that
// misses events reconciles by re-reading the snapshot.
type JobSnapshot struct {
	JobID           uuid.UUID  `json:"job_id"`
	DocumentID      uuid.UUID  `json:"document_id"`
	Status          string     `json:"status"`
	Stage           string     `json:"stage"`
	Progress        int        `json:"progress"`
	RetryCount      int        `json:"retry_count"`
	QueuePosition   int        `json:"queue_position,omitempty"`
	ErrorCode       string     `json:"error_code,omitempty"`
	ErrorCategory   string     `json:"error_category,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	SuggestedAction string     `json:"suggested_action,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ProgressNotifier defines the outbound port for the live progress push
// channel. Delivery is best-effort fire-and-forget: correctness never
// depends on it, the polling read model does that.
type ProgressNotifier interface {
	Notify(ctx context.Context, snapshot JobSnapshot) error
	// Subscribe streams snapshots for a document until the context is
	// cancelled. The returned channel is closed on cancellation.
	Subscribe(ctx context.Context, documentID uuid.UUID) (<-chan JobSnapshot, error)
}
