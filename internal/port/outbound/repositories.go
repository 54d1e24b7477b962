package outbound

import (
	"context"
	"errors"
	"time"

	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"

	"github.com/google/uuid"
)

// ErrStatusConflict is returned by UpdateWithStatusCheck when the stored
// status no longer matches the caller's precondition, meaning another actor
// (a concurrent worker or the watchdog) already moved the job on.
var ErrStatusConflict = errors.New("job status conflict")

// DocumentRepository defines the outbound port for document persistence.
type DocumentRepository interface {
	Save(ctx context.Context, document *entity.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	Update(ctx context.Context, document *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobRepository defines the outbound port for processing-job persistence.
//
// The job store is the single source of truth and the only shared mutable
// state in the pipeline. Every status mutation goes through operations that
// carry a precondition on the current status, so a concurrent watchdog reap
// or worker crash recovery can never clobber a terminal state.
type JobRepository interface {
	Save(ctx context.Context, job *entity.ProcessingJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ProcessingJob, error)
	// FindActiveByDocumentID returns the pending or processing job for a
	// document, or nil when no active job exists.
	FindActiveByDocumentID(ctx context.Context, documentID uuid.UUID) (*entity.ProcessingJob, error)
	// FindLatestByDocumentID returns the most recently created job for a
	// document regardless of status, or nil when none exists.
	FindLatestByDocumentID(ctx context.Context, documentID uuid.UUID) (*entity.ProcessingJob, error)

	// ClaimNext atomically claims the oldest pending job whose next-attempt
	// time has arrived, transitions it to processing and stamps started_at.
	// Concurrent callers resolve to exactly one winner per job. Returns nil
	// when no job is claimable.
	ClaimNext(ctx context.Context) (*entity.ProcessingJob, error)

	// UpdateWithStatusCheck persists the job only if the stored status still
	// matches expected. Returns ErrStatusConflict when the precondition
	// fails.
	UpdateWithStatusCheck(ctx context.Context, job *entity.ProcessingJob, expected valueobject.JobStatus) error

	// QueuePosition returns the 1-based rank of a pending job among pending
	// jobs by creation order. Computed at read time, never stored.
	QueuePosition(ctx context.Context, jobID uuid.UUID) (int, error)
	// CountPending returns the number of pending jobs.
	CountPending(ctx context.Context) (int, error)
	// AverageCompletedDuration returns the mean wall-clock duration of
	// recently completed jobs, used for queue wait estimates. Returns zero
	// when no completed jobs exist.
	AverageCompletedDuration(ctx context.Context) (time.Duration, error)

	// FindStale returns processing jobs whose last progress update is older
	// than the threshold.
	FindStale(ctx context.Context, threshold time.Duration) ([]*entity.ProcessingJob, error)
}

// ChunkRepository defines the outbound port for chunk persistence.
type ChunkRepository interface {
	// ReplaceForJob deletes any chunks from earlier attempts of the job's
	// document and saves the given set.
	ReplaceForJob(ctx context.Context, jobID uuid.UUID, chunks []*entity.Chunk) error
	CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error)
}
