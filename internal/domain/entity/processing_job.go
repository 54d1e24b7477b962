package entity

import (
	"time"

	"documine/internal/domain/valueobject"

	"github.com/google/uuid"
)

// ProcessingJob represents one end-to-end processing attempt chain for a
// document. Retries reuse the same row with the stage reset to queued, so at
// most one job per document is ever in pending or processing. Rows are never
// deleted; terminal jobs remain as an audit trail.
type ProcessingJob struct {
	id             uuid.UUID
	documentID     uuid.UUID
	status         valueobject.JobStatus
	stage          valueobject.JobStage
	progress       int
	errorMessage   *string
	errorCategory  *valueobject.ErrorCategory
	errorCode      *string
	retryCount     int
	createdAt      time.Time
	startedAt      *time.Time
	completedAt    *time.Time
	lastProgressAt time.Time
	nextAttemptAt  time.Time
}

// NewProcessingJob creates a new ProcessingJob entity in pending status.
func NewProcessingJob(documentID uuid.UUID) *ProcessingJob {
	now := time.Now()
	return &ProcessingJob{
		id:             uuid.New(),
		documentID:     documentID,
		status:         valueobject.JobStatusPending,
		stage:          valueobject.JobStageQueued,
		progress:       0,
		createdAt:      now,
		lastProgressAt: now,
		nextAttemptAt:  now,
	}
}

// RestoreProcessingJob creates a ProcessingJob entity from stored data.
func RestoreProcessingJob(
	id uuid.UUID,
	documentID uuid.UUID,
	status valueobject.JobStatus,
	stage valueobject.JobStage,
	progress int,
	errorMessage *string,
	errorCategory *valueobject.ErrorCategory,
	errorCode *string,
	retryCount int,
	createdAt time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	lastProgressAt time.Time,
	nextAttemptAt time.Time,
) *ProcessingJob {
	return &ProcessingJob{
		id:             id,
		documentID:     documentID,
		status:         status,
		stage:          stage,
		progress:       progress,
		errorMessage:   errorMessage,
		errorCategory:  errorCategory,
		errorCode:      errorCode,
		retryCount:     retryCount,
		createdAt:      createdAt,
		startedAt:      startedAt,
		completedAt:    completedAt,
		lastProgressAt: lastProgressAt,
		nextAttemptAt:  nextAttemptAt,
	}
}

// ID returns the job ID.
func (j *ProcessingJob) ID() uuid.UUID {
	return j.id
}

// DocumentID returns the owning document's ID.
func (j *ProcessingJob) DocumentID() uuid.UUID {
	return j.documentID
}

// Status returns the current job status.
func (j *ProcessingJob) Status() valueobject.JobStatus {
	return j.status
}

// Stage returns the current pipeline stage.
func (j *ProcessingJob) Stage() valueobject.JobStage {
	return j.stage
}

// Progress returns the overall progress percentage (0-100).
func (j *ProcessingJob) Progress() int {
	return j.progress
}

// ErrorMessage returns the user-facing error message if the job failed.
func (j *ProcessingJob) ErrorMessage() *string {
	return j.errorMessage
}

// ErrorCategory returns the error classification if the job failed.
func (j *ProcessingJob) ErrorCategory() *valueobject.ErrorCategory {
	return j.errorCategory
}

// ErrorCode returns the stable error code if the job failed.
func (j *ProcessingJob) ErrorCode() *string {
	return j.errorCode
}

// RetryCount returns the number of completed retry resets.
func (j *ProcessingJob) RetryCount() int {
	return j.retryCount
}

// CreatedAt returns the creation timestamp.
func (j *ProcessingJob) CreatedAt() time.Time {
	return j.createdAt
}

// StartedAt returns the timestamp of the latest claim.
func (j *ProcessingJob) StartedAt() *time.Time {
	return j.startedAt
}

// CompletedAt returns the terminal timestamp.
func (j *ProcessingJob) CompletedAt() *time.Time {
	return j.completedAt
}

// LastProgressAt returns the timestamp of the last progress update. The
// watchdog uses this to detect stuck jobs.
func (j *ProcessingJob) LastProgressAt() time.Time {
	return j.lastProgressAt
}

// NextAttemptAt returns the earliest time the job may be claimed. Backoff
// between retries is expressed through this field so retried jobs ride the
// normal poll loop.
func (j *ProcessingJob) NextAttemptAt() time.Time {
	return j.nextAttemptAt
}

// IsTerminal returns true if the job is in a terminal state.
func (j *ProcessingJob) IsTerminal() bool {
	return j.status.IsTerminal()
}

// IsActive returns true if the job occupies the document's active slot.
func (j *ProcessingJob) IsActive() bool {
	return j.status.IsActive()
}

// Duration returns the attempt duration if the job reached a terminal state.
func (j *ProcessingJob) Duration() *time.Duration {
	if j.startedAt == nil || j.completedAt == nil {
		return nil
	}
	duration := j.completedAt.Sub(*j.startedAt)
	return &duration
}

// Start marks the job as claimed by a worker.
func (j *ProcessingJob) Start() error {
	if !j.status.CanTransitionTo(valueobject.JobStatusProcessing) {
		return NewDomainError("cannot start job in current status", "INVALID_STATUS_TRANSITION")
	}

	now := time.Now()
	j.status = valueobject.JobStatusProcessing
	j.stage = valueobject.JobStageDownloading
	j.startedAt = &now
	j.lastProgressAt = now
	return nil
}

// AdvanceProgress records a progress update for the given stage. Progress is
// monotonically non-decreasing within an attempt: a stage reporting a lower
// overall percentage than the last observed value is clamped, not recorded.
// Returns the applied percentage.
func (j *ProcessingJob) AdvanceProgress(stage valueobject.JobStage, percent int) int {
	if percent < j.progress {
		percent = j.progress
	}
	if percent > 100 {
		percent = 100
	}
	if stage.Index() > j.stage.Index() {
		j.stage = stage
	}
	j.progress = percent
	j.lastProgressAt = time.Now()
	return percent
}

// Complete marks the job as completed successfully.
func (j *ProcessingJob) Complete() error {
	if !j.status.CanTransitionTo(valueobject.JobStatusCompleted) {
		return NewDomainError("cannot complete job in current status", "INVALID_STATUS_TRANSITION")
	}

	now := time.Now()
	j.status = valueobject.JobStatusCompleted
	j.stage = valueobject.JobStageCompleted
	j.progress = 100
	j.completedAt = &now
	j.lastProgressAt = now
	j.errorMessage = nil
	j.errorCategory = nil
	j.errorCode = nil
	return nil
}

// Fail marks the job as failed with a classified error.
func (j *ProcessingJob) Fail(category valueobject.ErrorCategory, code, userMessage string) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusFailed) {
		return NewDomainError("cannot fail job in current status", "INVALID_STATUS_TRANSITION")
	}

	now := time.Now()
	j.status = valueobject.JobStatusFailed
	j.completedAt = &now
	j.lastProgressAt = now
	j.errorMessage = &userMessage
	j.errorCategory = &category
	j.errorCode = &code
	return nil
}

// ResetForRetry re-enqueues a failed job for a fresh attempt on the same
// row, preserving the single-active-job invariant. The stage returns to
// queued, progress to zero, and the retry count increments. The delay keeps
// backoff between attempts without a separate timer: ClaimNext skips jobs
// whose next attempt time has not arrived.
func (j *ProcessingJob) ResetForRetry(delay time.Duration) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusPending) {
		return NewDomainError("cannot retry job in current status", "INVALID_STATUS_TRANSITION")
	}

	now := time.Now()
	j.status = valueobject.JobStatusPending
	j.stage = valueobject.JobStageQueued
	j.progress = 0
	j.retryCount++
	j.startedAt = nil
	j.completedAt = nil
	j.lastProgressAt = now
	j.nextAttemptAt = now.Add(delay)
	return nil
}

// Equal compares two ProcessingJob entities by identity.
func (j *ProcessingJob) Equal(other *ProcessingJob) bool {
	if other == nil {
		return false
	}
	return j.id == other.id
}
