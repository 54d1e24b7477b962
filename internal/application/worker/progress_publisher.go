package worker

import (
	"context"

	"documine/internal/application/common"
	"documine/internal/application/common/slogger"
	"documine/internal/domain/classify"
	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"
)

// ProgressPublisher persists job progress and pushes snapshots to live
// subscribers. The write to the job record always happens first and is the
// source of truth; the push is fire-and-forget and only shaves latency off
// the polling fallback.
type ProgressPublisher struct {
	jobs       outbound.JobRepository
	notifier   outbound.ProgressNotifier
	classifier *classify.Classifier
}

// NewProgressPublisher creates a progress publisher. The notifier may be
// nil, in which case subscribers rely on polling alone.
func NewProgressPublisher(
	jobs outbound.JobRepository,
	notifier outbound.ProgressNotifier,
	classifier *classify.Classifier,
) *ProgressPublisher {
	if jobs == nil {
		panic("jobs repository cannot be nil")
	}
	return &ProgressPublisher{
		jobs:       jobs,
		notifier:   notifier,
		classifier: classifier,
	}
}

// Publish persists the job's current state with a precondition on expected
// and then notifies subscribers. Returns outbound.ErrStatusConflict when
// the job was concurrently moved to another status (e.g. reaped by the
// watchdog), in which case the caller must abandon the attempt.
func (p *ProgressPublisher) Publish(
	ctx context.Context,
	job *entity.ProcessingJob,
	expected valueobject.JobStatus,
) error {
	if err := p.jobs.UpdateWithStatusCheck(ctx, job, expected); err != nil {
		return err
	}

	p.notifyBestEffort(ctx, job)
	return nil
}

// NotifyOnly pushes a snapshot without touching the store, for states the
// caller already persisted through another path.
func (p *ProgressPublisher) NotifyOnly(ctx context.Context, job *entity.ProcessingJob) {
	p.notifyBestEffort(ctx, job)
}

func (p *ProgressPublisher) notifyBestEffort(ctx context.Context, job *entity.ProcessingJob) {
	if p.notifier == nil {
		return
	}

	snapshot := common.BuildJobSnapshot(job, p.classifier)
	if err := p.notifier.Notify(ctx, snapshot); err != nil {
		slogger.Warn(ctx, "Failed to push progress event", slogger.Fields{
			"job_id": job.ID().String(),
			"error":  err.Error(),
		})
	}
}
