package worker

import (
	"context"
	"errors"
	"time"

	"documine/internal/application/common/slogger"
	"documine/internal/domain/classify"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
)

// Watchdog defaults.
const (
	DefaultStaleThreshold = 10 * time.Minute
	DefaultSweepInterval  = time.Minute
)

// Watchdog periodically reaps jobs stuck in processing with no progress
// update past the stale threshold. A stuck job means a worker crashed or
// was hard-killed before any failure path could run; the sweep
// force-classifies it as a transient timeout so the document is not left
// spinning forever. Sweeps run off the hot path and are idempotent.
type Watchdog struct {
	jobs      outbound.JobRepository
	documents outbound.DocumentRepository
	publisher *ProgressPublisher

	threshold time.Duration
	interval  time.Duration
	metrics   *schedulerMetrics

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatchdog creates a stale-job watchdog. Non-positive durations fall
// back to the defaults.
func NewWatchdog(
	jobs outbound.JobRepository,
	documents outbound.DocumentRepository,
	publisher *ProgressPublisher,
	threshold, interval time.Duration,
) *Watchdog {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Watchdog{
		jobs:      jobs,
		documents: documents,
		publisher: publisher,
		threshold: threshold,
		interval:  interval,
		metrics:   newSchedulerMetrics(),
	}
}

// Start launches the periodic sweep.
func (w *Watchdog) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.ReapStale(ctx); err != nil {
					slogger.ErrorWithError(ctx, err, "Watchdog sweep failed", nil)
				}
			}
		}
	}()
}

// Stop halts the sweep loop.
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

// ReapStale force-fails every processing job whose last progress update is
// older than the threshold, and returns the affected job IDs. The terminal
// write carries a status precondition, so a job that completed normally
// between the scan and the write is never overwritten; re-running after a
// reap is a no-op.
func (w *Watchdog) ReapStale(ctx context.Context) ([]uuid.UUID, error) {
	stale, err := w.jobs.FindStale(ctx, w.threshold)
	if err != nil {
		return nil, err
	}

	reaped := make([]uuid.UUID, 0, len(stale))
	for _, job := range stale {
		classification := classify.StaleTimeout()
		if err := job.Fail(classification.Category, classification.Code, classification.UserMessage); err != nil {
			continue
		}
		if err := w.publisher.Publish(ctx, job, valueobject.JobStatusProcessing); err != nil {
			if errors.Is(err, outbound.ErrStatusConflict) {
				// Finished normally while we were sweeping; leave it alone.
				continue
			}
			slogger.ErrorWithError(ctx, err, "Failed to persist reaped job", slogger.Fields{
				"job_id": job.ID().String(),
			})
			continue
		}

		w.failDocument(ctx, job.DocumentID())
		reaped = append(reaped, job.ID())
		slogger.Warn(ctx, "Reaped stale job", slogger.Fields{
			"job_id":      job.ID().String(),
			"document_id": job.DocumentID().String(),
			"threshold":   w.threshold.String(),
		})
	}

	if len(reaped) > 0 {
		w.metrics.addReaped(ctx, len(reaped))
	}
	return reaped, nil
}

func (w *Watchdog) failDocument(ctx context.Context, documentID uuid.UUID) {
	document, err := w.documents.FindByID(ctx, documentID)
	if err != nil || document == nil {
		return
	}
	if err := document.MarkFailed(); err != nil {
		return
	}
	if err := w.documents.Update(ctx, document); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to persist document failure after reap", nil)
	}
}
