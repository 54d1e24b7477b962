package worker

import (
	"context"
	"errors"
	"time"

	"documine/internal/application/common/slogger"
	"documine/internal/domain/classify"
	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"golang.org/x/sync/errgroup"
)

// Scheduler is the pull-based worker loop. A ticker wakes each worker slot,
// which claims at most one pending job through the store's atomic claim
// operation and runs the pipeline on it. Workers share no memory; the job
// store is the only coordination point.
type Scheduler struct {
	jobs       outbound.JobRepository
	documents  outbound.DocumentRepository
	pipeline   *Pipeline
	publisher  *ProgressPublisher
	classifier *classify.Classifier
	retry      *RetryPolicy

	concurrency  int
	pollInterval time.Duration
	metrics      *schedulerMetrics

	cancel context.CancelFunc
	group  *errgroup.Group
}

// SchedulerDeps bundles the scheduler's collaborators.
type SchedulerDeps struct {
	Jobs         outbound.JobRepository
	Documents    outbound.DocumentRepository
	Pipeline     *Pipeline
	Publisher    *ProgressPublisher
	Classifier   *classify.Classifier
	RetryPolicy  *RetryPolicy
	Concurrency  int
	PollInterval time.Duration
}

// NewScheduler creates a scheduler.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 2 * time.Second
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.NewDefaultClassifier()
	}
	if deps.RetryPolicy == nil {
		deps.RetryPolicy = NewRetryPolicy(0, 0, 0)
	}
	return &Scheduler{
		jobs:         deps.Jobs,
		documents:    deps.Documents,
		pipeline:     deps.Pipeline,
		publisher:    deps.Publisher,
		classifier:   deps.Classifier,
		retry:        deps.RetryPolicy,
		concurrency:  deps.Concurrency,
		pollInterval: deps.PollInterval,
		metrics:      newSchedulerMetrics(),
	}
}

// Start launches the worker slots. It returns immediately; use Stop to
// shut down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < s.concurrency; i++ {
		s.group.Go(func() error {
			s.workerLoop(ctx)
			return nil
		})
	}

	slogger.Info(ctx, "Scheduler started", slogger.Fields{
		"concurrency":   s.concurrency,
		"poll_interval": s.pollInterval.String(),
	})
}

// Stop cancels the worker loops and waits for in-flight attempts to wind
// down.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		_ = s.group.Wait()
	}
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainQueue(ctx)
		}
	}
}

// drainQueue claims and processes jobs until the queue is empty, so a slot
// does not sleep a full poll interval between back-to-back jobs.
func (s *Scheduler) drainQueue(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := s.jobs.ClaimNext(ctx)
		if err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to claim next job", nil)
			return
		}
		if job == nil {
			return
		}

		s.metrics.addClaimed(ctx)
		s.processJob(ctx, job)
	}
}

// ProcessOne claims and runs a single job. Exposed for cron-style
// invocations and tests; returns false when the queue was empty.
func (s *Scheduler) ProcessOne(ctx context.Context) (bool, error) {
	job, err := s.jobs.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	s.metrics.addClaimed(ctx)
	s.processJob(ctx, job)
	return true, nil
}

func (s *Scheduler) processJob(ctx context.Context, job *entity.ProcessingJob) {
	ctx = slogger.WithCorrelationID(ctx, slogger.NewCorrelationID())
	slogger.Info(ctx, "Processing job claimed", slogger.Fields{
		"job_id":      job.ID().String(),
		"document_id": job.DocumentID().String(),
		"retry_count": job.RetryCount(),
	})

	document, err := s.documents.FindByID(ctx, job.DocumentID())
	if err != nil || document == nil {
		s.failJob(ctx, job, nil, errors.New("document not found for job"))
		return
	}

	if document.Status() != valueobject.DocumentStatusProcessing {
		if err := document.MarkProcessing(); err == nil {
			if err := s.documents.Update(ctx, document); err != nil {
				slogger.ErrorWithError(ctx, err, "Failed to mark document processing", nil)
			}
		}
	}

	s.publisher.NotifyOnly(ctx, job)

	result, runErr := s.pipeline.Run(ctx, job, document)
	if runErr != nil {
		if errors.Is(runErr, ErrAttemptSuperseded) {
			// The job was finalized elsewhere while we were working.
			// Abandon the attempt; the terminal state stands.
			slogger.Warn(ctx, "Attempt superseded, abandoning", slogger.Fields{
				"job_id": job.ID().String(),
			})
			return
		}
		s.failJob(ctx, job, document, runErr)
		return
	}

	s.completeJob(ctx, job, document, result)
}

func (s *Scheduler) completeJob(ctx context.Context, job *entity.ProcessingJob, document *entity.Document, result *Result) {
	if err := job.Complete(); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to complete job", nil)
		return
	}
	if err := s.publisher.Publish(ctx, job, valueobject.JobStatusProcessing); err != nil {
		if errors.Is(err, outbound.ErrStatusConflict) {
			slogger.Warn(ctx, "Job finalized elsewhere before completion", slogger.Fields{
				"job_id": job.ID().String(),
			})
			return
		}
		slogger.ErrorWithError(ctx, err, "Failed to persist job completion", nil)
		return
	}

	if result.Extraction != nil {
		metadata := map[string]string{
			"document_type": result.Extraction.DocumentType,
			"summary":       result.Extraction.Summary,
		}
		for k, v := range result.Extraction.Fields {
			metadata[k] = v
		}
		document.SetMetadata(metadata)
	}
	if err := document.MarkReady(result.PageCount); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to mark document ready", nil)
	} else if err := s.documents.Update(ctx, document); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to persist document status", nil)
	}

	s.metrics.addCompleted(ctx)
	slogger.Info(ctx, "Job completed", slogger.Fields{
		"job_id":      job.ID().String(),
		"document_id": document.ID().String(),
		"pages":       result.PageCount,
		"chunks":      result.ChunkCount,
	})
}

// failJob classifies the failure, persists it, and either re-enqueues the
// job with backoff or finalizes it. Every stage failure resolves to a
// classified persisted state; an unhandled crash would leave the job
// invisibly stuck until the watchdog found it, which is strictly worse.
func (s *Scheduler) failJob(ctx context.Context, job *entity.ProcessingJob, document *entity.Document, cause error) {
	classification := s.classifier.Classify(cause)

	willRetry := s.retry.ShouldRetry(job, classification)
	if !willRetry && classification.Category.AutoRetryable() {
		// Transient but out of budget: escalate so nothing retries it again.
		classification = s.retry.Escalate(classification)
	}

	if err := job.Fail(classification.Category, classification.Code, classification.UserMessage); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to mark job failed", nil)
		return
	}
	if err := s.publisher.Publish(ctx, job, valueobject.JobStatusProcessing); err != nil {
		if errors.Is(err, outbound.ErrStatusConflict) {
			slogger.Warn(ctx, "Job finalized elsewhere before failure", slogger.Fields{
				"job_id": job.ID().String(),
			})
			return
		}
		slogger.ErrorWithError(ctx, err, "Failed to persist job failure", nil)
		return
	}

	if willRetry {
		delay := s.retry.NextAttemptDelay(job.RetryCount())
		if err := job.ResetForRetry(delay); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to reset job for retry", nil)
			return
		}
		if err := s.publisher.Publish(ctx, job, valueobject.JobStatusFailed); err != nil {
			slogger.ErrorWithError(ctx, err, "Failed to persist job retry", nil)
			return
		}
		s.metrics.addRetried(ctx)
		slogger.Info(ctx, "Job re-enqueued with backoff", slogger.Fields{
			"job_id":      job.ID().String(),
			"retry_count": job.RetryCount(),
			"delay":       delay.String(),
			"error_code":  classification.Code,
		})
		return
	}

	if document != nil {
		if err := document.MarkFailed(); err == nil {
			if err := s.documents.Update(ctx, document); err != nil {
				slogger.ErrorWithError(ctx, err, "Failed to persist document failure", nil)
			}
		}
	}

	s.metrics.addFailed(ctx, classification.Category.String())
	slogger.Warn(ctx, "Job terminally failed", slogger.Fields{
		"job_id":     job.ID().String(),
		"category":   classification.Category.String(),
		"error_code": classification.Code,
	})
}
