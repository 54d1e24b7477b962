package service

import (
	"context"
	"errors"

	"documine/internal/application/common"
	"documine/internal/application/common/slogger"
	"documine/internal/application/dto"
	"documine/internal/domain/classify"
	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
)

// Service-level sentinel errors mapped to HTTP statuses by the API error
// handler.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrJobNotFound      = errors.New("no processing job for document")
	ErrRetryNotAllowed  = errors.New("job is not eligible for retry")
)

// DocumentService implements the inbound document port: registration with
// idempotent enqueue, snapshot reads, operator retry, and queue summaries.
type DocumentService struct {
	documents  outbound.DocumentRepository
	jobs       outbound.JobRepository
	notifier   outbound.ProgressNotifier
	classifier *classify.Classifier
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(
	documents outbound.DocumentRepository,
	jobs outbound.JobRepository,
	notifier outbound.ProgressNotifier,
	classifier *classify.Classifier,
) *DocumentService {
	if documents == nil {
		panic("documents repository cannot be nil")
	}
	if jobs == nil {
		panic("jobs repository cannot be nil")
	}
	if classifier == nil {
		classifier = classify.NewDefaultClassifier()
	}
	return &DocumentService{
		documents:  documents,
		jobs:       jobs,
		notifier:   notifier,
		classifier: classifier,
	}
}

// RegisterDocument stores the uploaded document and enqueues its processing
// job. Duplicate triggers for the same document are tolerated: if an active
// job already exists, it is returned instead of a second being created.
func (s *DocumentService) RegisterDocument(ctx context.Context, request dto.RegisterDocumentRequest) (*dto.DocumentResponse, error) {
	document, err := entity.NewDocument(request.TenantID, request.UploaderID, request.Name, request.StorageLocation)
	if err != nil {
		return nil, err
	}
	if len(request.Metadata) > 0 {
		document.SetMetadata(request.Metadata)
	}

	if err := s.documents.Save(ctx, document); err != nil {
		return nil, err
	}

	job, err := s.enqueue(ctx, document.ID())
	if err != nil {
		return nil, err
	}

	slogger.Info(ctx, "Document registered", slogger.Fields{
		"document_id": document.ID().String(),
		"job_id":      job.ID().String(),
		"tenant_id":   document.TenantID().String(),
	})

	return s.buildDocumentResponse(ctx, document, job), nil
}

// enqueue creates a pending job for the document unless one is already
// active (the single-active-job invariant).
func (s *DocumentService) enqueue(ctx context.Context, documentID uuid.UUID) (*entity.ProcessingJob, error) {
	existing, err := s.jobs.FindActiveByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	job := entity.NewProcessingJob(documentID)
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetDocument returns a document with its latest job snapshot.
func (s *DocumentService) GetDocument(ctx context.Context, documentID uuid.UUID) (*dto.DocumentResponse, error) {
	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, ErrDocumentNotFound
	}

	job, err := s.jobs.FindLatestByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return s.buildDocumentResponse(ctx, document, job), nil
}

// GetJobSnapshot returns the latest persisted job state for the document.
// Pending jobs carry their current queue position.
func (s *DocumentService) GetJobSnapshot(ctx context.Context, documentID uuid.UUID) (*outbound.JobSnapshot, error) {
	job, err := s.jobs.FindLatestByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	snapshot := common.BuildJobSnapshot(job, s.classifier)
	if job.Status() == valueobject.JobStatusPending {
		if position, err := s.jobs.QueuePosition(ctx, job.ID()); err == nil {
			snapshot.QueuePosition = position
		}
	}
	return &snapshot, nil
}

// RetryDocument re-enqueues a failed job on the same row. Allowed only when
// the failure is retry-eligible (transient) or user-actionable
// (recoverable); permanent failures need operator escalation, not another
// identical attempt.
func (s *DocumentService) RetryDocument(ctx context.Context, documentID uuid.UUID) (*dto.RetryDocumentResponse, error) {
	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, ErrDocumentNotFound
	}

	job, err := s.jobs.FindLatestByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	if !s.retryEligible(job) {
		return nil, ErrRetryNotAllowed
	}

	if err := job.ResetForRetry(0); err != nil {
		return nil, err
	}
	if err := s.jobs.UpdateWithStatusCheck(ctx, job, valueobject.JobStatusFailed); err != nil {
		if errors.Is(err, outbound.ErrStatusConflict) {
			// Someone else re-enqueued it first; treat as idempotent.
			return nil, ErrRetryNotAllowed
		}
		return nil, err
	}

	slogger.Info(ctx, "Document retry requested", slogger.Fields{
		"document_id": documentID.String(),
		"job_id":      job.ID().String(),
		"retry_count": job.RetryCount(),
	})

	snapshot := common.BuildJobSnapshot(job, s.classifier)
	return &dto.RetryDocumentResponse{Job: snapshot}, nil
}

func (s *DocumentService) retryEligible(job *entity.ProcessingJob) bool {
	if job.Status() != valueobject.JobStatusFailed {
		return false
	}
	category := job.ErrorCategory()
	if category == nil {
		return false
	}
	return category.AutoRetryable() || category.UserActionable()
}

// QueueSummary reports pending totals and the estimated wait for a given
// job: position multiplied by the average historical processing duration.
func (s *DocumentService) QueueSummary(ctx context.Context, jobID *uuid.UUID) (*dto.QueueSummaryResponse, error) {
	total, err := s.jobs.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	average, err := s.jobs.AverageCompletedDuration(ctx)
	if err != nil {
		return nil, err
	}

	summary := &dto.QueueSummaryResponse{
		TotalPending:     total,
		AverageDuration:  average,
		AverageDurationS: average.Seconds(),
	}

	if jobID != nil {
		position, err := s.jobs.QueuePosition(ctx, *jobID)
		if err != nil {
			return nil, err
		}
		summary.Position = position
		summary.EstimatedWaitS = float64(position) * average.Seconds()
	}

	return summary, nil
}

// StreamProgress emits the latest persisted snapshot first, then live
// push events, until the context is cancelled. A client connecting
// mid-processing is never left blank, and one that misses events
// reconciles from the snapshot on reconnect.
func (s *DocumentService) StreamProgress(ctx context.Context, documentID uuid.UUID) (<-chan outbound.JobSnapshot, error) {
	snapshot, err := s.GetJobSnapshot(ctx, documentID)
	if err != nil {
		return nil, err
	}

	out := make(chan outbound.JobSnapshot, 8)

	var live <-chan outbound.JobSnapshot
	if s.notifier != nil {
		live, err = s.notifier.Subscribe(ctx, documentID)
		if err != nil {
			slogger.Warn(ctx, "Live progress channel unavailable, snapshot only", slogger.Fields{
				"document_id": documentID.String(),
				"error":       err.Error(),
			})
		}
	}

	go func() {
		defer close(out)

		select {
		case out <- *snapshot:
		case <-ctx.Done():
			return
		}

		if live == nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-live:
				if !ok {
					return
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *DocumentService) buildDocumentResponse(ctx context.Context, document *entity.Document, job *entity.ProcessingJob) *dto.DocumentResponse {
	response := &dto.DocumentResponse{
		ID:              document.ID(),
		TenantID:        document.TenantID(),
		UploaderID:      document.UploaderID(),
		Name:            document.Name(),
		StorageLocation: document.StorageLocation(),
		Status:          document.Status().String(),
		PageCount:       document.PageCount(),
		Metadata:        document.Metadata(),
		CreatedAt:       document.CreatedAt(),
		UpdatedAt:       document.UpdatedAt(),
	}

	if job != nil {
		snapshot := common.BuildJobSnapshot(job, s.classifier)
		if job.Status() == valueobject.JobStatusPending {
			if position, err := s.jobs.QueuePosition(ctx, job.ID()); err == nil {
				snapshot.QueuePosition = position
			}
		}
		response.Job = &snapshot
	}

	return response
}
