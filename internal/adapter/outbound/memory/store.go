// Package memory provides in-process implementations of the persistence and
// notification ports. It backs tests and single-node local runs; the claim
// and precondition semantics mirror the Postgres adapter exactly.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
)

// Store holds documents, jobs, and chunks behind one mutex. Entities are
// deep-copied on the way in and out so callers never share mutable state
// with the store, matching row-scan semantics.
type Store struct {
	mu        sync.Mutex
	documents map[uuid.UUID]*entity.Document
	jobs      map[uuid.UUID]*entity.ProcessingJob
	chunks    map[uuid.UUID][]*entity.Chunk // keyed by document ID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		documents: make(map[uuid.UUID]*entity.Document),
		jobs:      make(map[uuid.UUID]*entity.ProcessingJob),
		chunks:    make(map[uuid.UUID][]*entity.Chunk),
	}
}

func copyDocument(d *entity.Document) *entity.Document {
	if d == nil {
		return nil
	}
	var pageCount *int
	if d.PageCount() != nil {
		v := *d.PageCount()
		pageCount = &v
	}
	metadata := make(map[string]string, len(d.Metadata()))
	for k, v := range d.Metadata() {
		metadata[k] = v
	}
	return entity.RestoreDocument(
		d.ID(), d.TenantID(), d.UploaderID(), d.Name(), d.StorageLocation(),
		d.Status(), pageCount, metadata, d.CreatedAt(), d.UpdatedAt(),
	)
}

func copyJob(j *entity.ProcessingJob) *entity.ProcessingJob {
	if j == nil {
		return nil
	}
	var message, code *string
	if j.ErrorMessage() != nil {
		v := *j.ErrorMessage()
		message = &v
	}
	if j.ErrorCode() != nil {
		v := *j.ErrorCode()
		code = &v
	}
	var category *valueobject.ErrorCategory
	if j.ErrorCategory() != nil {
		v := *j.ErrorCategory()
		category = &v
	}
	var startedAt, completedAt *time.Time
	if j.StartedAt() != nil {
		v := *j.StartedAt()
		startedAt = &v
	}
	if j.CompletedAt() != nil {
		v := *j.CompletedAt()
		completedAt = &v
	}
	return entity.RestoreProcessingJob(
		j.ID(), j.DocumentID(), j.Status(), j.Stage(), j.Progress(),
		message, category, code, j.RetryCount(),
		j.CreatedAt(), startedAt, completedAt, j.LastProgressAt(), j.NextAttemptAt(),
	)
}

// DocumentRepository returns the store's document repository view.
func (s *Store) DocumentRepository() outbound.DocumentRepository {
	return (*documentRepository)(s)
}

// JobRepository returns the store's job repository view.
func (s *Store) JobRepository() outbound.JobRepository {
	return (*jobRepository)(s)
}

// ChunkRepository returns the store's chunk repository view.
func (s *Store) ChunkRepository() outbound.ChunkRepository {
	return (*chunkRepository)(s)
}

type documentRepository Store

func (r *documentRepository) Save(_ context.Context, document *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[document.ID()] = copyDocument(document)
	return nil
}

func (r *documentRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyDocument(r.documents[id]), nil
}

func (r *documentRepository) Update(_ context.Context, document *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[document.ID()] = copyDocument(document)
	return nil
}

func (r *documentRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.documents, id)
	return nil
}

type jobRepository Store

func (r *jobRepository) Save(_ context.Context, job *entity.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID()] = copyJob(job)
	return nil
}

func (r *jobRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyJob(r.jobs[id]), nil
}

func (r *jobRepository) FindActiveByDocumentID(_ context.Context, documentID uuid.UUID) (*entity.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.DocumentID() == documentID && job.IsActive() {
			return copyJob(job), nil
		}
	}
	return nil, nil
}

func (r *jobRepository) FindLatestByDocumentID(_ context.Context, documentID uuid.UUID) (*entity.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.ProcessingJob
	for _, job := range r.jobs {
		if job.DocumentID() != documentID {
			continue
		}
		if latest == nil || job.CreatedAt().After(latest.CreatedAt()) {
			latest = job
		}
	}
	return copyJob(latest), nil
}

// pendingSorted returns pending jobs whose next attempt time has arrived,
// oldest first.
func (r *jobRepository) pendingSorted(now time.Time) []*entity.ProcessingJob {
	pending := make([]*entity.ProcessingJob, 0)
	for _, job := range r.jobs {
		if job.Status() == valueobject.JobStatusPending && !job.NextAttemptAt().After(now) {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt().Before(pending[j].CreatedAt())
	})
	return pending
}

func (r *jobRepository) ClaimNext(_ context.Context) (*entity.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := r.pendingSorted(time.Now())
	if len(pending) == 0 {
		return nil, nil
	}

	job := pending[0]
	if err := job.Start(); err != nil {
		return nil, err
	}
	return copyJob(job), nil
}

func (r *jobRepository) UpdateWithStatusCheck(_ context.Context, job *entity.ProcessingJob, expected valueobject.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[job.ID()]
	if !ok || stored.Status() != expected {
		return outbound.ErrStatusConflict
	}
	r.jobs[job.ID()] = copyJob(job)
	return nil
}

func (r *jobRepository) QueuePosition(_ context.Context, jobID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.jobs[jobID]
	if !ok || target.Status() != valueobject.JobStatusPending {
		return 0, nil
	}

	position := 1
	for _, job := range r.jobs {
		if job.Status() != valueobject.JobStatusPending || job.ID() == jobID {
			continue
		}
		if job.CreatedAt().Before(target.CreatedAt()) {
			position++
		}
	}
	return position, nil
}

func (r *jobRepository) CountPending(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, job := range r.jobs {
		if job.Status() == valueobject.JobStatusPending {
			count++
		}
	}
	return count, nil
}

func (r *jobRepository) AverageCompletedDuration(_ context.Context) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total time.Duration
	var count int
	for _, job := range r.jobs {
		if job.Status() != valueobject.JobStatusCompleted {
			continue
		}
		if d := job.Duration(); d != nil {
			total += *d
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return total / time.Duration(count), nil
}

func (r *jobRepository) FindStale(_ context.Context, threshold time.Duration) ([]*entity.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-threshold)
	stale := make([]*entity.ProcessingJob, 0)
	for _, job := range r.jobs {
		if job.Status() == valueobject.JobStatusProcessing && job.LastProgressAt().Before(cutoff) {
			stale = append(stale, copyJob(job))
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].CreatedAt().Before(stale[j].CreatedAt())
	})
	return stale, nil
}

type chunkRepository Store

func (r *chunkRepository) ReplaceForJob(_ context.Context, jobID uuid.UUID, chunks []*entity.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var documentID uuid.UUID
	if len(chunks) > 0 {
		documentID = chunks[0].DocumentID()
	} else if job, ok := r.jobs[jobID]; ok {
		documentID = job.DocumentID()
	} else {
		return nil
	}

	stored := make([]*entity.Chunk, len(chunks))
	copy(stored, chunks)
	r.chunks[documentID] = stored
	return nil
}

func (r *chunkRepository) CountByDocumentID(_ context.Context, documentID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks[documentID]), nil
}
