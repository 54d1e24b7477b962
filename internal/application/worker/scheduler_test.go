package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"documine/internal/adapter/outbound/memory"
	"documine/internal/domain/classify"
	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fake pipeline backends. Hooks run inside the stage to simulate
// concurrent actors.

type fakeStorage struct {
	data []byte
	err  error
}

func (f *fakeStorage) Fetch(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

func (f *fakeStorage) Delete(context.Context, string) error { return nil }

type fakeParser struct {
	result *outbound.ParseResult
	err    error
	hook   func()
}

func (f *fakeParser) Parse(context.Context, string, []byte) (*outbound.ParseResult, error) {
	if f.hook != nil {
		f.hook()
	}
	return f.result, f.err
}

type fakeChunker struct{}

func (fakeChunker) Chunk(documentID, jobID uuid.UUID, markdown string, _ []outbound.PageMarker) ([]*entity.Chunk, error) {
	return []*entity.Chunk{
		entity.NewChunk(documentID, jobID, 0, 1, 1, markdown, len(markdown)),
	}, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Extract(context.Context, string) (*outbound.ExtractionResult, error) {
	return &outbound.ExtractionResult{
		DocumentType: "policy",
		Summary:      "A commercial property policy.",
		Fields:       map[string]string{"carrier": "Acme Mutual"},
	}, nil
}

// harness wires a scheduler against the in-memory store with fake
// backends.
type harness struct {
	store     *memory.Store
	scheduler *Scheduler
	publisher *ProgressPublisher
	parser    *fakeParser
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewStore()
	classifier := classify.NewDefaultClassifier()
	publisher := NewProgressPublisher(store.JobRepository(), memory.NewProgressNotifier(), classifier)

	parser := &fakeParser{
		result: &outbound.ParseResult{
			Markdown:  "# Policy\n\nCoverage details.",
			PageCount: 3,
		},
	}

	pipeline := NewPipeline(PipelineDeps{
		Storage:   &fakeStorage{data: []byte("%PDF-1.7")},
		Parser:    parser,
		Chunker:   fakeChunker{},
		Embedder:  &fakeEmbedder{},
		Analyzer:  fakeAnalyzer{},
		Chunks:    store.ChunkRepository(),
		Publisher: publisher,
		Timeouts: StageTimeouts{
			Download: time.Minute,
			Parse:    time.Minute,
			Chunk:    time.Minute,
			Embed:    time.Minute,
			Analyze:  time.Minute,
		},
	})

	scheduler := NewScheduler(SchedulerDeps{
		Jobs:        store.JobRepository(),
		Documents:   store.DocumentRepository(),
		Pipeline:    pipeline,
		Publisher:   publisher,
		Classifier:  classifier,
		RetryPolicy: NewRetryPolicy(3, time.Second, time.Minute),
	})

	return &harness{store: store, scheduler: scheduler, publisher: publisher, parser: parser}
}

func (h *harness) enqueueDocument(t *testing.T) (*entity.Document, *entity.ProcessingJob) {
	t.Helper()
	ctx := context.Background()

	document, err := entity.NewDocument(uuid.New(), uuid.New(), "policy.pdf", "tenants/a/policy.pdf")
	require.NoError(t, err)
	require.NoError(t, h.store.DocumentRepository().Save(ctx, document))

	job := entity.NewProcessingJob(document.ID())
	require.NoError(t, h.store.JobRepository().Save(ctx, job))
	return document, job
}

func TestScheduler_ProcessOne_HappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	document, job := h.enqueueDocument(t)

	processed, err := h.scheduler.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := h.store.JobRepository().FindByID(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, stored.Status())
	assert.Equal(t, 100, stored.Progress())
	assert.Nil(t, stored.ErrorCode())

	storedDoc, err := h.store.DocumentRepository().FindByID(ctx, document.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.DocumentStatusReady, storedDoc.Status())
	require.NotNil(t, storedDoc.PageCount())
	assert.Equal(t, 3, *storedDoc.PageCount())
	assert.Equal(t, "policy", storedDoc.Metadata()["document_type"])
	assert.Equal(t, "Acme Mutual", storedDoc.Metadata()["carrier"])

	chunkCount, err := h.store.ChunkRepository().CountByDocumentID(ctx, document.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, chunkCount)
}

func TestScheduler_ProcessOne_EmptyQueue(t *testing.T) {
	h := newHarness(t)

	processed, err := h.scheduler.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestScheduler_TransientFailureRequeuesWithBackoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	document, job := h.enqueueDocument(t)

	h.parser.err = errors.New("context deadline exceeded")

	processed, err := h.scheduler.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := h.store.JobRepository().FindByID(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusPending, stored.Status())
	assert.Equal(t, valueobject.JobStageQueued, stored.Stage())
	assert.Equal(t, 1, stored.RetryCount())
	assert.Equal(t, 0, stored.Progress())
	assert.True(t, stored.NextAttemptAt().After(time.Now()), "backoff delays the next attempt")

	// The backoff window keeps the job unclaimable for now.
	claimed, err := h.store.JobRepository().ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	// The document stays in processing while retries are pending.
	storedDoc, err := h.store.DocumentRepository().FindByID(ctx, document.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.DocumentStatusProcessing, storedDoc.Status())
}

func TestScheduler_SecondAttemptSucceedsAfterTransientFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	document, job := h.enqueueDocument(t)

	h.parser.err = errors.New("request timed out")
	_, err := h.scheduler.ProcessOne(ctx)
	require.NoError(t, err)

	h.parser.err = nil
	waitForClaimable(t, h.store.JobRepository(), job.ID())
	processed, err := h.scheduler.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	stored, err := h.store.JobRepository().FindByID(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, stored.Status())
	assert.Equal(t, 1, stored.RetryCount())
	assert.Nil(t, stored.ErrorCode(), "completion clears the earlier failure")

	storedDoc, err := h.store.DocumentRepository().FindByID(ctx, document.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.DocumentStatusReady, storedDoc.Status())
}

func TestScheduler_RecoverableFailureIsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	document, job := h.enqueueDocument(t)

	h.parser.err = errors.New("file is encrypted with a password")

	_, err := h.scheduler.ProcessOne(ctx)
	require.NoError(t, err)

	stored, err := h.store.JobRepository().FindByID(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusFailed, stored.Status())
	require.NotNil(t, stored.ErrorCode())
	assert.Equal(t, classify.CodePasswordProtected, *stored.ErrorCode())
	require.NotNil(t, stored.ErrorCategory())
	assert.Equal(t, valueobject.ErrorCategoryRecoverable, *stored.ErrorCategory())

	storedDoc, err := h.store.DocumentRepository().FindByID(ctx, document.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.DocumentStatusFailed, storedDoc.Status())
}

func TestScheduler_ExhaustedRetriesEscalateToPermanent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, job := h.enqueueDocument(t)

	h.parser.err = errors.New("connection refused")

	// Each attempt fails transiently; requeue with zero-ish backoff by
	// resetting next_attempt_at through repeated claims after the delay.
	for attempt := 0; attempt < 4; attempt++ {
		waitForClaimable(t, h.store.JobRepository(), job.ID())
		processed, err := h.scheduler.ProcessOne(ctx)
		require.NoError(t, err)
		require.True(t, processed, "attempt %d", attempt)
	}

	stored, err := h.store.JobRepository().FindByID(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusFailed, stored.Status())
	assert.Equal(t, 3, stored.RetryCount())
	require.NotNil(t, stored.ErrorCode())
	assert.Equal(t, classify.CodeMaxRetriesExceeded, *stored.ErrorCode())
	require.NotNil(t, stored.ErrorCategory())
	assert.Equal(t, valueobject.ErrorCategoryPermanent, *stored.ErrorCategory())
}

// waitForClaimable rewinds the job's backoff window so the next attempt is
// immediately claimable. Tests must not sleep out real exponential delays.
func waitForClaimable(t *testing.T, jobs outbound.JobRepository, jobID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	stored, err := jobs.FindByID(ctx, jobID)
	require.NoError(t, err)
	if stored.Status() != valueobject.JobStatusPending {
		return
	}

	rewound := entity.RestoreProcessingJob(
		stored.ID(), stored.DocumentID(), stored.Status(), stored.Stage(), stored.Progress(),
		stored.ErrorMessage(), stored.ErrorCategory(), stored.ErrorCode(), stored.RetryCount(),
		stored.CreatedAt(), stored.StartedAt(), stored.CompletedAt(), stored.LastProgressAt(),
		time.Now().Add(-time.Second),
	)
	require.NoError(t, jobs.UpdateWithStatusCheck(ctx, rewound, valueobject.JobStatusPending))
}

func TestScheduler_ProcessesOldestJobFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, first := h.enqueueDocument(t)
	time.Sleep(2 * time.Millisecond)
	_, second := h.enqueueDocument(t)

	_, err := h.scheduler.ProcessOne(ctx)
	require.NoError(t, err)

	firstStored, err := h.store.JobRepository().FindByID(ctx, first.ID())
	require.NoError(t, err)
	secondStored, err := h.store.JobRepository().FindByID(ctx, second.ID())
	require.NoError(t, err)

	assert.Equal(t, valueobject.JobStatusCompleted, firstStored.Status())
	assert.Equal(t, valueobject.JobStatusPending, secondStored.Status())
}

func TestScheduler_AbandonsSupersededAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, job := h.enqueueDocument(t)

	// Another actor finalizes the job mid-parse, as the watchdog would.
	h.parser.hook = func() {
		stored, err := h.store.JobRepository().FindByID(ctx, job.ID())
		require.NoError(t, err)
		require.NoError(t, stored.Fail(valueobject.ErrorCategoryTransient, classify.CodeStaleTimeout, "stopped"))
		require.NoError(t, h.store.JobRepository().UpdateWithStatusCheck(ctx, stored, valueobject.JobStatusProcessing))
	}

	processed, err := h.scheduler.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	// The concurrent terminal state stands untouched.
	stored, err := h.store.JobRepository().FindByID(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusFailed, stored.Status())
	require.NotNil(t, stored.ErrorCode())
	assert.Equal(t, classify.CodeStaleTimeout, *stored.ErrorCode())
	assert.Equal(t, 0, stored.RetryCount())
}

func TestMemoryStore_ConcurrentClaimsAreExclusive(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	const jobCount = 20
	for i := 0; i < jobCount; i++ {
		require.NoError(t, store.JobRepository().Save(ctx, entity.NewProcessingJob(uuid.New())))
	}

	var mu sync.Mutex
	claimed := make(map[uuid.UUID]int)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.JobRepository().ClaimNext(ctx)
				require.NoError(t, err)
				if job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobCount)
	for id, count := range claimed {
		assert.Equal(t, 1, count, "job %s claimed more than once", id)
	}
}
