package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"documine/internal/application/common/slogger"
	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
)

// Chunker splits parsed markdown into page-aware chunks.
type Chunker interface {
	Chunk(documentID, jobID uuid.UUID, markdown string, markers []outbound.PageMarker) ([]*entity.Chunk, error)
}

// StageTimeouts holds the per-stage execution budgets. The scheduler
// validates at startup that their sum fits under the host's hard kill
// limit minus the finalization reserve; a logical timeout is worthless if
// the process dies before it fires.
type StageTimeouts struct {
	Download time.Duration
	Parse    time.Duration
	Chunk    time.Duration
	Embed    time.Duration
	Analyze  time.Duration
}

// Total returns the sum of all stage budgets.
func (t StageTimeouts) Total() time.Duration {
	return t.Download + t.Parse + t.Chunk + t.Embed + t.Analyze
}

// ForStage returns the budget for a work stage.
func (t StageTimeouts) ForStage(stage valueobject.JobStage) time.Duration {
	switch stage {
	case valueobject.JobStageDownloading:
		return t.Download
	case valueobject.JobStageParsing:
		return t.Parse
	case valueobject.JobStageChunking:
		return t.Chunk
	case valueobject.JobStageEmbedding:
		return t.Embed
	case valueobject.JobStageAnalyzing:
		return t.Analyze
	default:
		return 0
	}
}

// StageError reports which stage an attempt failed in. The wrapped cause is
// the raw error handed to the classifier; it is never shown to end users.
type StageError struct {
	Stage valueobject.JobStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrAttemptSuperseded signals that another actor (typically the watchdog)
// moved the job to a terminal state while this attempt was running. The
// in-flight work is abandoned, not awaited.
var ErrAttemptSuperseded = errors.New("attempt superseded by concurrent status change")

// Pipeline runs the ordered processing stages for one claimed job attempt:
// downloading, parsing, chunking, embedding, analyzing. Each stage runs
// under its own timeout and reports progress through the publisher. A stage
// failure halts the attempt; nothing later runs.
type Pipeline struct {
	storage   outbound.DocumentStorage
	parser    outbound.ParsingBackend
	chunker   Chunker
	embedder  outbound.EmbeddingBackend
	analyzer  outbound.AnalysisBackend
	chunks    outbound.ChunkRepository
	publisher *ProgressPublisher
	timeouts  StageTimeouts
	weights   StageWeights
	metrics   *pipelineMetrics

	embedBatchSize int
}

// PipelineDeps bundles the pipeline's collaborators.
type PipelineDeps struct {
	Storage        outbound.DocumentStorage
	Parser         outbound.ParsingBackend
	Chunker        Chunker
	Embedder       outbound.EmbeddingBackend
	Analyzer       outbound.AnalysisBackend
	Chunks         outbound.ChunkRepository
	Publisher      *ProgressPublisher
	Timeouts       StageTimeouts
	Weights        StageWeights
	EmbedBatchSize int
}

// NewPipeline creates a stage pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Weights == nil {
		deps.Weights = DefaultStageWeights()
	}
	if deps.EmbedBatchSize <= 0 {
		deps.EmbedBatchSize = 64
	}
	return &Pipeline{
		storage:        deps.Storage,
		parser:         deps.Parser,
		chunker:        deps.Chunker,
		embedder:       deps.Embedder,
		analyzer:       deps.Analyzer,
		chunks:         deps.Chunks,
		publisher:      deps.Publisher,
		timeouts:       deps.Timeouts,
		weights:        deps.Weights,
		metrics:        newPipelineMetrics(),
		embedBatchSize: deps.EmbedBatchSize,
	}
}

// Result carries what a successful attempt produced.
type Result struct {
	PageCount  int
	ChunkCount int
	Extraction *outbound.ExtractionResult
}

// Run executes all stages for the job. The job must already be claimed
// (status processing). Returns a *StageError on stage failure, or
// ErrAttemptSuperseded if the job was concurrently finalized elsewhere.
func (p *Pipeline) Run(ctx context.Context, job *entity.ProcessingJob, document *entity.Document) (*Result, error) {
	data, err := runStage(ctx, p, job, valueobject.JobStageDownloading, func(ctx context.Context) ([]byte, error) {
		return p.storage.Fetch(ctx, document.StorageLocation())
	})
	if err != nil {
		return nil, err
	}

	parsed, err := runStage(ctx, p, job, valueobject.JobStageParsing, func(ctx context.Context) (*outbound.ParseResult, error) {
		return p.parser.Parse(ctx, document.Name(), data)
	})
	if err != nil {
		return nil, err
	}

	chunks, err := runStage(ctx, p, job, valueobject.JobStageChunking, func(_ context.Context) ([]*entity.Chunk, error) {
		return p.chunker.Chunk(document.ID(), job.ID(), parsed.Markdown, parsed.PageMarkers)
	})
	if err != nil {
		return nil, err
	}

	if _, err = runStage(ctx, p, job, valueobject.JobStageEmbedding, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.embedChunks(ctx, job, chunks)
	}); err != nil {
		return nil, err
	}

	extraction, err := runStage(ctx, p, job, valueobject.JobStageAnalyzing, func(ctx context.Context) (*outbound.ExtractionResult, error) {
		return p.analyzer.Extract(ctx, parsed.Markdown)
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		PageCount:  parsed.PageCount,
		ChunkCount: len(chunks),
		Extraction: extraction,
	}, nil
}

// runStage wraps one stage with its timeout, progress reporting, and error
// capture. Progress is published at stage entry and completion; the
// publisher clamps any regression.
func runStage[T any](
	ctx context.Context,
	p *Pipeline,
	job *entity.ProcessingJob,
	stage valueobject.JobStage,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	if err := p.report(ctx, job, stage, 0); err != nil {
		return zero, err
	}

	stageCtx, cancel := context.WithTimeout(ctx, p.timeouts.ForStage(stage))
	defer cancel()

	started := time.Now()
	result, err := fn(stageCtx)
	p.metrics.recordStageDuration(ctx, stage, time.Since(started))

	if err != nil {
		slogger.Warn(ctx, "Pipeline stage failed", slogger.Fields{
			"job_id": job.ID().String(),
			"stage":  stage.String(),
			"error":  err.Error(),
		})
		return zero, &StageError{Stage: stage, Err: err}
	}

	if err := p.report(ctx, job, stage, 100); err != nil {
		return zero, err
	}
	return result, nil
}

// report publishes stage progress mapped onto the overall percentage.
func (p *Pipeline) report(ctx context.Context, job *entity.ProcessingJob, stage valueobject.JobStage, stagePercent int) error {
	overall := p.weights.Overall(stage, stagePercent)
	job.AdvanceProgress(stage, overall)

	err := p.publisher.Publish(ctx, job, valueobject.JobStatusProcessing)
	if errors.Is(err, outbound.ErrStatusConflict) {
		// The watchdog or another worker finalized the job under us.
		// Abandon the attempt; do not overwrite the terminal state.
		return ErrAttemptSuperseded
	}
	return err
}

// embedChunks embeds chunk batches, reporting intra-stage progress, and
// persists the vectors.
func (p *Pipeline) embedChunks(ctx context.Context, job *entity.ProcessingJob, chunks []*entity.Chunk) error {
	if len(chunks) == 0 {
		return p.chunks.ReplaceForJob(ctx, job.ID(), chunks)
	}

	for start := 0; start < len(chunks); start += p.embedBatchSize {
		end := start + p.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content()
		}

		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding backend returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i, chunk := range batch {
			chunk.SetEmbedding(vectors[i])
		}

		if err := p.report(ctx, job, valueobject.JobStageEmbedding, end*100/len(chunks)); err != nil {
			return err
		}
	}

	return p.chunks.ReplaceForJob(ctx, job.ID(), chunks)
}
