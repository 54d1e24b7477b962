package repository

import (
	"context"
	"fmt"

	"documine/internal/domain/entity"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PostgreSQLChunkRepository implements the ChunkRepository port. Embeddings
// are stored as pgvector columns for downstream similarity search.
type PostgreSQLChunkRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLChunkRepository creates a chunk repository.
func NewPostgreSQLChunkRepository(pool *pgxpool.Pool) *PostgreSQLChunkRepository {
	return &PostgreSQLChunkRepository{pool: pool}
}

var _ outbound.ChunkRepository = (*PostgreSQLChunkRepository)(nil)

// ReplaceForJob deletes any chunks from earlier attempts of the job's
// document and inserts the new set in one transaction, so a retried
// document never holds a mix of old and new chunks.
func (r *PostgreSQLChunkRepository) ReplaceForJob(ctx context.Context, jobID uuid.UUID, chunks []*entity.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return WrapError(err, "begin chunk replace")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	documentID, err := r.resolveDocumentID(ctx, tx, jobID, chunks)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return WrapError(err, "delete previous chunks")
	}

	for _, chunk := range chunks {
		var embedding *pgvector.Vector
		if chunk.Embedding() != nil {
			vec := pgvector.NewVector(chunk.Embedding())
			embedding = &vec
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, job_id, chunk_index, start_page, end_page, content, token_count, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			chunk.ID(), chunk.DocumentID(), chunk.JobID(), chunk.Index(),
			chunk.StartPage(), chunk.EndPage(), chunk.Content(), chunk.TokenCount(),
			embedding, chunk.CreatedAt(),
		)
		if err != nil {
			return WrapError(err, "insert chunk")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return WrapError(err, "commit chunk replace")
	}
	return nil
}

func (r *PostgreSQLChunkRepository) resolveDocumentID(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, chunks []*entity.Chunk) (uuid.UUID, error) {
	if len(chunks) > 0 {
		return chunks[0].DocumentID(), nil
	}
	var documentID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT document_id FROM processing_jobs WHERE id = $1`, jobID).Scan(&documentID)
	if err != nil {
		return uuid.Nil, WrapError(fmt.Errorf("resolve document for job %s: %w", jobID, err), "replace chunks")
	}
	return documentID, nil
}

// CountByDocumentID returns the number of stored chunks for a document.
func (r *PostgreSQLChunkRepository) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, WrapError(err, "count chunks")
	}
	return count, nil
}
