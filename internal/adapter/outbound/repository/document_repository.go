package repository

import (
	"context"
	"errors"
	"time"

	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLDocumentRepository implements the DocumentRepository port.
type PostgreSQLDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLDocumentRepository creates a document repository.
func NewPostgreSQLDocumentRepository(pool *pgxpool.Pool) *PostgreSQLDocumentRepository {
	return &PostgreSQLDocumentRepository{pool: pool}
}

var _ outbound.DocumentRepository = (*PostgreSQLDocumentRepository)(nil)

// Save persists a new document.
func (r *PostgreSQLDocumentRepository) Save(ctx context.Context, document *entity.Document) error {
	query := `
		INSERT INTO documents (id, tenant_id, uploader_id, name, storage_location, status, page_count, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		document.ID(), document.TenantID(), document.UploaderID(),
		document.Name(), document.StorageLocation(), document.Status().String(),
		document.PageCount(), document.Metadata(), document.CreatedAt(), document.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "save document")
	}
	return nil
}

// FindByID returns a document by ID, or nil when not found.
func (r *PostgreSQLDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	query := `
		SELECT id, tenant_id, uploader_id, name, storage_location, status, page_count, metadata, created_at, updated_at
		FROM documents
		WHERE id = $1`

	document, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, WrapError(err, "find document by id")
	}
	return document, nil
}

// Update persists document changes.
func (r *PostgreSQLDocumentRepository) Update(ctx context.Context, document *entity.Document) error {
	query := `
		UPDATE documents
		SET name = $2, status = $3, page_count = $4, metadata = $5, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		document.ID(), document.Name(), document.Status().String(),
		document.PageCount(), document.Metadata(),
	)
	if err != nil {
		return WrapError(err, "update document")
	}
	if tag.RowsAffected() == 0 {
		return WrapError(pgx.ErrNoRows, "update document")
	}
	return nil
}

// Delete removes a document and, through cascading constraints, its jobs and
// chunks.
func (r *PostgreSQLDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return WrapError(err, "delete document")
	}
	if tag.RowsAffected() == 0 {
		return WrapError(pgx.ErrNoRows, "delete document")
	}
	return nil
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		id, tenantID, uploaderID uuid.UUID
		name, location, status   string
		pageCount                *int
		metadata                 map[string]string
		createdAt, updatedAt     time.Time
	)
	if err := row.Scan(&id, &tenantID, &uploaderID, &name, &location, &status, &pageCount, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	documentStatus, err := valueobject.NewDocumentStatus(status)
	if err != nil {
		return nil, err
	}
	return entity.RestoreDocument(id, tenantID, uploaderID, name, location, documentStatus, pageCount, metadata, createdAt, updatedAt), nil
}
