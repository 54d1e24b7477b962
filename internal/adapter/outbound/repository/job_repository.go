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

const jobColumns = `id, document_id, status, stage, progress, error_message, error_category, error_code,
		retry_count, created_at, started_at, completed_at, last_progress_at, next_attempt_at`

// PostgreSQLJobRepository implements the JobRepository port. The
// processing_jobs table is both the job record and the work queue.
type PostgreSQLJobRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLJobRepository creates a job repository.
func NewPostgreSQLJobRepository(pool *pgxpool.Pool) *PostgreSQLJobRepository {
	return &PostgreSQLJobRepository{pool: pool}
}

var _ outbound.JobRepository = (*PostgreSQLJobRepository)(nil)

// Save persists a new job.
func (r *PostgreSQLJobRepository) Save(ctx context.Context, job *entity.ProcessingJob) error {
	query := `
		INSERT INTO processing_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		job.ID(), job.DocumentID(), job.Status().String(), job.Stage().String(), job.Progress(),
		job.ErrorMessage(), errorCategoryString(job), job.ErrorCode(),
		job.RetryCount(), job.CreatedAt(), job.StartedAt(), job.CompletedAt(),
		job.LastProgressAt(), job.NextAttemptAt(),
	)
	if err != nil {
		return WrapError(err, "save job")
	}
	return nil
}

// FindByID returns a job by ID, or nil when not found.
func (r *PostgreSQLJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ProcessingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, WrapError(err, "find job by id")
	}
	return job, nil
}

// FindActiveByDocumentID returns the pending or processing job for a
// document, or nil. The partial unique index on (document_id) for active
// statuses guarantees at most one row.
func (r *PostgreSQLJobRepository) FindActiveByDocumentID(ctx context.Context, documentID uuid.UUID) (*entity.ProcessingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE document_id = $1 AND status IN ('pending', 'processing')
		LIMIT 1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, WrapError(err, "find active job")
	}
	return job, nil
}

// FindLatestByDocumentID returns the most recently created job for a
// document regardless of status, or nil.
func (r *PostgreSQLJobRepository) FindLatestByDocumentID(ctx context.Context, documentID uuid.UUID) (*entity.ProcessingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, WrapError(err, "find latest job")
	}
	return job, nil
}

// ClaimNext atomically claims the oldest eligible pending job. SKIP LOCKED
// makes concurrent claimers resolve to distinct rows without blocking each
// other, so exactly one worker wins any given job.
func (r *PostgreSQLJobRepository) ClaimNext(ctx context.Context) (*entity.ProcessingJob, error) {
	query := `
		UPDATE processing_jobs
		SET status = 'processing', stage = 'downloading',
		    started_at = NOW(), last_progress_at = NOW()
		WHERE id = (
			SELECT id FROM processing_jobs
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, WrapError(err, "claim next job")
	}
	return job, nil
}

// UpdateWithStatusCheck persists the job only if the stored status still
// matches expected. A zero-row update means another actor moved the job on.
func (r *PostgreSQLJobRepository) UpdateWithStatusCheck(ctx context.Context, job *entity.ProcessingJob, expected valueobject.JobStatus) error {
	query := `
		UPDATE processing_jobs
		SET status = $2, stage = $3, progress = $4,
		    error_message = $5, error_category = $6, error_code = $7,
		    retry_count = $8, started_at = $9, completed_at = $10,
		    last_progress_at = $11, next_attempt_at = $12
		WHERE id = $1 AND status = $13`

	tag, err := r.pool.Exec(ctx, query,
		job.ID(), job.Status().String(), job.Stage().String(), job.Progress(),
		job.ErrorMessage(), errorCategoryString(job), job.ErrorCode(),
		job.RetryCount(), job.StartedAt(), job.CompletedAt(),
		job.LastProgressAt(), job.NextAttemptAt(),
		expected.String(),
	)
	if err != nil {
		return WrapError(err, "update job")
	}
	if tag.RowsAffected() == 0 {
		return outbound.ErrStatusConflict
	}
	return nil
}

// QueuePosition returns the 1-based rank of a pending job by creation
// order. Returns 0 for jobs that are not pending.
func (r *PostgreSQLJobRepository) QueuePosition(ctx context.Context, jobID uuid.UUID) (int, error) {
	query := `
		SELECT (
			SELECT COUNT(*) + 1
			FROM processing_jobs p
			WHERE p.status = 'pending' AND p.created_at < t.created_at
		)
		FROM processing_jobs t
		WHERE t.id = $1 AND t.status = 'pending'`

	var position int
	err := r.pool.QueryRow(ctx, query, jobID).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, WrapError(err, "queue position")
	}
	return position, nil
}

// CountPending returns the number of pending jobs.
func (r *PostgreSQLJobRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM processing_jobs WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, WrapError(err, "count pending jobs")
	}
	return count, nil
}

// AverageCompletedDuration returns the mean wall-clock duration of the last
// hundred completed jobs, used for queue wait estimates.
func (r *PostgreSQLJobRepository) AverageCompletedDuration(ctx context.Context) (time.Duration, error) {
	query := `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at))), 0)
		FROM (
			SELECT started_at, completed_at
			FROM processing_jobs
			WHERE status = 'completed' AND started_at IS NOT NULL AND completed_at IS NOT NULL
			ORDER BY completed_at DESC
			LIMIT 100
		) recent`

	var seconds float64
	if err := r.pool.QueryRow(ctx, query).Scan(&seconds); err != nil {
		return 0, WrapError(err, "average completed duration")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// FindStale returns processing jobs whose last progress update is older
// than the threshold, oldest first.
func (r *PostgreSQLJobRepository) FindStale(ctx context.Context, threshold time.Duration) ([]*entity.ProcessingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE status = 'processing' AND last_progress_at < NOW() - make_interval(secs => $1)
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, threshold.Seconds())
	if err != nil {
		return nil, WrapError(err, "find stale jobs")
	}
	defer rows.Close()

	var jobs []*entity.ProcessingJob
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, WrapError(scanErr, "scan stale job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err, "iterate stale jobs")
	}
	return jobs, nil
}

func errorCategoryString(job *entity.ProcessingJob) *string {
	if job.ErrorCategory() == nil {
		return nil
	}
	s := job.ErrorCategory().String()
	return &s
}

func scanJob(row pgx.Row) (*entity.ProcessingJob, error) {
	var (
		id, documentID                uuid.UUID
		status, stage                 string
		progress, retryCount          int
		errorMessage, errorCode       *string
		errorCategory                 *string
		createdAt                     time.Time
		startedAt, completedAt        *time.Time
		lastProgressAt, nextAttemptAt time.Time
	)
	if err := row.Scan(
		&id, &documentID, &status, &stage, &progress,
		&errorMessage, &errorCategory, &errorCode,
		&retryCount, &createdAt, &startedAt, &completedAt,
		&lastProgressAt, &nextAttemptAt,
	); err != nil {
		return nil, err
	}

	jobStatus, err := valueobject.NewJobStatus(status)
	if err != nil {
		return nil, err
	}
	jobStage, err := valueobject.NewJobStage(stage)
	if err != nil {
		return nil, err
	}

	var category *valueobject.ErrorCategory
	if errorCategory != nil {
		c, catErr := valueobject.NewErrorCategory(*errorCategory)
		if catErr != nil {
			return nil, catErr
		}
		category = &c
	}

	return entity.RestoreProcessingJob(
		id, documentID, jobStatus, jobStage, progress,
		errorMessage, category, errorCode, retryCount,
		createdAt, startedAt, completedAt, lastProgressAt, nextAttemptAt,
	), nil
}
