package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/pdfjobs/internal/domain"
)

const jobColumns = `id, doc_type, consultation_id, care_plan_id, requested_by, status,
		created_at, started_at, finished_at, file_path, error_message`

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(ctx context.Context, databaseURL string) (*PostgresJobsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	repo := &PostgresJobsRepository{pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresJobsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresJobsRepository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *PostgresJobsRepository) ensureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pdf_jobs (
			id TEXT PRIMARY KEY,
			doc_type TEXT NOT NULL,
			consultation_id TEXT,
			care_plan_id TEXT,
			requested_by TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			file_path TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS pdf_jobs_queued_idx
			ON pdf_jobs (created_at) WHERE status = 'queued';
	`)
	if err != nil {
		return fmt.Errorf("ensure pdf_jobs schema: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pdf_jobs (
			id,
			doc_type,
			consultation_id,
			care_plan_id,
			requested_by,
			status,
			created_at,
			started_at,
			finished_at,
			file_path,
			error_message
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		job.ID,
		string(job.Type),
		nullableText(job.ConsultationID),
		nullableText(job.CarePlanID),
		job.RequestedBy,
		string(job.Status),
		job.CreatedAt,
		job.StartedAt,
		job.FinishedAt,
		job.FilePath,
		job.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM pdf_jobs
		WHERE id = $1
	`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

func (r *PostgresJobsRepository) OldestQueuedID(ctx context.Context) (string, error) {
	var jobID string
	err := r.pool.QueryRow(ctx, `
		SELECT id
		FROM pdf_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, string(domain.JobStatusQueued)).Scan(&jobID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query oldest queued job: %w", err)
	}
	return jobID, nil
}

// ClaimJob races other workers with a conditional update: the WHERE clause
// re-checks the queued status and the affected-row count decides the winner.
func (r *PostgresJobsRepository) ClaimJob(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	command, err := r.pool.Exec(ctx, `
		UPDATE pdf_jobs
		SET status = $2,
			started_at = $3
		WHERE id = $1 AND status = $4
	`, jobID, string(domain.JobStatusProcessing), startedAt, string(domain.JobStatusQueued))
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return command.RowsAffected() == 1, nil
}

func (r *PostgresJobsRepository) MarkJobDone(ctx context.Context, jobID, filePath string, finishedAt time.Time) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE pdf_jobs
		SET status = $2,
			file_path = $3,
			error_message = '',
			finished_at = $4
		WHERE id = $1
	`, jobID, string(domain.JobStatusDone), filePath, finishedAt)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) MarkJobFailed(ctx context.Context, jobID, errorMessage string, finishedAt time.Time) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE pdf_jobs
		SET status = $2,
			error_message = $3,
			finished_at = $4
		WHERE id = $1
	`, jobID, string(domain.JobStatusFailed), errorMessage, finishedAt)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) ListJobsByRequester(ctx context.Context, requestedBy string) ([]*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM pdf_jobs
		ORDER BY created_at DESC
	`
	args := []any{}
	if requestedBy != "" {
		query = `
			SELECT ` + jobColumns + `
			FROM pdf_jobs
			WHERE requested_by = $1
			ORDER BY created_at DESC
		`
		args = append(args, requestedBy)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		items = append(items, job)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate jobs: %w", rows.Err())
	}
	return items, nil
}

func (r *PostgresJobsRepository) CountJobs(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pdf_jobs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return total, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job            domain.Job
		docType        string
		consultationID *string
		carePlanID     *string
		status         string
	)
	err := row.Scan(
		&job.ID,
		&docType,
		&consultationID,
		&carePlanID,
		&job.RequestedBy,
		&status,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
		&job.FilePath,
		&job.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	job.Type = domain.DocumentType(docType)
	job.Status = domain.JobStatus(status)
	if consultationID != nil {
		job.ConsultationID = *consultationID
	}
	if carePlanID != nil {
		job.CarePlanID = *carePlanID
	}
	return &job, nil
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
