package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"videoConverter/api/models"
)

// db is the slice of pgxpool.Pool the repository uses; narrowed so
// tests can substitute a recorder.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresRepo struct {
	db db
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const jobColumns = `id, status, input_path, output_path, output_format, created_at, updated_at, error_message, conversion_time_ms`

// InitSchema creates the jobs table and its status index. Both the API
// and the worker run this at startup so either process can come up
// first against a fresh store.
func (r *PostgresRepo) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'pending',
			input_path TEXT NOT NULL,
			output_path TEXT,
			output_format TEXT DEFAULT 'mp4',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			error_message TEXT,
			conversion_time_ms BIGINT
		)
	`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`)
	return err
}

func (r *PostgresRepo) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, status, input_path, output_format)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		job.ID,
		job.Status,
		job.InputPath,
		job.OutputFormat,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrJobAlreadyExists
		}
		return err
	}

	return nil
}

func (r *PostgresRepo) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)

	var job models.Job
	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.InputPath,
		&job.OutputPath,
		&job.OutputFormat,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.ErrorMessage,
		&job.ConversionTimeMS,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return &job, nil
}

func (r *PostgresRepo) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if status != "" {
		query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err = r.db.Query(ctx, query, status, limit)
	} else {
		query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT $1`
		rows, err = r.db.Query(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var job models.Job
		if err := rows.Scan(
			&job.ID,
			&job.Status,
			&job.InputPath,
			&job.OutputPath,
			&job.OutputFormat,
			&job.CreatedAt,
			&job.UpdatedAt,
			&job.ErrorMessage,
			&job.ConversionTimeMS,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (r *PostgresRepo) CountsByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int64)
	for rows.Next() {
		var status models.JobStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
