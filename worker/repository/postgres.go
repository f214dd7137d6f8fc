package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrDuplicateJob = errors.New("job already exists")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Job struct {
	ID               string
	Status           Status
	InputPath        string
	OutputPath       *string
	OutputFormat     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ErrorMessage     *string
	ConversionTimeMS *int64
}

// StatusPatch enumerates the optional columns a status update may touch.
// Nil fields keep their current value.
type StatusPatch struct {
	OutputPath       *string
	ErrorMessage     *string
	ConversionTimeMS *int64
}

type Repository interface {
	Create(ctx context.Context, id, inputPath, outputFormat string) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	UpdateStatus(ctx context.Context, id string, status Status, patch StatusPatch) (*Job, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Job, error)
	CountsByStatus(ctx context.Context) (map[Status]int64, error)
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const jobColumns = `id, status, input_path, output_path, output_format, created_at, updated_at, error_message, conversion_time_ms`

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

func (r *PostgresRepo) Create(ctx context.Context, id, inputPath, outputFormat string) (*Job, error) {
	query := `
		INSERT INTO jobs (id, status, input_path, output_format)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + jobColumns

	row := r.db.QueryRow(ctx, query, id, StatusPending, inputPath, outputFormat)

	job, err := scanJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateJob
		}
		return nil, err
	}

	return job, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return job, nil
}

// UpdateStatus sets status and updated_at together in one statement.
// Optional columns are applied through COALESCE so an unset patch field
// never clobbers a previously written value.
func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, status Status, patch StatusPatch) (*Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    updated_at = NOW(),
		    output_path = COALESCE($2, output_path),
		    error_message = COALESCE($3, error_message),
		    conversion_time_ms = COALESCE($4, conversion_time_ms)
		WHERE id = $5
		RETURNING ` + jobColumns

	row := r.db.QueryRow(ctx, query, status, patch.OutputPath, patch.ErrorMessage, patch.ConversionTimeMS, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return job, nil
}

func (r *PostgresRepo) ListByStatus(ctx context.Context, status Status, limit int) ([]Job, error) {
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

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

func (r *PostgresRepo) CountsByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
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
		return nil, err
	}
	return &job, nil
}
