package repository

import (
	"context"
	"errors"

	"videoConverter/api/models"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrJobAlreadyExists = errors.New("job already exists")
)

type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error)
	CountsByStatus(ctx context.Context) (map[models.JobStatus]int64, error)
}
