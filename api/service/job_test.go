package service

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"videoConverter/api/models"
	"videoConverter/api/validation"
)

type mockRepository struct {
	createJobFunc      func(ctx context.Context, job *models.Job) error
	getJobFunc         func(ctx context.Context, id string) (*models.Job, error)
	listJobsFunc       func(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error)
	countsByStatusFunc func(ctx context.Context) (map[models.JobStatus]int64, error)
}

func (m *mockRepository) CreateJob(ctx context.Context, job *models.Job) error {
	return m.createJobFunc(ctx, job)
}

func (m *mockRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return m.getJobFunc(ctx, id)
}

func (m *mockRepository) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	return m.listJobsFunc(ctx, status, limit)
}

func (m *mockRepository) CountsByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {
	return m.countsByStatusFunc(ctx)
}

func TestListJobs_LimitClamping(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero gets default", 0, 100},
		{"negative gets default", -5, 100},
		{"in range passes through", 7, 7},
		{"max passes through", 1000, 1000},
		{"over max clamps to max", 5000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			repo := &mockRepository{
				listJobsFunc: func(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
					gotLimit = limit
					return nil, nil
				},
			}
			svc := NewJobService(repo, nil, nil, nil, zaptest.NewLogger(t))

			if _, err := svc.ListJobs(context.Background(), "", tt.limit); err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("limit %d: expected repo to see %d, got %d", tt.limit, tt.wantLimit, gotLimit)
			}
		})
	}
}

func TestListJobs_RejectsUnknownStatus(t *testing.T) {
	repo := &mockRepository{
		listJobsFunc: func(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
			t.Fatal("Repository must not be queried for an invalid status")
			return nil, nil
		},
	}
	svc := NewJobService(repo, nil, nil, nil, zaptest.NewLogger(t))

	if _, err := svc.ListJobs(context.Background(), "exploded", 10); err != validation.ErrInvalidStatus {
		t.Fatalf("Expected ErrInvalidStatus, got %v", err)
	}
}
