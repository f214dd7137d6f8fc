package service

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"videoConverter/api/broker"
	"videoConverter/api/cache"
	"videoConverter/api/dto"
	"videoConverter/api/models"
	"videoConverter/api/repository"
	"videoConverter/api/storage"
	"videoConverter/api/validation"
)

var ErrJobNotReady = errors.New("job output is not available yet")

const defaultOutputFormat = "mp4"

type JobService struct {
	repo      repository.Repository
	cache     *cache.StatusCache
	publisher broker.Publisher
	presigner *storage.Presigner
	logger    *zap.Logger
}

func NewJobService(repo repository.Repository, statusCache *cache.StatusCache, publisher broker.Publisher, presigner *storage.Presigner, logger *zap.Logger) *JobService {
	return &JobService{
		repo:      repo,
		cache:     statusCache,
		publisher: publisher,
		presigner: presigner,
		logger:    logger,
	}
}

// CreateUploadURL hands the client a presigned PUT target plus the job
// id it should use when creating the conversion job.
func (s *JobService) CreateUploadURL(ctx context.Context, req *dto.UploadURLRequest) (*dto.UploadURLResponse, error) {
	if err := validation.ValidateUploadFilename(req.Filename); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	ext := filepath.Ext(validation.SanitizeFilename(req.Filename))
	if ext == "" {
		ext = ".mp4"
	}
	objectPath := "uploads/" + jobID + ext

	uploadURL, err := s.presigner.PresignUpload(ctx, objectPath)
	if err != nil {
		return nil, err
	}

	return &dto.UploadURLResponse{
		UploadURL:  uploadURL,
		ObjectPath: objectPath,
		JobID:      jobID,
		ExpiresIn:  s.presigner.ExpirySeconds(),
	}, nil
}

// CreateJob persists the pending record first, then publishes the queue
// message, so a consumer can never see a message for a job that does
// not exist yet.
func (s *JobService) CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*dto.JobResponse, error) {
	if req.InputPath == "" {
		return nil, validation.ErrEmptyInputPath
	}

	format := req.OutputFormat
	if format == "" {
		format = defaultOutputFormat
	}
	if err := validation.ValidateOutputFormat(format); err != nil {
		return nil, err
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	job := &models.Job{
		ID:           jobID,
		Status:       models.StatusPending,
		InputPath:    req.InputPath,
		OutputFormat: format,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, job.ID, models.StatusPending); err != nil {
		s.logger.Warn("Failed to prime status cache", zap.String("job_id", job.ID), zap.Error(err))
	}

	msg := &broker.QueueMessage{
		JobID:        job.ID,
		InputPath:    job.InputPath,
		OutputFormat: job.OutputFormat,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Info("Created job and enqueued for processing", zap.String("job_id", job.ID))
	return toResponse(job), nil
}

// GetJob answers status polls from the cache when possible; the full
// record comes from the store.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*dto.JobResponse, error) {
	if status, err := s.cache.Get(ctx, jobID); err == nil {
		return &dto.JobResponse{ID: jobID, Status: string(status)}, nil
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, dto.ErrJobNotFound
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, job.ID, job.Status); err != nil {
		s.logger.Warn("Failed to refresh status cache", zap.String("job_id", job.ID), zap.Error(err))
	}

	return toResponse(job), nil
}

func (s *JobService) GetDownloadURL(ctx context.Context, jobID string) (*dto.DownloadURLResponse, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, dto.ErrJobNotFound
		}
		return nil, err
	}

	if job.Status != models.StatusCompleted || job.OutputPath == nil {
		return nil, ErrJobNotReady
	}

	downloadURL, err := s.presigner.PresignDownload(ctx, *job.OutputPath)
	if err != nil {
		return nil, err
	}

	return &dto.DownloadURLResponse{
		DownloadURL: downloadURL,
		ExpiresIn:   s.presigner.ExpirySeconds(),
	}, nil
}

func (s *JobService) ListJobs(ctx context.Context, status string, limit int) ([]dto.JobResponse, error) {
	if status != "" && !models.JobStatus(status).Valid() {
		return nil, validation.ErrInvalidStatus
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	jobs, err := s.repo.ListJobs(ctx, models.JobStatus(status), limit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, *toResponse(&jobs[i]))
	}
	return responses, nil
}

func (s *JobService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	counts, err := s.repo.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[string]int64, len(counts))
	for status, count := range counts {
		byStatus[string(status)] = count
	}

	depth, err := s.publisher.QueueDepth()
	if err != nil {
		s.logger.Warn("Failed to read queue depth", zap.Error(err))
		depth = 0
	}

	return &dto.StatsResponse{Counts: byStatus, QueueDepth: depth}, nil
}

func toResponse(job *models.Job) *dto.JobResponse {
	return &dto.JobResponse{
		ID:               job.ID,
		Status:           string(job.Status),
		InputPath:        job.InputPath,
		OutputPath:       job.OutputPath,
		OutputFormat:     job.OutputFormat,
		CreatedAt:        job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.UTC().Format(time.RFC3339),
		ErrorMessage:     job.ErrorMessage,
		ConversionTimeMS: job.ConversionTimeMS,
	}
}
