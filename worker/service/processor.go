package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"videoConverter/worker/broker"
	"videoConverter/worker/metrics"
	"videoConverter/worker/repository"
)

type Repository interface {
	UpdateStatus(ctx context.Context, id string, status repository.Status, patch repository.StatusPatch) (*repository.Job, error)
}

type ObjectStore interface {
	Download(ctx context.Context, objectPath, localPath string) bool
	Upload(ctx context.Context, localPath, objectPath string) bool
}

type Transcoder interface {
	Convert(ctx context.Context, inputPath, outputPath, outputFormat string) (int64, error)
}

type StatusCache interface {
	Set(ctx context.Context, jobID string, status string) error
}

// Processor runs one job end to end: mark processing, download,
// transcode, upload, record the terminal status. Each step only runs if
// the previous one succeeded, and the terminal write always lands
// before the caller settles the message.
type Processor struct {
	repo       Repository
	store      ObjectStore
	transcoder Transcoder
	cache      StatusCache
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewProcessor(repo Repository, store ObjectStore, transcoder Transcoder, cache StatusCache, logger *zap.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		repo:       repo,
		store:      store,
		transcoder: transcoder,
		cache:      cache,
		logger:     logger,
		metrics:    m,
	}
}

func (p *Processor) Process(ctx context.Context, msg *broker.QueueMessage) error {
	p.logger.Info("Processing job", zap.String("job_id", msg.JobID))

	if err := p.setStatus(ctx, msg.JobID, repository.StatusProcessing, repository.StatusPatch{}); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	scratch, err := os.MkdirTemp("", "convert-"+msg.JobID+"-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	inputExt := filepath.Ext(msg.InputPath)
	if inputExt == "" {
		inputExt = ".mp4"
	}
	outputExt := "." + msg.OutputFormat

	inputLocal := filepath.Join(scratch, "input"+inputExt)
	outputLocal := filepath.Join(scratch, "output"+outputExt)

	if !p.store.Download(ctx, msg.InputPath, inputLocal) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.fail(ctx, msg.JobID, "Failed to download input file", nil)
	}

	durationMS, convErr := p.transcoder.Convert(ctx, inputLocal, outputLocal, msg.OutputFormat)
	if convErr != nil {
		if ctx.Err() != nil {
			// Shutdown killed the transcoder; leave the record as-is so
			// the requeued delivery can rerun the job cleanly.
			return ctx.Err()
		}
		p.metrics.RecordFailure("ffmpeg_error")
		return p.fail(ctx, msg.JobID, convErr.Error(), &durationMS)
	}
	p.metrics.ConversionTime.Observe(float64(durationMS) / 1000)

	outputPath := "converted/" + msg.JobID + outputExt
	if !p.store.Upload(ctx, outputLocal, outputPath) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.fail(ctx, msg.JobID, "Failed to upload converted file", &durationMS)
	}

	if err := p.setStatus(ctx, msg.JobID, repository.StatusCompleted, repository.StatusPatch{
		OutputPath:       &outputPath,
		ConversionTimeMS: &durationMS,
	}); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	p.logger.Info("Job completed",
		zap.String("job_id", msg.JobID),
		zap.String("output_path", outputPath),
		zap.Int64("conversion_time_ms", durationMS),
	)
	return nil
}

// fail records the terminal failed state before the message is settled.
// A store error here is surfaced as unexpected instead of ErrJobFailed
// so the delivery gets requeued rather than dropped unrecorded.
func (p *Processor) fail(ctx context.Context, jobID, errorMessage string, durationMS *int64) error {
	p.logger.Warn("Job failed",
		zap.String("job_id", jobID),
		zap.String("error", errorMessage),
	)

	if err := p.setStatus(ctx, jobID, repository.StatusFailed, repository.StatusPatch{
		ErrorMessage:     &errorMessage,
		ConversionTimeMS: durationMS,
	}); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}

	return broker.ErrJobFailed
}

func (p *Processor) setStatus(ctx context.Context, jobID string, status repository.Status, patch repository.StatusPatch) error {
	if _, err := p.repo.UpdateStatus(ctx, jobID, status, patch); err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, jobID, string(status)); err != nil {
			p.logger.Warn("Failed to update status cache",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
		}
	}
	return nil
}
