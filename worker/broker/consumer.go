package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"videoConverter/worker/metrics"
	"videoConverter/worker/repository"
)

const reconnectDelay = 5 * time.Second

// QueueMessage is the wire format carried on the job queue.
type QueueMessage struct {
	JobID        string `json:"job_id"`
	InputPath    string `json:"input_path"`
	OutputFormat string `json:"output_format"`
	CreatedAt    string `json:"created_at"`
}

// ErrJobFailed signals that processing failed and the job's terminal
// state is already recorded; the delivery should be dropped, not
// requeued.
var ErrJobFailed = errors.New("job processing failed")

type ProcessFunc func(ctx context.Context, msg *QueueMessage) error

type statusWriter interface {
	UpdateStatus(ctx context.Context, id string, status repository.Status, patch repository.StatusPatch) (*repository.Job, error)
}

// Consumer pulls deliveries one at a time and decides their
// disposition: ack on success, drop on recorded job failure, requeue on
// shutdown or unexpected errors.
type Consumer struct {
	manager *Manager
	queue   string
	process ProcessFunc
	repo    statusWriter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewConsumer(manager *Manager, queue string, process ProcessFunc, repo statusWriter, logger *zap.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		manager: manager,
		queue:   queue,
		process: process,
		repo:    repo,
		logger:  logger,
		metrics: m,
	}
}

// Run consumes until ctx is cancelled. A closed delivery channel is
// treated as a connection failure and triggers a reconnect through the
// manager.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		ch, err := c.manager.Acquire()
		if err != nil {
			c.logger.Error("Failed to acquire broker channel", zap.Error(err))
			if !sleepCtx(ctx, reconnectDelay) {
				return nil
			}
			continue
		}

		deliveries, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
		if err != nil {
			c.logger.Error("Failed to start consuming", zap.Error(err))
			if !sleepCtx(ctx, reconnectDelay) {
				return nil
			}
			continue
		}

		c.logger.Info("Worker ready, waiting for jobs", zap.String("queue", c.queue))

		for d := range deliveries {
			c.HandleDelivery(ctx, d)
		}

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("Delivery channel closed, reconnecting")
	}
}

// HandleDelivery drives one message through the pipeline and settles it.
func (c *Consumer) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	var msg QueueMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("Invalid message body", zap.Error(err))
		c.metrics.RecordFailure("invalid_message")
		d.Nack(false, false)
		return
	}

	if ctx.Err() != nil {
		c.logger.Info("Shutdown requested, requeueing message", zap.String("job_id", msg.JobID))
		d.Nack(false, true)
		return
	}

	c.logger.Info("Received job", zap.String("job_id", msg.JobID))
	err := c.safeProcess(ctx, &msg)

	switch {
	case err == nil:
		c.metrics.JobsProcessed.WithLabelValues("success").Inc()
		d.Ack(false)

	case errors.Is(err, ErrJobFailed):
		// Terminal failure already recorded on the job record; the
		// message is dropped so another worker does not repeat a
		// data-specific failure.
		c.metrics.JobsProcessed.WithLabelValues("failed").Inc()
		c.metrics.RecordFailure("nack")
		d.Nack(false, false)

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		c.logger.Warn("Processing interrupted by shutdown, requeueing",
			zap.String("job_id", msg.JobID))
		d.Nack(false, true)

	default:
		// Possibly environmental rather than data-specific: record the
		// failure but give the message another chance elsewhere.
		c.logger.Error("Unexpected error processing message",
			zap.String("job_id", msg.JobID),
			zap.Error(err),
		)
		c.metrics.JobsProcessed.WithLabelValues("failed").Inc()
		c.metrics.RecordFailure("unexpected_error")
		c.markFailed(msg.JobID, err)
		d.Nack(false, true)
	}
}

// safeProcess keeps the active-job gauge balanced and converts panics
// into errors so a single bad job cannot take the consumer down.
func (c *Consumer) safeProcess(ctx context.Context, msg *QueueMessage) (err error) {
	c.metrics.JobStarted()
	defer c.metrics.JobFinished()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
		}
	}()

	return c.process(ctx, msg)
}

func (c *Consumer) markFailed(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errText := cause.Error()
	if _, err := c.repo.UpdateStatus(ctx, jobID, repository.StatusFailed, repository.StatusPatch{
		ErrorMessage: &errText,
	}); err != nil {
		c.logger.Error("Failed to record job failure",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
