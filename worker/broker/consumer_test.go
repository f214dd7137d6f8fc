package broker

import (
	"context"
	"errors"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"

	"videoConverter/worker/metrics"
	"videoConverter/worker/repository"
)

type mockAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	m.acked = true
	return nil
}

func (m *mockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

type mockStatusWriter struct {
	calls []struct {
		id     string
		status repository.Status
		patch  repository.StatusPatch
	}
}

func (m *mockStatusWriter) UpdateStatus(ctx context.Context, id string, status repository.Status, patch repository.StatusPatch) (*repository.Job, error) {
	m.calls = append(m.calls, struct {
		id     string
		status repository.Status
		patch  repository.StatusPatch
	}{id, status, patch})
	return &repository.Job{ID: id, Status: status}, nil
}

func newTestConsumer(t *testing.T, process ProcessFunc, repo *mockStatusWriter) *Consumer {
	return NewConsumer(nil, "video-jobs", process, repo, zaptest.NewLogger(t), metrics.New())
}

func delivery(ack *mockAcknowledger, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(body),
	}
}

const validBody = `{"job_id":"j1","input_path":"uploads/a.avi","output_format":"mp4","created_at":"2024-01-01T12:00:00Z"}`

func TestHandleDelivery_Success_Acks(t *testing.T) {
	processed := false
	c := newTestConsumer(t, func(ctx context.Context, msg *QueueMessage) error {
		processed = true
		if msg.JobID != "j1" || msg.InputPath != "uploads/a.avi" {
			t.Errorf("Unexpected message: %+v", msg)
		}
		return nil
	}, &mockStatusWriter{})

	ack := &mockAcknowledger{}
	c.HandleDelivery(context.Background(), delivery(ack, validBody))

	if !processed {
		t.Fatal("Expected message to be processed")
	}
	if !ack.acked || ack.nacked {
		t.Errorf("Expected ack, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}
}

func TestHandleDelivery_MalformedBody_RejectsPermanently(t *testing.T) {
	repo := &mockStatusWriter{}
	c := newTestConsumer(t, func(ctx context.Context, msg *QueueMessage) error {
		t.Fatal("Processor must not run for malformed messages")
		return nil
	}, repo)

	ack := &mockAcknowledger{}
	c.HandleDelivery(context.Background(), delivery(ack, `{not json`))

	if !ack.nacked || ack.requeue {
		t.Errorf("Expected nack without requeue, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}
	if len(repo.calls) != 0 {
		t.Error("No job may be created or mutated for a malformed message")
	}
}

func TestHandleDelivery_ShutdownRequeuesWithoutProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestConsumer(t, func(ctx context.Context, msg *QueueMessage) error {
		t.Fatal("Processor must not run during shutdown")
		return nil
	}, &mockStatusWriter{})

	ack := &mockAcknowledger{}
	c.HandleDelivery(ctx, delivery(ack, validBody))

	if !ack.nacked || !ack.requeue {
		t.Errorf("Expected nack with requeue, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}
}

func TestHandleDelivery_JobFailure_DropsMessage(t *testing.T) {
	c := newTestConsumer(t, func(ctx context.Context, msg *QueueMessage) error {
		return ErrJobFailed
	}, &mockStatusWriter{})

	ack := &mockAcknowledger{}
	c.HandleDelivery(context.Background(), delivery(ack, validBody))

	if !ack.nacked || ack.requeue {
		t.Errorf("Expected nack without requeue, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}
}

func TestHandleDelivery_CancellationRequeues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	repo := &mockStatusWriter{}
	c := newTestConsumer(t, func(ctx context.Context, msg *QueueMessage) error {
		cancel()
		return context.Canceled
	}, repo)

	ack := &mockAcknowledger{}
	c.HandleDelivery(ctx, delivery(ack, validBody))

	if !ack.nacked || !ack.requeue {
		t.Errorf("Expected nack with requeue, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}
	if len(repo.calls) != 0 {
		t.Error("Cancellation must not write a terminal status from the consumer")
	}
}

func TestHandleDelivery_UnexpectedError_MarksFailedAndRequeues(t *testing.T) {
	repo := &mockStatusWriter{}
	c := newTestConsumer(t, func(ctx context.Context, msg *QueueMessage) error {
		return errors.New("scratch dir: disk full")
	}, repo)

	ack := &mockAcknowledger{}
	c.HandleDelivery(context.Background(), delivery(ack, validBody))

	if !ack.nacked || !ack.requeue {
		t.Errorf("Expected nack with requeue, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}

	if len(repo.calls) != 1 {
		t.Fatalf("Expected one failure write, got %d", len(repo.calls))
	}
	call := repo.calls[0]
	if call.id != "j1" || call.status != repository.StatusFailed {
		t.Errorf("Expected j1 marked failed, got %s %s", call.id, call.status)
	}
	if call.patch.ErrorMessage == nil || !strings.Contains(*call.patch.ErrorMessage, "disk full") {
		t.Errorf("Expected error text recorded, got %v", call.patch.ErrorMessage)
	}
}

func TestHandleDelivery_PanicIsContained(t *testing.T) {
	repo := &mockStatusWriter{}
	c := newTestConsumer(t, func(ctx context.Context, msg *QueueMessage) error {
		panic("boom")
	}, repo)

	ack := &mockAcknowledger{}
	c.HandleDelivery(context.Background(), delivery(ack, validBody))

	if !ack.nacked || !ack.requeue {
		t.Errorf("Expected nack with requeue after panic, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}
	if len(repo.calls) != 1 || repo.calls[0].status != repository.StatusFailed {
		t.Error("Expected panic to be recorded as a job failure")
	}
}

func TestHandleDelivery_ActiveJobGaugeBalances(t *testing.T) {
	m := metrics.New()
	var seen int64
	c := NewConsumer(nil, "video-jobs", func(ctx context.Context, msg *QueueMessage) error {
		seen = m.ActiveJobs()
		return nil
	}, &mockStatusWriter{}, zaptest.NewLogger(t), m)

	ack := &mockAcknowledger{}
	c.HandleDelivery(context.Background(), delivery(ack, validBody))

	if seen != 1 {
		t.Errorf("Expected gauge of 1 during processing, got %d", seen)
	}
	if m.ActiveJobs() != 0 {
		t.Errorf("Expected gauge back to 0 after processing, got %d", m.ActiveJobs())
	}
}
