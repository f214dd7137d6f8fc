package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const messageTTL = 86400000

// QueueMessage is the wire format consumed by the worker pipeline.
type QueueMessage struct {
	JobID        string `json:"job_id"`
	InputPath    string `json:"input_path"`
	OutputFormat string `json:"output_format"`
	CreatedAt    string `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, msg *QueueMessage) error
	QueueDepth() (int, error)
	Close() error
}

type publisher struct {
	url    string
	queue  string
	logger *zap.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher constructs a lazily-connecting publisher: the broker may
// come up after the API does, so the first dial happens on use.
func NewPublisher(url, queue string, logger *zap.Logger) Publisher {
	return &publisher{url: url, queue: queue, logger: logger}
}

// channel revalidates the cached channel with a passive declare and
// reconnects when it has gone stale.
func (p *publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		if _, err := p.ch.QueueDeclarePassive(p.queue, true, false, false, false, nil); err == nil {
			return p.ch, nil
		}
		p.logger.Warn("Broker liveness probe failed, reconnecting")
	}

	p.Close()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	args := amqp.Table{"x-message-ttl": int32(messageTTL)}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, args); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", p.queue, err)
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *publisher) Publish(ctx context.Context, msg *QueueMessage) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (p *publisher) QueueDepth() (int, error) {
	ch, err := p.channel()
	if err != nil {
		return 0, err
	}

	q, err := ch.QueueDeclarePassive(p.queue, true, false, false, false, nil)
	if err != nil {
		return 0, err
	}
	return q.Messages, nil
}

func (p *publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	return nil
}
