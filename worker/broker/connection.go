package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// messageTTL keeps stale work from sitting in the queue forever: 24h.
const messageTTL = 86400000

// Manager owns the broker connection and channel for one worker
// process. Acquire hands out a validated channel, reconnecting behind
// the scenes when the previous one has gone stale.
type Manager struct {
	url    string
	queue  string
	logger *zap.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewManager(url, queue string, logger *zap.Logger) *Manager {
	return &Manager{url: url, queue: queue, logger: logger}
}

func queueArgs() amqp.Table {
	return amqp.Table{"x-message-ttl": int32(messageTTL)}
}

// Acquire returns a live channel with the queue declared and fair
// dispatch configured. An open channel is revalidated with a passive
// queue declare; if the probe fails the stale state is torn down and a
// fresh connection is established.
func (m *Manager) Acquire() (*amqp.Channel, error) {
	if m.ch != nil && !m.ch.IsClosed() {
		if _, err := m.ch.QueueDeclarePassive(m.queue, true, false, false, false, nil); err == nil {
			return m.ch, nil
		}
		m.logger.Warn("Broker liveness probe failed, reconnecting")
	}

	m.Close()

	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(m.queue, true, false, false, false, queueArgs()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", m.queue, err)
	}

	// One unacknowledged message per consumer keeps dispatch fair
	// across worker replicas.
	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	m.conn = conn
	m.ch = ch
	m.logger.Info("Connected to broker", zap.String("queue", m.queue))
	return ch, nil
}

// QueueDepth reports the number of ready messages via a passive declare.
func (m *Manager) QueueDepth() (int, error) {
	ch, err := m.Acquire()
	if err != nil {
		return 0, err
	}

	q, err := ch.QueueDeclarePassive(m.queue, true, false, false, false, nil)
	if err != nil {
		return 0, err
	}
	return q.Messages, nil
}

func (m *Manager) Close() {
	if m.ch != nil {
		m.ch.Close()
		m.ch = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}
