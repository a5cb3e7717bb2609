// Package service delivers arbitrator notifications.  A Dispatcher orders
// and times the deliveries; a Sender hands each event to the mail side,
// either over RabbitMQ or to the process log.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/resume-demo-gate/internal/queue"
)

// Sender delivers one event.  It must honour ctx cancellation.
type Sender interface {
    Send(ctx context.Context, ev queue.NotificationEvent) error
}

// AMQPSender publishes events as persistent JSON messages to a durable
// queue on the default exchange.  The connection is opened lazily and
// re-dialled after a failed publish.
type AMQPSender struct {
    url   string
    queue string

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewAMQPSender returns a sender for the broker at url.  No connection is
// made until the first Send.
func NewAMQPSender(url, queueName string) *AMQPSender {
    if queueName == "" {
        queueName = queue.DefaultQueueName
    }
    return &AMQPSender{url: url, queue: queueName}
}

// Send publishes ev.  Errors are logged and returned so the dispatcher can
// report the failure to its caller.
func (s *AMQPSender) Send(ctx context.Context, ev queue.NotificationEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return fmt.Errorf("marshal event: %w", err)
    }

    s.mu.Lock()
    defer s.mu.Unlock()
    ch, err := s.channelLocked()
    if err != nil {
        log.Printf("rabbitmq: %v", err)
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.ID,
        Type:         ev.Kind,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        s.closeLocked()
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

// Close drops the broker connection.
func (s *AMQPSender) Close() error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.closeLocked()
    return nil
}

func (s *AMQPSender) channelLocked() (*amqp.Channel, error) {
    if s.ch != nil && !s.ch.IsClosed() {
        return s.ch, nil
    }
    s.closeLocked()
    conn, err := amqp.Dial(s.url)
    if err != nil {
        return nil, fmt.Errorf("dial failed: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open failed: %w", err)
    }
    // Idempotent; durable so pending mail survives a broker restart.
    if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("queue declare failed: %w", err)
    }
    s.conn, s.ch = conn, ch
    return ch, nil
}

func (s *AMQPSender) closeLocked() {
    if s.ch != nil {
        _ = s.ch.Close()
        s.ch = nil
    }
    if s.conn != nil {
        _ = s.conn.Close()
        s.conn = nil
    }
}
