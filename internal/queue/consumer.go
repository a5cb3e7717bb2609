// Package queue contains the background consumer that listens to the
// notification queue and writes an audit line per message to
// logs/notifications.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/resume-demo-gate/internal/access"
)

// DefaultQueueName is the durable queue notifications are published to.
const DefaultQueueName = "demo.notifications"

const logFileName = "notifications.log"

// StartNotificationConsumer connects to RabbitMQ, declares queueName
// (durable) and appends one masked line per message to
// dir/notifications.log.  It reconnects with backoff until ctx is done and
// then returns ctx.Err().  Bad messages are rejected without requeue so the
// loop keeps running.
func StartNotificationConsumer(ctx context.Context, url, queueName, dir string) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, queueName, dir)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName, dir string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("notify-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, open := <-msgs:
            if !open {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(dir, d.Body); err != nil {
                log.Printf("notify-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(dir string, body []byte) error {
    var ev NotificationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Kind == "" || ev.Recipient == "" {
        return errors.New("event without kind or recipient")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// formatLine renders ev as one line with the recipient masked, secrets
// redacted and payload keys sorted.
func formatLine(ev NotificationEvent) string {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s | id=%s | to=%s", ev.CreatedAt, ev.Kind, ev.ID, access.MaskEmail(ev.Recipient))
    keys := make([]string, 0, len(ev.Payload))
    for k := range ev.Payload {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    for _, k := range keys {
        v := ev.Payload[k]
        if SecretField(k) {
            v = "[redacted]"
        }
        fmt.Fprintf(&b, " | %s=%s", k, v)
    }
    b.WriteByte('\n')
    return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
