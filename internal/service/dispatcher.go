package service

import (
    "context"
    "errors"
    "log"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/resume-demo-gate/internal/access"
    "github.com/iliyamo/resume-demo-gate/internal/clock"
    "github.com/iliyamo/resume-demo-gate/internal/model"
    "github.com/iliyamo/resume-demo-gate/internal/queue"
)

// ErrQueueFull is reported for a notification that found the buffer full.
var ErrQueueFull = errors.New("notification buffer full")

// ErrClosed is reported for a notification dispatched after Close.
var ErrClosed = errors.New("dispatcher closed")

type job struct {
    ev   queue.NotificationEvent
    done chan error // nil for fire-and-forget
}

// Dispatcher implements access.Notifier.  One worker drains a buffered
// channel, so events are sent in the order they were dispatched.  Every
// send is bounded by timeout.
type Dispatcher struct {
    sender  Sender
    timeout time.Duration
    clock   clock.Clock

    mu     sync.RWMutex
    closed bool
    jobs   chan job
    wg     sync.WaitGroup
}

// NewDispatcher starts the worker.  buffer below 1 is raised to 1; a nil
// clock means clock.Real().
func NewDispatcher(s Sender, buffer int, timeout time.Duration, clk clock.Clock) *Dispatcher {
    if buffer < 1 {
        buffer = 1
    }
    if clk == nil {
        clk = clock.Real()
    }
    d := &Dispatcher{sender: s, timeout: timeout, clock: clk, jobs: make(chan job, buffer)}
    d.wg.Add(1)
    go d.work()
    return d
}

var _ access.Notifier = (*Dispatcher)(nil)

// Dispatch queues a notification and returns at once.  A full buffer drops
// it with a log line.
func (d *Dispatcher) Dispatch(kind model.NotificationKind, recipient string, payload map[string]string) {
    if err := d.enqueue(job{ev: d.event(kind, recipient, payload)}); err != nil {
        log.Printf("notify: dropped %s for %s: %v", kind, access.MaskEmail(recipient), err)
    }
}

// DispatchWait queues a notification behind the pending ones and waits up
// to the dispatcher timeout for its delivery.
func (d *Dispatcher) DispatchWait(kind model.NotificationKind, recipient string, payload map[string]string) (delivered, timedOut bool) {
    done := make(chan error, 1)
    if err := d.enqueue(job{ev: d.event(kind, recipient, payload), done: done}); err != nil {
        log.Printf("notify: dropped %s for %s: %v", kind, access.MaskEmail(recipient), err)
        return false, false
    }
    t := time.NewTimer(d.timeout)
    defer t.Stop()
    select {
    case err := <-done:
        if errors.Is(err, context.DeadlineExceeded) {
            return false, true
        }
        return err == nil, false
    case <-t.C:
        return false, true
    }
}

// Close stops accepting notifications and waits for the buffered ones to
// be sent.
func (d *Dispatcher) Close() {
    d.mu.Lock()
    if d.closed {
        d.mu.Unlock()
        return
    }
    d.closed = true
    close(d.jobs)
    d.mu.Unlock()
    d.wg.Wait()
}

func (d *Dispatcher) enqueue(j job) error {
    d.mu.RLock()
    defer d.mu.RUnlock()
    if d.closed {
        return ErrClosed
    }
    select {
    case d.jobs <- j:
        return nil
    default:
        return ErrQueueFull
    }
}

func (d *Dispatcher) work() {
    defer d.wg.Done()
    for j := range d.jobs {
        ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
        err := d.sender.Send(ctx, j.ev)
        cancel()
        if err != nil {
            log.Printf("notify: send %s to %s failed: %v", j.ev.Kind, access.MaskEmail(j.ev.Recipient), err)
        }
        if j.done != nil {
            j.done <- err
        }
    }
}

func (d *Dispatcher) event(kind model.NotificationKind, recipient string, payload map[string]string) queue.NotificationEvent {
    return queue.NotificationEvent{
        ID:        uuid.NewString(),
        Kind:      string(kind),
        Recipient: recipient,
        Payload:   payload,
        CreatedAt: d.clock.Now().Format(time.RFC3339),
    }
}

// LogSender writes events to the process log.  It stands in for the broker
// in local runs; Reveal prints secret payload fields so a developer can
// complete the flow by hand.
type LogSender struct {
    Reveal bool
}

// Send logs ev on one line.
func (s LogSender) Send(_ context.Context, ev queue.NotificationEvent) error {
    keys := make([]string, 0, len(ev.Payload))
    for k := range ev.Payload {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    var b strings.Builder
    for _, k := range keys {
        v := ev.Payload[k]
        if !s.Reveal && queue.SecretField(k) {
            v = "[redacted]"
        }
        b.WriteString(" " + k + "=" + v)
    }
    log.Printf("notify: %s to %s%s", ev.Kind, access.MaskEmail(ev.Recipient), b.String())
    return nil
}
