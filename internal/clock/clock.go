// Package clock abstracts the time source used by the access arbitrator so
// expiry logic can be driven deterministically in tests.
package clock

import "time"

// Clock is the time source consumed by components that compare durations.
// Production code uses Real(); tests use NewFake() and move time with Advance.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTicker returns a Ticker delivering ticks every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C. C has capacity 1; ticks are dropped
// when the reader falls behind, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. It does not close C.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
