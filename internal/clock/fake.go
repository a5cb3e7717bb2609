package clock

import (
	"sync"
	"time"
)

// Fake is a deterministic Clock. Time stands still until Advance or Set is
// called. It is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch       chan time.Time
	next     time.Time
	interval time.Duration
	stopped  bool
}

// NewFake returns a Fake clock set to initial.
func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// NewTicker registers a ticker that fires whenever Advance crosses one of
// its deadlines.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := &fakeTicker{
		ch:       make(chan time.Time, 1),
		next:     f.current.Add(d),
		interval: d,
	}
	f.tickers = append(f.tickers, ft)
	return &Ticker{
		C: ft.ch,
		stop: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			ft.stopped = true
		},
	}
}

// Advance moves the clock forward by d and fires due tickers. A ticker
// whose deadline was crossed several times fires once; the extra ticks are
// dropped like a full time.Ticker channel would drop them.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	f.fireLocked()
}

// Set jumps the clock to t. Moving backwards does not fire tickers.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
	f.fireLocked()
}

func (f *Fake) fireLocked() {
	live := f.tickers[:0]
	for _, ft := range f.tickers {
		if ft.stopped {
			continue
		}
		if !f.current.Before(ft.next) {
			select {
			case ft.ch <- f.current:
			default:
			}
			for !f.current.Before(ft.next) {
				ft.next = ft.next.Add(ft.interval)
			}
		}
		live = append(live, ft)
	}
	f.tickers = live
}
