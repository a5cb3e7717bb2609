package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAdvance(t *testing.T) {
	c := NewFake(epoch)
	c.Advance(90 * time.Second)
	if got, want := c.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestFakeTickerFiresOnDeadline(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	c.Advance(500 * time.Millisecond)
	select {
	case <-tk.C:
		t.Fatal("ticker fired before its deadline")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case got := <-tk.C:
		if !got.Equal(epoch.Add(time.Second)) {
			t.Fatalf("tick = %v, want %v", got, epoch.Add(time.Second))
		}
	default:
		t.Fatal("ticker did not fire at its deadline")
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Second)
	tk.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-tk.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeTickerDropsOverflow(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	c.Advance(10 * time.Second)
	<-tk.C
	select {
	case <-tk.C:
		t.Fatal("ticker queued more than one tick")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-tk.C:
	default:
		t.Fatal("ticker did not resume after overflow")
	}
}
