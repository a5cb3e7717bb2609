package model

import "time"

// Slot is the single exclusive, time-boxed grant of the demo resource.
// At most one Slot exists at a time; it is created by a successful claim
// and destroyed on release or when its duration elapses.
//
// Fields:
//  Holder    – normalized email of the requester holding the resource.
//  SessionID – opaque session identifier returned to the holder.
//  StartedAt – when the claim was granted.
//  Duration  – fixed length of every session.
type Slot struct {
    Holder    string        `json:"-"`
    SessionID string        `json:"session_id"`
    StartedAt time.Time     `json:"started_at"`
    Duration  time.Duration `json:"duration"`
}

// EndsAt returns the instant the slot expires.
func (s Slot) EndsAt() time.Time { return s.StartedAt.Add(s.Duration) }

// Expired reports whether the slot has run its full duration at now.
func (s Slot) Expired(now time.Time) bool { return !now.Before(s.EndsAt()) }

// Remaining returns the time left on the slot, never negative.
func (s Slot) Remaining(now time.Time) time.Duration {
    if d := s.EndsAt().Sub(now); d > 0 {
        return d
    }
    return 0
}
