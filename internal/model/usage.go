package model

import "time"

// UsageRecord aggregates how often an identity was granted the slot.
// Records are only ever updated, never deleted while the process runs.
type UsageRecord struct {
    Identity       string    `json:"-"`
    Email          string    `json:"email"` // masked identity for display
    Grants         int       `json:"usage_count"`
    FirstGrantAt   time.Time `json:"first_used"`
    LastGrantAt    time.Time `json:"last_used"`
    FirstSessionID string    `json:"first_session_id"`
    LastSessionID  string    `json:"last_session_id"`
}
