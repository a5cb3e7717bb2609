package access

import (
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/resume-demo-gate/internal/model"
)

// UsageStats summarizes grants across identities.
type UsageStats struct {
	TotalUniqueEmails int       `json:"totalUniqueEmails"`
	TotalSessions     int       `json:"totalSessions"`
	RecentUsers24h    int       `json:"recentUsers24h"`
	TopUsers          []TopUser `json:"topUsers"`
	Timestamp         time.Time `json:"timestamp"`
}

// TopUser is a repeat user in UsageStats.
type TopUser struct {
	Email      string `json:"email"`
	UsageCount int    `json:"usageCount"`
}

// UsageTracker aggregates grants per identity.  It has its own lock so
// admin reads never wait on the arbitrator.
type UsageTracker struct {
	mu      sync.RWMutex
	records map[string]*model.UsageRecord
}

// NewUsageTracker returns an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{records: make(map[string]*model.UsageRecord)}
}

// RecordGrant counts one grant of the slot to identity.
func (u *UsageTracker) RecordGrant(identity, sessionID string, now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	r, ok := u.records[identity]
	if !ok {
		r = &model.UsageRecord{
			Identity:       identity,
			Email:          MaskEmail(identity),
			FirstGrantAt:   now,
			FirstSessionID: sessionID,
		}
		u.records[identity] = r
	}
	r.Grants++
	r.LastGrantAt = now
	r.LastSessionID = sessionID
}

// Records returns copies of every record, most recently used first.
func (u *UsageTracker) Records() []model.UsageRecord {
	u.mu.RLock()
	out := make([]model.UsageRecord, 0, len(u.records))
	for _, r := range u.records {
		out = append(out, *r)
	}
	u.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastGrantAt.After(out[j].LastGrantAt) })
	return out
}

// Stats computes totals, 24h activity and the five heaviest repeat users.
func (u *UsageTracker) Stats(now time.Time) UsageStats {
	records := u.Records()
	st := UsageStats{TotalUniqueEmails: len(records), TopUsers: []TopUser{}, Timestamp: now}
	for _, r := range records {
		st.TotalSessions += r.Grants
		if r.LastGrantAt.After(now.Add(-24 * time.Hour)) {
			st.RecentUsers24h++
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Grants > records[j].Grants })
	for _, r := range records {
		if r.Grants <= 1 || len(st.TopUsers) == 5 {
			break
		}
		st.TopUsers = append(st.TopUsers, TopUser{Email: r.Email, UsageCount: r.Grants})
	}
	return st
}
