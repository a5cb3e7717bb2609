package model

import "time"

// QueueEntry is a waiting requester's place in line.
type QueueEntry struct {
    ID       string    // opaque entry identifier handed back to the requester
    Identity string    // normalized email
    JoinedAt time.Time // join timestamp; entries older than the staleness ceiling are pruned
}
