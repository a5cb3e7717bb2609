package access

import (
	"container/list"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/resume-demo-gate/internal/model"
)

// WaitingQueue is the FIFO admission list.  Entries are indexed by id and by
// identity so head lookup, dedup and out-of-order removal do not scan.
// WaitingQueue is not safe for concurrent use; Arbitrator serializes access.
type WaitingQueue struct {
	order      *list.List               // of *model.QueueEntry, head at Front
	byID       map[string]*list.Element // entry id -> element
	byIdentity map[string]*list.Element // identity -> element
}

// NewWaitingQueue returns an empty queue.
func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{
		order:      list.New(),
		byID:       make(map[string]*list.Element),
		byIdentity: make(map[string]*list.Element),
	}
}

// Join appends identity at the tail.  An identity already queued keeps its
// place and gets its existing entry back.
func (q *WaitingQueue) Join(identity string, now time.Time) model.QueueEntry {
	if el, ok := q.byIdentity[identity]; ok {
		return *el.Value.(*model.QueueEntry)
	}
	e := &model.QueueEntry{ID: uuid.NewString(), Identity: identity, JoinedAt: now}
	el := q.order.PushBack(e)
	q.byID[e.ID] = el
	q.byIdentity[identity] = el
	return *e
}

// PeekHead returns the entry at the front of the line.
func (q *WaitingQueue) PeekHead() (model.QueueEntry, bool) {
	el := q.order.Front()
	if el == nil {
		return model.QueueEntry{}, false
	}
	return *el.Value.(*model.QueueEntry), true
}

// Lookup returns the entry of an identity.
func (q *WaitingQueue) Lookup(identity string) (model.QueueEntry, bool) {
	el, ok := q.byIdentity[identity]
	if !ok {
		return model.QueueEntry{}, false
	}
	return *el.Value.(*model.QueueEntry), true
}

// Get returns the entry with the given id.
func (q *WaitingQueue) Get(entryID string) (model.QueueEntry, bool) {
	el, ok := q.byID[entryID]
	if !ok {
		return model.QueueEntry{}, false
	}
	return *el.Value.(*model.QueueEntry), true
}

// PositionOf returns the 1-based rank of an entry, or 0 when it is not queued.
func (q *WaitingQueue) PositionOf(entryID string) int {
	target, ok := q.byID[entryID]
	if !ok {
		return 0
	}
	rank := 1
	for el := q.order.Front(); el != nil; el = el.Next() {
		if el == target {
			return rank
		}
		rank++
	}
	return 0
}

// Remove deletes an entry wherever it sits.  The relative order of the
// remaining entries is unchanged.
func (q *WaitingQueue) Remove(entryID string) bool {
	el, ok := q.byID[entryID]
	if !ok {
		return false
	}
	q.unlink(el)
	return true
}

// PruneStale removes entries that joined maxAge or longer before now and
// returns them in queue order.
func (q *WaitingQueue) PruneStale(now time.Time, maxAge time.Duration) []model.QueueEntry {
	var pruned []model.QueueEntry
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*model.QueueEntry)
		if now.Sub(e.JoinedAt) >= maxAge {
			pruned = append(pruned, *e)
			q.unlink(el)
		}
		el = next
	}
	return pruned
}

// Len returns the number of waiting entries.
func (q *WaitingQueue) Len() int { return q.order.Len() }

// Entries returns copies of the entries in queue order.
func (q *WaitingQueue) Entries() []model.QueueEntry {
	out := make([]model.QueueEntry, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*model.QueueEntry))
	}
	return out
}

// Clear drops every entry.
func (q *WaitingQueue) Clear() {
	q.order.Init()
	clear(q.byID)
	clear(q.byIdentity)
}

func (q *WaitingQueue) unlink(el *list.Element) {
	e := el.Value.(*model.QueueEntry)
	q.order.Remove(el)
	delete(q.byID, e.ID)
	delete(q.byIdentity, e.Identity)
}
