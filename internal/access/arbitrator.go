package access

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/resume-demo-gate/internal/clock"
	"github.com/iliyamo/resume-demo-gate/internal/model"
)

// Notifier delivers out-of-band messages to requesters.  Dispatch must not
// block; DispatchWait blocks for at most the notifier's own timeout.  A
// false delivered with timedOut false means the collaborator reported a
// failure.
type Notifier interface {
	Dispatch(kind model.NotificationKind, recipient string, payload map[string]string)
	DispatchWait(kind model.NotificationKind, recipient string, payload map[string]string) (delivered, timedOut bool)
}

// Config holds the arbitration timings.
type Config struct {
	SessionDuration time.Duration // length of every granted session
	QueueStaleAfter time.Duration // queue entries older than this are pruned
	TurnTokenTTL    time.Duration // validity window of a turn token
	TokenSecret     []byte        // HS256 key for turn token values
	Gate            GateConfig
}

// Availability is the answer of CheckAvailability.  Holder is masked.  A
// free slot reserved for a notified requester is not Available.
type Availability struct {
	Available   bool
	TurnPending bool
	Holder      string
	StartedAt   time.Time
	EndsAt      time.Time
	Remaining   time.Duration
}

// ClaimResult is the outcome of Claim and RedeemTurnToken.  A grant fills
// SessionID and ExpiresAt; a queue placement fills Rank and EstimatedWait,
// plus EntryID when the caller still holds a pass.
type ClaimResult struct {
	Result
	SessionID     string
	ExpiresAt     time.Time
	Rank          int
	EntryID       string
	EstimatedWait time.Duration
}

// WaitingUser is one line of QueueStatus.
type WaitingUser struct {
	Email    string
	Position int
	Waited   time.Duration
}

// QueueStatus is the public view of the waiting line.  Only the first
// three entries are listed.  TurnPending is set while a notified requester
// holds an unredeemed turn token.
type QueueStatus struct {
	Length        int
	Waiting       []WaitingUser
	EstimatedWait time.Duration
	TurnPending   bool
}

const queuePreview = 3

// Arbitrator owns the single slot together with the waiting queue, the
// verification tickets and the turn tokens.  Every public method takes the
// one mutex and starts by sweeping expired state, so checking and taking the
// slot always happen in the same critical section.
//
// When the slot frees, the head of the queue is popped into turn and sent a
// turn token.  While turn is set the free slot is reserved for it.
type Arbitrator struct {
	mu     sync.Mutex
	cfg    Config
	clock  clock.Clock
	notify Notifier

	slot   *model.Slot
	turn   *model.QueueEntry
	queue  *WaitingQueue
	gate   *VerificationGate
	tokens *TokenIssuer
	usage  *UsageTracker
}

// NewArbitrator wires an arbitrator.  A nil clock means clock.Real(); a nil
// notifier drops every message.
func NewArbitrator(cfg Config, clk clock.Clock, n Notifier) *Arbitrator {
	if clk == nil {
		clk = clock.Real()
	}
	if n == nil {
		n = discardNotifier{}
	}
	return &Arbitrator{
		cfg:    cfg,
		clock:  clk,
		notify: n,
		queue:  NewWaitingQueue(),
		gate:   NewVerificationGate(cfg.Gate),
		tokens: NewTokenIssuer(cfg.TokenSecret, cfg.TurnTokenTTL),
		usage:  NewUsageTracker(),
	}
}

// CheckAvailability reports whether the slot is free and, if not, who holds
// it and for how long.
func (a *Arbitrator) CheckAvailability() Availability {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	a.sweepLocked(now)
	if a.slot == nil {
		return Availability{Available: a.turn == nil, TurnPending: a.turn != nil}
	}
	return Availability{
		Holder:    MaskEmail(a.slot.Holder),
		StartedAt: a.slot.StartedAt,
		EndsAt:    a.slot.EndsAt(),
		Remaining: a.slot.Remaining(now),
	}
}

// RequestCode issues a one-time code for email and hands it to the
// notifier.  The call waits for delivery only up to the notifier timeout;
// an explicit delivery failure withdraws the ticket.
func (a *Arbitrator) RequestCode(email string) Result {
	id, valid := NormalizeIdentity(email)
	if !valid {
		return fail(KindInvalidInput, "invalid email format")
	}
	code, ticket, res := a.issueCode(id)
	if !res.OK {
		return res
	}
	payload := map[string]string{
		"code":       code,
		"expires_in": strconv.Itoa(int(a.cfg.Gate.Window / time.Minute)),
	}
	delivered, timedOut := a.notify.DispatchWait(model.NotifyCodeIssued, id, payload)
	if !delivered && !timedOut {
		a.mu.Lock()
		a.gate.Withdraw(id, ticket.IssuedAt)
		a.mu.Unlock()
		log.Printf("arbitrator: verification code delivery failed for %s", MaskEmail(id))
		return fail(KindInternal, "failed to send verification email, please try again")
	}
	if timedOut {
		log.Printf("arbitrator: verification code delivery for %s still pending, continuing", MaskEmail(id))
	}
	return ok("verification code sent, please check your inbox")
}

func (a *Arbitrator) issueCode(id string) (string, model.VerificationTicket, Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	a.sweepLocked(now)
	if a.slot != nil && a.slot.Holder == id {
		return "", model.VerificationTicket{}, fail(KindConflict, "you already have an active session")
	}
	if _, queued := a.queue.Lookup(id); queued || a.isTurnLocked(id) {
		return "", model.VerificationTicket{}, fail(KindConflict, "you are already in the queue, please wait for your turn")
	}
	code, ticket, res := a.gate.IssueCode(id, now)
	if res.Kind == KindInternal {
		log.Printf("arbitrator: issue code for %s: %s", MaskEmail(id), res.Message)
	}
	return code, ticket, res
}

// VerifyCode checks the code sent to email.  Success leaves a pass that
// the next Claim consumes.
func (a *Arbitrator) VerifyCode(email, code string) Result {
	id, valid := NormalizeIdentity(email)
	if !valid {
		return fail(KindInvalidInput, "invalid email format")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fail(KindInvalidInput, "verification code is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	a.sweepLocked(now)
	res := a.gate.Verify(id, code, now)
	if res.OK {
		log.Printf("arbitrator: email verified: %s", MaskEmail(id))
	}
	return res
}

// Claim asks for the slot on behalf of email.  A free slot is granted when
// nobody is waiting or the caller holds the current turn; otherwise the
// caller is queued and told its rank.  The queue entry id is only returned
// to a caller holding a live pass.
func (a *Arbitrator) Claim(email string) ClaimResult {
	id, valid := NormalizeIdentity(email)
	if !valid {
		return ClaimResult{Result: fail(KindInvalidInput, "invalid email format")}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	a.sweepLocked(now)

	if a.slot != nil && a.slot.Holder == id {
		return ClaimResult{
			Result:    fail(KindConflict, "you already hold the active session"),
			ExpiresAt: a.slot.EndsAt(),
		}
	}
	_, queued := a.queue.Lookup(id)
	mine := a.isTurnLocked(id)
	verified := a.gate.HasPass(id, now)
	if !queued && !mine && !verified {
		return ClaimResult{Result: fail(KindNotFound, "email not verified, request a verification code first")}
	}
	switch {
	case a.slot != nil:
		return a.placeLocked(id, now, verified)
	case mine && verified:
		return a.grantLocked(id, now)
	case mine:
		return ClaimResult{Result: fail(KindConflict, "it is your turn, redeem the turn token sent to your email")}
	case a.turn != nil || a.queue.Len() > 0:
		return a.placeLocked(id, now, verified)
	default:
		return a.grantLocked(id, now)
	}
}

// RedeemTurnToken claims the slot with a turn token.  The token is consumed
// only when the slot is granted.
func (a *Arbitrator) RedeemTurnToken(value string) ClaimResult {
	value = strings.TrimSpace(value)
	if value == "" {
		return ClaimResult{Result: fail(KindInvalidInput, "turn token is required")}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	// Peek before the sweep so a token that lapsed right now reports
	// Expired instead of vanishing into the forfeit path.
	if _, res := a.tokens.Peek(value, now); !res.OK {
		a.sweepLocked(now)
		return ClaimResult{Result: res}
	}
	a.sweepLocked(now)
	tok, res := a.tokens.Peek(value, now)
	if !res.OK {
		return ClaimResult{Result: res}
	}
	if a.slot != nil {
		return ClaimResult{Result: fail(KindConflict, "the demo is currently in use")}
	}
	if !a.isTurnLocked(tok.Identity) {
		return ClaimResult{Result: fail(KindConflict, "it is not your turn yet")}
	}
	if _, res := a.tokens.Redeem(value, now); !res.OK {
		return ClaimResult{Result: res}
	}
	return a.grantLocked(tok.Identity, now)
}

// Release ends the session with the given id.  It reports false when no
// active slot carries that id.
func (a *Arbitrator) Release(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	a.sweepLocked(now)
	if a.slot == nil || sessionID == "" || a.slot.SessionID != sessionID {
		return false
	}
	log.Printf("arbitrator: session %s released by %s", sessionID, MaskEmail(a.slot.Holder))
	a.slot = nil
	a.advanceLocked(now)
	return true
}

// Validate reports whether sessionID is the active, unexpired slot.
func (a *Arbitrator) Validate(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweepLocked(a.clock.Now())
	return a.slot != nil && a.slot.SessionID == sessionID
}

// QueueStatus returns the queue length, the first entries (masked) and the
// wait a newcomer should expect.
func (a *Arbitrator) QueueStatus() QueueStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	a.sweepLocked(now)
	entries := a.queue.Entries()
	st := QueueStatus{
		Length:      len(entries),
		Waiting:     make([]WaitingUser, 0, queuePreview),
		TurnPending: a.turn != nil,
	}
	for i, e := range entries {
		if i == queuePreview {
			break
		}
		st.Waiting = append(st.Waiting, WaitingUser{
			Email:    MaskEmail(e.Identity),
			Position: i + 1,
			Waited:   now.Sub(e.JoinedAt),
		})
	}
	st.EstimatedWait = a.estimatedWaitLocked(now, len(entries)+1)
	return st
}

// LeaveQueue forfeits a queue position or a pending turn.  A forfeited turn
// passes to the next entry.
func (a *Arbitrator) LeaveQueue(entryID string) Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	a.sweepLocked(now)
	var e model.QueueEntry
	switch q, found := a.queue.Get(entryID); {
	case found:
		e = q
		a.queue.Remove(entryID)
	case a.turn != nil && a.turn.ID == entryID:
		e = *a.turn
		a.turn = nil
		a.tokens.Revoke(e.Identity)
	default:
		return fail(KindNotFound, "queue entry not found")
	}
	log.Printf("arbitrator: %s left the queue", MaskEmail(e.Identity))
	a.advanceLocked(now)
	return ok("left the queue")
}

// Reset drops the slot, the queue, pending codes and turn tokens.  Usage
// records survive.
func (a *Arbitrator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.slot != nil {
		a.notify.Dispatch(model.NotifySessionEnded, a.slot.Holder, map[string]string{
			"session_id": a.slot.SessionID,
			"reason":     "reset",
		})
	}
	a.slot = nil
	a.turn = nil
	a.queue.Clear()
	a.tokens.Clear()
	a.gate.Clear()
	log.Printf("arbitrator: demo state reset")
}

// UsageRecords returns per-identity grant history, newest first.
func (a *Arbitrator) UsageRecords() []model.UsageRecord { return a.usage.Records() }

// UsageStats returns aggregate grant statistics.
func (a *Arbitrator) UsageStats() UsageStats { return a.usage.Stats(a.clock.Now()) }

// SessionDuration returns the configured length of a session.
func (a *Arbitrator) SessionDuration() time.Duration { return a.cfg.SessionDuration }

// Sweep expires overdue state immediately.
func (a *Arbitrator) Sweep() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweepLocked(a.clock.Now())
}

// Run sweeps every interval until ctx is done.
func (a *Arbitrator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := a.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Sweep()
		}
	}
}

func (a *Arbitrator) grantLocked(id string, now time.Time) ClaimResult {
	sid := uuid.NewString()
	a.slot = &model.Slot{Holder: id, SessionID: sid, StartedAt: now, Duration: a.cfg.SessionDuration}
	a.gate.ConsumePass(id)
	a.tokens.Revoke(id)
	if a.isTurnLocked(id) {
		a.turn = nil
	}
	if e, queued := a.queue.Lookup(id); queued {
		a.queue.Remove(e.ID)
	}
	a.usage.RecordGrant(id, sid, now)
	log.Printf("arbitrator: session %s started for %s", sid, MaskEmail(id))

	a.notify.Dispatch(model.NotifySessionStarted, id, map[string]string{
		"session_id": sid,
		"expires_at": a.slot.EndsAt().Format(time.RFC3339),
	})
	if head, waiting := a.queue.PeekHead(); waiting {
		a.notify.Dispatch(model.NotifyNextInLine, head.Identity, map[string]string{
			"position":       "1",
			"estimated_wait": a.slot.Remaining(now).String(),
		})
	}
	return ClaimResult{Result: ok("session started"), SessionID: sid, ExpiresAt: a.slot.EndsAt()}
}

// placeLocked queues id, or reports the rank it already holds.  revealEntry
// controls whether the entry id, the only authority LeaveQueue needs, is
// part of the answer.
func (a *Arbitrator) placeLocked(id string, now time.Time, revealEntry bool) ClaimResult {
	_, already := a.queue.Lookup(id)
	e := a.queue.Join(id, now)
	rank := a.queue.PositionOf(e.ID)
	wait := a.estimatedWaitLocked(now, rank)
	mins := int((wait + time.Minute - 1) / time.Minute)
	var msg string
	if already {
		msg = fmt.Sprintf("you are #%d in queue, estimated wait: %d minutes", rank, mins)
	} else {
		msg = fmt.Sprintf("session unavailable, you have been added to the queue at position #%d, estimated wait: %d minutes", rank, mins)
		log.Printf("arbitrator: %s joined the queue at position %d", MaskEmail(id), rank)
	}
	res := ClaimResult{
		Result:        fail(KindConflict, msg),
		Rank:          rank,
		EstimatedWait: wait,
	}
	if revealEntry {
		res.EntryID = e.ID
	}
	return res
}

// estimatedWaitLocked is the wait for the requester at rank: what is left
// of the current session plus one full session per requester ahead.  A
// pending turn counts as one requester ahead.
func (a *Arbitrator) estimatedWaitLocked(now time.Time, rank int) time.Duration {
	var remaining time.Duration
	if a.slot != nil {
		remaining = a.slot.Remaining(now)
	}
	ahead := rank - 1
	if ahead < 0 {
		ahead = 0
	}
	if a.turn != nil {
		ahead++
	}
	return remaining + time.Duration(ahead)*a.cfg.SessionDuration
}

// sweepLocked expires the slot, drops lapsed codes, forfeits unredeemed
// turns and stale entries, then hands the turn to the new head.
func (a *Arbitrator) sweepLocked(now time.Time) {
	if a.slot != nil && a.slot.Expired(now) {
		former := *a.slot
		a.slot = nil
		log.Printf("arbitrator: session %s expired for %s", former.SessionID, MaskEmail(former.Holder))
		a.notify.Dispatch(model.NotifySessionEnded, former.Holder, map[string]string{
			"session_id": former.SessionID,
			"reason":     "expired",
		})
	}
	a.gate.Prune(now)
	for _, tok := range a.tokens.Expire(now) {
		if a.isTurnLocked(tok.Identity) {
			a.turn = nil
			log.Printf("arbitrator: %s forfeited their turn due to timeout", MaskEmail(tok.Identity))
		}
	}
	for _, e := range a.queue.PruneStale(now, a.cfg.QueueStaleAfter) {
		log.Printf("arbitrator: stale queue entry dropped for %s", MaskEmail(e.Identity))
	}
	a.advanceLocked(now)
}

// advanceLocked keeps the invariant that a free slot with a non-empty queue
// has a pending turn: the head is popped and sent a fresh turn token.
func (a *Arbitrator) advanceLocked(now time.Time) {
	if a.slot != nil || a.turn != nil {
		return
	}
	head, waiting := a.queue.PeekHead()
	if !waiting {
		return
	}
	tok, err := a.tokens.Issue(head.Identity, now)
	if err != nil {
		log.Printf("arbitrator: mint turn token for %s: %v", MaskEmail(head.Identity), err)
		return
	}
	a.queue.Remove(head.ID)
	a.turn = &head
	log.Printf("arbitrator: turn offered to %s until %s", MaskEmail(head.Identity), tok.ExpiresAt.Format(time.RFC3339))
	a.notify.Dispatch(model.NotifyTurnAvailable, head.Identity, map[string]string{
		"token":      tok.Value,
		"expires_at": tok.ExpiresAt.Format(time.RFC3339),
	})
}

func (a *Arbitrator) isTurnLocked(id string) bool {
	return a.turn != nil && a.turn.Identity == id
}

type discardNotifier struct{}

func (discardNotifier) Dispatch(model.NotificationKind, string, map[string]string) {}

func (discardNotifier) DispatchWait(model.NotificationKind, string, map[string]string) (bool, bool) {
	return true, false
}
