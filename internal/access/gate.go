package access

import (
	"io"
	"time"

	"github.com/iliyamo/resume-demo-gate/internal/model"
	"github.com/iliyamo/resume-demo-gate/internal/utils"
)

// GateConfig holds the verification timings.
type GateConfig struct {
	Window      time.Duration // ticket and pass lifetime
	Cooldown    time.Duration // minimum gap between two codes for one identity
	MaxAttempts int           // mismatches tolerated before the ticket is dropped; 0 disables
	HashCost    int           // bcrypt cost for code hashes
	Rand        io.Reader     // code entropy; nil means crypto/rand
}

// VerificationGate issues and checks one-time email codes.  A successful
// verification deletes the ticket and leaves a VerifiedPass that a fresh
// claim consumes.  It is not safe for concurrent use.
type VerificationGate struct {
	cfg     GateConfig
	tickets map[string]*model.VerificationTicket
	passes  map[string]model.VerifiedPass
	// lapsed remembers identities whose ticket expired so Verify keeps
	// answering Expired after the sweep dropped the ticket.
	lapsed map[string]time.Time
	// issued is the last issue time per identity.  It outlives the ticket
	// so a burned or verified code still holds the cooldown.
	issued map[string]time.Time
}

// NewVerificationGate returns an empty gate.
func NewVerificationGate(cfg GateConfig) *VerificationGate {
	return &VerificationGate{
		cfg:     cfg,
		tickets: make(map[string]*model.VerificationTicket),
		passes:  make(map[string]model.VerifiedPass),
		lapsed:  make(map[string]time.Time),
		issued:  make(map[string]time.Time),
	}
}

// IssueCode creates a ticket for identity and returns the plain code for
// delivery.  It fails with RateLimited inside the cooldown of a previous
// code, whether or not that ticket is still pending.
func (g *VerificationGate) IssueCode(identity string, now time.Time) (string, model.VerificationTicket, Result) {
	if at, ok := g.issued[identity]; ok && now.Sub(at) < g.cfg.Cooldown {
		return "", model.VerificationTicket{}, fail(KindRateLimited, "please wait before requesting another code")
	}
	code, err := utils.NewNumericCode(g.cfg.Rand)
	if err != nil {
		return "", model.VerificationTicket{}, fail(KindInternal, "failed to generate verification code")
	}
	hash, err := utils.HashCode(code, g.cfg.HashCost)
	if err != nil {
		return "", model.VerificationTicket{}, fail(KindInternal, "failed to generate verification code")
	}
	t := &model.VerificationTicket{Identity: identity, CodeHash: hash, IssuedAt: now}
	g.tickets[identity] = t
	g.issued[identity] = now
	delete(g.lapsed, identity)
	return code, *t, ok("verification code issued")
}

// Verify checks code against the ticket of identity.  On success the ticket
// is deleted and a pass is recorded.
func (g *VerificationGate) Verify(identity, code string, now time.Time) Result {
	t, found := g.tickets[identity]
	if !found {
		if _, wasLapsed := g.lapsed[identity]; wasLapsed {
			return fail(KindExpired, "verification code expired, please request a new one")
		}
		return fail(KindNotFound, "no verification code found for this email")
	}
	if now.Sub(t.IssuedAt) >= g.cfg.Window {
		g.lapse(identity, now)
		return fail(KindExpired, "verification code expired, please request a new one")
	}
	if !utils.VerifyCode(t.CodeHash, code) {
		t.Attempts++
		if g.cfg.MaxAttempts > 0 && t.Attempts >= g.cfg.MaxAttempts {
			delete(g.tickets, identity)
		}
		return fail(KindMismatch, "invalid verification code")
	}
	delete(g.tickets, identity)
	g.passes[identity] = model.VerifiedPass{Identity: identity, VerifiedAt: now}
	return ok("email verified")
}

// Withdraw deletes the ticket of identity if it is still the one issued at
// issuedAt.  Used when the code could not be delivered, so the cooldown is
// lifted too.
func (g *VerificationGate) Withdraw(identity string, issuedAt time.Time) {
	if t, ok := g.tickets[identity]; ok && t.IssuedAt.Equal(issuedAt) {
		delete(g.tickets, identity)
		delete(g.issued, identity)
	}
}

// HasPass reports whether identity verified within the window.
func (g *VerificationGate) HasPass(identity string, now time.Time) bool {
	p, ok := g.passes[identity]
	return ok && now.Sub(p.VerifiedAt) < g.cfg.Window
}

// ConsumePass deletes the pass of identity.
func (g *VerificationGate) ConsumePass(identity string) { delete(g.passes, identity) }

// HasTicket reports whether identity holds a pending ticket.
func (g *VerificationGate) HasTicket(identity string) bool {
	_, ok := g.tickets[identity]
	return ok
}

// Prune drops expired tickets and passes.  Expired tickets are remembered
// for one more window.
func (g *VerificationGate) Prune(now time.Time) {
	for id, t := range g.tickets {
		if now.Sub(t.IssuedAt) >= g.cfg.Window {
			g.lapse(id, now)
		}
	}
	for id, p := range g.passes {
		if now.Sub(p.VerifiedAt) >= g.cfg.Window {
			delete(g.passes, id)
		}
	}
	for id, at := range g.lapsed {
		if now.Sub(at) >= g.cfg.Window {
			delete(g.lapsed, id)
		}
	}
	for id, at := range g.issued {
		if now.Sub(at) >= g.cfg.Cooldown {
			delete(g.issued, id)
		}
	}
}

// Clear drops all tickets, passes and tombstones.
func (g *VerificationGate) Clear() {
	clear(g.tickets)
	clear(g.passes)
	clear(g.lapsed)
	clear(g.issued)
}

func (g *VerificationGate) lapse(identity string, now time.Time) {
	delete(g.tickets, identity)
	g.lapsed[identity] = now
}
