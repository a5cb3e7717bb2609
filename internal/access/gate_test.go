package access

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestGate() *VerificationGate {
	return NewVerificationGate(GateConfig{
		Window:      10 * time.Minute,
		Cooldown:    2 * time.Minute,
		MaxAttempts: 3,
		HashCost:    bcrypt.MinCost,
	})
}

func TestGateIssueAndVerify(t *testing.T) {
	g := newTestGate()
	code, ticket, res := g.IssueCode("a@example.com", t0)
	if !res.OK {
		t.Fatalf("IssueCode = %+v, want ok", res)
	}
	if len(code) != 6 {
		t.Fatalf("code = %q, want 6 digits", code)
	}
	if ticket.CodeHash == code || ticket.CodeHash == "" {
		t.Fatal("ticket must carry a hash, not the code")
	}
	if res := g.Verify("a@example.com", code, t0.Add(time.Minute)); !res.OK {
		t.Fatalf("Verify = %+v, want ok", res)
	}
	if !g.HasPass("a@example.com", t0.Add(time.Minute)) {
		t.Fatal("no pass after successful verification")
	}
}

func TestGateSingleUse(t *testing.T) {
	g := newTestGate()
	code, _, _ := g.IssueCode("a@example.com", t0)
	if res := g.Verify("a@example.com", code, t0); !res.OK {
		t.Fatalf("first Verify = %+v, want ok", res)
	}
	res := g.Verify("a@example.com", code, t0)
	if res.OK || res.Kind != KindNotFound {
		t.Fatalf("second Verify = %+v, want %s", res, KindNotFound)
	}
}

func TestGateExpiryBoundary(t *testing.T) {
	g := newTestGate()
	code, _, _ := g.IssueCode("a@example.com", t0)
	if res := g.Verify("a@example.com", code, t0.Add(9*time.Minute+54*time.Second)); !res.OK {
		t.Fatalf("Verify at 9.9 = %+v, want ok", res)
	}

	code, _, _ = g.IssueCode("b@example.com", t0)
	res := g.Verify("b@example.com", code, t0.Add(10*time.Minute))
	if res.Kind != KindExpired {
		t.Fatalf("Verify at 10.0 = %+v, want %s", res, KindExpired)
	}
	res = g.Verify("b@example.com", code, t0.Add(11*time.Minute))
	if res.Kind != KindExpired {
		t.Fatalf("Verify after lapse = %+v, want %s", res, KindExpired)
	}
}

func TestGateExpiredAfterPrune(t *testing.T) {
	g := newTestGate()
	code, _, _ := g.IssueCode("a@example.com", t0)
	g.Prune(t0.Add(10 * time.Minute))
	if g.HasTicket("a@example.com") {
		t.Fatal("Prune kept an expired ticket")
	}
	if res := g.Verify("a@example.com", code, t0.Add(10*time.Minute)); res.Kind != KindExpired {
		t.Fatalf("Verify after prune = %+v, want %s", res, KindExpired)
	}
	g.Prune(t0.Add(20 * time.Minute))
	if res := g.Verify("a@example.com", code, t0.Add(20*time.Minute)); res.Kind != KindNotFound {
		t.Fatalf("Verify after tombstone prune = %+v, want %s", res, KindNotFound)
	}
}

func TestGateCooldown(t *testing.T) {
	g := newTestGate()
	g.IssueCode("a@example.com", t0)
	if _, _, res := g.IssueCode("a@example.com", t0.Add(119*time.Second)); res.Kind != KindRateLimited {
		t.Fatalf("IssueCode inside cooldown = %+v, want %s", res, KindRateLimited)
	}
	code, _, res := g.IssueCode("a@example.com", t0.Add(2*time.Minute))
	if !res.OK {
		t.Fatalf("IssueCode after cooldown = %+v, want ok", res)
	}
	if res := g.Verify("a@example.com", code, t0.Add(3*time.Minute)); !res.OK {
		t.Fatalf("Verify of superseding code = %+v, want ok", res)
	}
}

func TestGateMismatchAndAttemptLimit(t *testing.T) {
	g := newTestGate()
	code, _, _ := g.IssueCode("a@example.com", t0)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 2; i++ {
		if res := g.Verify("a@example.com", wrong, t0); res.Kind != KindMismatch {
			t.Fatalf("attempt %d = %+v, want %s", i+1, res, KindMismatch)
		}
	}
	if res := g.Verify("a@example.com", wrong, t0); res.Kind != KindMismatch {
		t.Fatalf("third attempt = %+v, want %s", res, KindMismatch)
	}
	if res := g.Verify("a@example.com", code, t0); res.Kind != KindNotFound {
		t.Fatalf("Verify after attempt limit = %+v, want %s", res, KindNotFound)
	}
}

func TestGateCooldownOutlivesTicket(t *testing.T) {
	g := newTestGate()
	code, _, _ := g.IssueCode("a@example.com", t0)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 3; i++ {
		g.Verify("a@example.com", wrong, t0)
	}
	if g.HasTicket("a@example.com") {
		t.Fatal("ticket survived the attempt limit")
	}
	if _, _, res := g.IssueCode("a@example.com", t0.Add(time.Second)); res.Kind != KindRateLimited {
		t.Fatalf("IssueCode after burn = %+v, want %s", res, KindRateLimited)
	}

	code, _, _ = g.IssueCode("b@example.com", t0)
	g.Verify("b@example.com", code, t0)
	if _, _, res := g.IssueCode("b@example.com", t0.Add(time.Minute)); res.Kind != KindRateLimited {
		t.Fatalf("IssueCode after verify = %+v, want %s", res, KindRateLimited)
	}

	g.Prune(t0.Add(2 * time.Minute))
	if _, _, res := g.IssueCode("a@example.com", t0.Add(2*time.Minute)); !res.OK {
		t.Fatalf("IssueCode after cooldown = %+v, want ok", res)
	}
}

func TestGateWithdraw(t *testing.T) {
	g := newTestGate()
	_, ticket, _ := g.IssueCode("a@example.com", t0)
	g.Withdraw("a@example.com", ticket.IssuedAt.Add(time.Second))
	if !g.HasTicket("a@example.com") {
		t.Fatal("Withdraw removed a ticket with a different issue time")
	}
	g.Withdraw("a@example.com", ticket.IssuedAt)
	if g.HasTicket("a@example.com") {
		t.Fatal("Withdraw kept the ticket")
	}
	if _, _, res := g.IssueCode("a@example.com", t0.Add(time.Second)); !res.OK {
		t.Fatalf("IssueCode after Withdraw = %+v, want ok", res)
	}
}

func TestGatePassExpires(t *testing.T) {
	g := newTestGate()
	code, _, _ := g.IssueCode("a@example.com", t0)
	g.Verify("a@example.com", code, t0)
	if g.HasPass("a@example.com", t0.Add(10*time.Minute)) {
		t.Fatal("pass still valid at the end of the window")
	}
	g.Prune(t0.Add(10 * time.Minute))
	if _, ok := g.passes["a@example.com"]; ok {
		t.Fatal("Prune kept an expired pass")
	}
}
