package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/resume-demo-gate/internal/access"
	"github.com/iliyamo/resume-demo-gate/internal/clock"
	"github.com/iliyamo/resume-demo-gate/internal/handler"
	"github.com/iliyamo/resume-demo-gate/internal/middleware"
	"github.com/iliyamo/resume-demo-gate/internal/model"
	"github.com/iliyamo/resume-demo-gate/internal/router"
	"github.com/iliyamo/resume-demo-gate/internal/utils"
)

const secret = "handler-secret"

// inbox keeps the last payload per kind and recipient.
type inbox struct {
	mu   sync.Mutex
	last map[string]map[string]string
}

func (b *inbox) Dispatch(kind model.NotificationKind, to string, payload map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[string(kind)+"|"+to] = payload
}

func (b *inbox) DispatchWait(kind model.NotificationKind, to string, payload map[string]string) (bool, bool) {
	b.Dispatch(kind, to, payload)
	return true, false
}

func (b *inbox) get(kind model.NotificationKind, to string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[string(kind)+"|"+to]
}

type server struct {
	e     *echo.Echo
	clock *clock.Fake
	box   *inbox
}

func newServer(t *testing.T) *server {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	box := &inbox{last: map[string]map[string]string{}}
	arb := access.NewArbitrator(access.Config{
		SessionDuration: 7 * time.Minute,
		QueueStaleAfter: 30 * time.Minute,
		TurnTokenTTL:    2 * time.Minute,
		TokenSecret:     []byte(secret),
		Gate: access.GateConfig{
			Window:      10 * time.Minute,
			Cooldown:    2 * time.Minute,
			MaxAttempts: 5,
			HashCost:    bcrypt.MinCost,
		},
	}, clk, box)

	e := echo.New()
	noop := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	router.RegisterRoutes(e)
	router.RegisterSession(e, handler.NewSessionHandler(arb), noop)
	router.RegisterAdmin(e, handler.NewAdminHandler(arb), secret, noop)
	return &server{e: e, clock: clk, box: box}
}

func (s *server) do(t *testing.T, method, path, body string, header map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (s *server) verify(t *testing.T, email string) {
	t.Helper()
	if code, body := s.do(t, http.MethodPost, "/v1/session/code", `{"email":"`+email+`"}`, nil); code != http.StatusOK {
		t.Fatalf("code request = %d %v", code, body)
	}
	otp := s.box.get(model.NotifyCodeIssued, email)["code"]
	if code, body := s.do(t, http.MethodPost, "/v1/session/verify", `{"email":"`+email+`","code":"`+otp+`"}`, nil); code != http.StatusOK {
		t.Fatalf("verify = %d %v", code, body)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestSessionFlow(t *testing.T) {
	s := newServer(t)
	s.verify(t, "alice@example.com")

	code, body := s.do(t, http.MethodPost, "/v1/session/claim", `{"email":"alice@example.com"}`, nil)
	if code != http.StatusOK {
		t.Fatalf("claim = %d %v", code, body)
	}
	sid, _ := body["session_id"].(string)
	if sid == "" || body["duration_seconds"] != float64(420) {
		t.Fatalf("claim body = %v", body)
	}
	hdr := map[string]string{middleware.SessionHeader: sid}

	if code, body := s.do(t, http.MethodGet, "/v1/demo/session", "", hdr); code != http.StatusOK || body["session_id"] != sid {
		t.Fatalf("demo = %d %v", code, body)
	}
	if _, body := s.do(t, http.MethodGet, "/v1/session/validate", "", hdr); body["valid"] != true {
		t.Fatalf("validate = %v", body)
	}
	if _, body := s.do(t, http.MethodGet, "/v1/session/status", "", nil); body["available"] != false || body["current_user"] != "a***e@example.com" {
		t.Fatalf("status = %v", body)
	}

	s.verify(t, "bob@example.com")
	code, body = s.do(t, http.MethodPost, "/v1/session/claim", `{"email":"bob@example.com"}`, nil)
	if code != http.StatusConflict || body["error"] != "CONFLICT" || body["queue_position"] != float64(1) || body["entry_id"] == nil {
		t.Fatalf("second claim = %d %v", code, body)
	}
	if _, body := s.do(t, http.MethodGet, "/v1/session/queue", "", nil); body["length"] != float64(1) {
		t.Fatalf("queue = %v", body)
	}

	if code, _ := s.do(t, http.MethodPost, "/v1/session/release", `{"session_id":"`+sid+`"}`, nil); code != http.StatusOK {
		t.Fatalf("release = %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/v1/session/release", "", hdr); code != http.StatusNotFound {
		t.Fatalf("second release = %d, want 404", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/demo/session", "", hdr); code != http.StatusForbidden {
		t.Fatalf("demo after release = %d, want 403", code)
	}

	token := s.box.get(model.NotifyTurnAvailable, "bob@example.com")["token"]
	code, body = s.do(t, http.MethodPost, "/v1/session/turn", `{"token":"`+token+`"}`, nil)
	if code != http.StatusOK || body["session_id"] == "" {
		t.Fatalf("turn = %d %v", code, body)
	}
}

func TestSessionErrors(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		method, path, body string
		status             int
		kind               string
	}{
		{http.MethodPost, "/v1/session/code", `{"email":"nope"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{http.MethodPost, "/v1/session/code", `{`, http.StatusBadRequest, "INVALID_INPUT"},
		{http.MethodPost, "/v1/session/verify", `{"email":"a@example.com","code":"123456"}`, http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/v1/session/claim", `{"email":"a@example.com"}`, http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/v1/session/turn", `{"token":""}`, http.StatusBadRequest, "INVALID_INPUT"},
		{http.MethodPost, "/v1/session/turn", `{"token":"x.y.z"}`, http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/v1/session/release", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{http.MethodPost, "/v1/session/release", `{"session_id":`, http.StatusBadRequest, "INVALID_INPUT"},
		{http.MethodDelete, "/v1/session/queue/missing", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		code, body := s.do(t, tc.method, tc.path, tc.body, nil)
		if code != tc.status || body["error"] != tc.kind {
			t.Errorf("%s %s %s = %d %v, want %d %s", tc.method, tc.path, tc.body, code, body, tc.status, tc.kind)
		}
	}

	s.do(t, http.MethodPost, "/v1/session/code", `{"email":"b@example.com"}`, nil)
	if code, body := s.do(t, http.MethodPost, "/v1/session/code", `{"email":"b@example.com"}`, nil); code != http.StatusTooManyRequests {
		t.Fatalf("repeat code = %d %v, want 429", code, body)
	}
	s.clock.Advance(10 * time.Minute)
	otp := s.box.get(model.NotifyCodeIssued, "b@example.com")["code"]
	if code, _ := s.do(t, http.MethodPost, "/v1/session/verify", `{"email":"b@example.com","code":"`+otp+`"}`, nil); code != http.StatusGone {
		t.Fatalf("late verify = %d, want 410", code)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	s.verify(t, "alice@example.com")
	s.do(t, http.MethodPost, "/v1/session/claim", `{"email":"alice@example.com"}`, nil)

	if code, _ := s.do(t, http.MethodGet, "/v1/admin/usage", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("usage without token = %d, want 401", code)
	}
	tok, err := utils.NewAccessToken(secret, "ops", middleware.RoleAdmin, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	auth := map[string]string{echo.HeaderAuthorization: "Bearer " + tok.Token}

	code, body := s.do(t, http.MethodGet, "/v1/admin/usage", "", auth)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("usage = %d %v", code, body)
	}
	code, body = s.do(t, http.MethodGet, "/v1/admin/usage/stats", "", auth)
	if code != http.StatusOK || body["totalSessions"] != float64(1) {
		t.Fatalf("stats = %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodPost, "/v1/admin/reset", "", auth); code != http.StatusOK {
		t.Fatalf("reset = %d", code)
	}
	if _, body := s.do(t, http.MethodGet, "/v1/session/status", "", nil); body["available"] != true {
		t.Fatalf("status after reset = %v", body)
	}
}
