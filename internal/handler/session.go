package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resume-demo-gate/internal/access"
	"github.com/iliyamo/resume-demo-gate/internal/middleware"
)

// SessionHandler exposes the demo access flow: verify an email, claim the
// slot or wait in the queue, redeem a turn token, release.
type SessionHandler struct {
	Arb *access.Arbitrator
}

// NewSessionHandler panics on a nil arbitrator.
func NewSessionHandler(arb *access.Arbitrator) *SessionHandler {
	if arb == nil {
		panic("nil arbitrator passed to NewSessionHandler")
	}
	return &SessionHandler{Arb: arb}
}

// ----- DTOs -----

type emailReq struct {
	Email string `json:"email"`
}
type verifyReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type turnReq struct {
	Token string `json:"token"`
}
type releaseReq struct {
	SessionID string `json:"session_id"`
}

type waitingPart struct {
	Email         string `json:"email"`
	Position      int    `json:"position"`
	WaitedSeconds int64  `json:"waited_seconds"`
}
type queuePart struct {
	Length               int           `json:"length"`
	Waiting              []waitingPart `json:"waiting"`
	EstimatedWaitSeconds int64         `json:"estimated_wait_seconds"`
	TurnPending          bool          `json:"turn_pending"`
}

// failure writes a failed Result with the status of its kind.
func failure(c echo.Context, res access.Result, extra echo.Map) error {
	body := echo.Map{"error": string(res.Kind), "message": res.Message}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(res.Kind.HTTPStatus(), body)
}

func seconds(d time.Duration) int64 { return int64(d.Round(time.Second) / time.Second) }

func toQueuePart(st access.QueueStatus) queuePart {
	out := queuePart{
		Length:               st.Length,
		Waiting:              make([]waitingPart, 0, len(st.Waiting)),
		EstimatedWaitSeconds: seconds(st.EstimatedWait),
		TurnPending:          st.TurnPending,
	}
	for _, w := range st.Waiting {
		out.Waiting = append(out.Waiting, waitingPart{Email: w.Email, Position: w.Position, WaitedSeconds: seconds(w.Waited)})
	}
	return out
}

// Status handles GET /v1/session/status.
func (h *SessionHandler) Status(c echo.Context) error {
	av := h.Arb.CheckAvailability()
	body := echo.Map{
		"available":                av.Available,
		"turn_pending":             av.TurnPending,
		"session_duration_seconds": seconds(h.Arb.SessionDuration()),
		"queue":                    toQueuePart(h.Arb.QueueStatus()),
	}
	if av.Holder != "" {
		body["current_user"] = av.Holder
		body["started_at"] = av.StartedAt
		body["ends_at"] = av.EndsAt
		body["remaining_seconds"] = seconds(av.Remaining)
	}
	return c.JSON(http.StatusOK, body)
}

// RequestCode handles POST /v1/session/code.
func (h *SessionHandler) RequestCode(c echo.Context) error {
	var body emailReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(access.KindInvalidInput), "message": "invalid request body"})
	}
	res := h.Arb.RequestCode(body.Email)
	if !res.OK {
		return failure(c, res, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": res.Message})
}

// VerifyCode handles POST /v1/session/verify.
func (h *SessionHandler) VerifyCode(c echo.Context) error {
	var body verifyReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(access.KindInvalidInput), "message": "invalid request body"})
	}
	res := h.Arb.VerifyCode(body.Email, body.Code)
	if !res.OK {
		return failure(c, res, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": res.Message, "verified": true})
}

// Claim handles POST /v1/session/claim.  A busy slot answers 409 with the
// caller's queue position.
func (h *SessionHandler) Claim(c echo.Context) error {
	var body emailReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(access.KindInvalidInput), "message": "invalid request body"})
	}
	return h.claimed(c, h.Arb.Claim(body.Email))
}

// RedeemTurn handles POST /v1/session/turn.
func (h *SessionHandler) RedeemTurn(c echo.Context) error {
	var body turnReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(access.KindInvalidInput), "message": "invalid request body"})
	}
	return h.claimed(c, h.Arb.RedeemTurnToken(body.Token))
}

func (h *SessionHandler) claimed(c echo.Context, res access.ClaimResult) error {
	if res.OK {
		return c.JSON(http.StatusOK, echo.Map{
			"message":          res.Message,
			"session_id":       res.SessionID,
			"expires_at":       res.ExpiresAt,
			"duration_seconds": seconds(h.Arb.SessionDuration()),
		})
	}
	extra := echo.Map{}
	if res.Rank > 0 {
		extra["queue_position"] = res.Rank
		extra["estimated_wait_seconds"] = seconds(res.EstimatedWait)
	}
	if res.EntryID != "" {
		extra["entry_id"] = res.EntryID
	}
	if !res.ExpiresAt.IsZero() {
		extra["expires_at"] = res.ExpiresAt
	}
	return failure(c, res.Result, extra)
}

// Release handles POST /v1/session/release.  The session id comes from the
// body or the X-Demo-Session header.
func (h *SessionHandler) Release(c echo.Context) error {
	var body releaseReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(access.KindInvalidInput), "message": "invalid request body"})
	}
	sid := strings.TrimSpace(body.SessionID)
	if sid == "" {
		sid = strings.TrimSpace(c.Request().Header.Get(middleware.SessionHeader))
	}
	if sid == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(access.KindInvalidInput), "message": "session_id is required"})
	}
	if !h.Arb.Release(sid) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": string(access.KindNotFound), "message": "no active session with this id"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "session released", "released": true})
}

// Validate handles GET /v1/session/validate.
func (h *SessionHandler) Validate(c echo.Context) error {
	sid := strings.TrimSpace(c.Request().Header.Get(middleware.SessionHeader))
	if sid == "" {
		sid = strings.TrimSpace(c.QueryParam("session_id"))
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": h.Arb.Validate(sid)})
}

// Queue handles GET /v1/session/queue.
func (h *SessionHandler) Queue(c echo.Context) error {
	return c.JSON(http.StatusOK, toQueuePart(h.Arb.QueueStatus()))
}

// LeaveQueue handles DELETE /v1/session/queue/:entry.
func (h *SessionHandler) LeaveQueue(c echo.Context) error {
	res := h.Arb.LeaveQueue(c.Param("entry"))
	if !res.OK {
		return failure(c, res, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": res.Message})
}

// Demo handles GET /v1/demo/session.  It sits behind RequireSlot and stands
// for the screening routes the slot unlocks.
func (h *SessionHandler) Demo(c echo.Context) error {
	av := h.Arb.CheckAvailability()
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":        c.Get("session_id"),
		"remaining_seconds": seconds(av.Remaining),
		"ends_at":           av.EndsAt,
	})
}
