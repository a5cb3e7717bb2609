// Package access arbitrates exclusive, time-boxed use of the single shared
// demo resource.  Requesters prove email ownership with a one-time code,
// claim the slot when it is free or wait in a FIFO queue, and are handed a
// short-lived turn token when their turn comes.  All state is in memory and
// guarded by one lock owned by Arbitrator.
package access

import "net/http"

// Kind is the machine-readable reason attached to a failed Result.
type Kind string

const (
	KindInvalidInput Kind = "INVALID_INPUT" // malformed identity or code
	KindRateLimited  Kind = "RATE_LIMITED"  // code re-requested inside the cooldown
	KindNotFound     Kind = "NOT_FOUND"     // unknown ticket, token, session or queue entry
	KindExpired      Kind = "EXPIRED"       // ticket or token past its window
	KindMismatch     Kind = "MISMATCH"      // verification code differs
	KindConflict     Kind = "CONFLICT"      // slot occupied or not your turn
	KindInternal     Kind = "INTERNAL"      // unexpected fault
)

// HTTPStatus maps a Kind to the status code the HTTP surface answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case "":
		return http.StatusOK
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindMismatch:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Result is the outcome of every public operation.  Failures carry a Kind
// and a human message; nothing is returned as a Go error.
type Result struct {
	OK      bool   `json:"ok"`
	Kind    Kind   `json:"error,omitempty"`
	Message string `json:"message"`
}

func ok(msg string) Result { return Result{OK: true, Message: msg} }

func fail(kind Kind, msg string) Result { return Result{Kind: kind, Message: msg} }
