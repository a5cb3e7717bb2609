package middleware

// identity.go holds the request identity helpers shared by the limiter and
// the session guard.

import (
    "crypto/sha1"
    "fmt"
    "strings"

    "github.com/labstack/echo/v4"
)

// SessionHeader carries the demo session id on guarded requests.
const SessionHeader = "X-Demo-Session"

// sessionID returns the demo session id from the header, falling back to
// the session_id query parameter.
func sessionID(c echo.Context) string {
    if v := strings.TrimSpace(c.Request().Header.Get(SessionHeader)); v != "" {
        return v
    }
    return strings.TrimSpace(c.QueryParam("session_id"))
}

// callerID names the caller for rate limit keys: the admin subject set by
// JWTAuth, else a digest of the demo session id, else "anon".
func callerID(c echo.Context) string {
    if v, ok := c.Get("user_id").(string); ok && v != "" {
        return "admin:" + v
    }
    if sid := sessionID(c); sid != "" {
        sum := sha1.Sum([]byte(sid))
        return fmt.Sprintf("session:%x", sum[:8])
    }
    return "anon"
}
