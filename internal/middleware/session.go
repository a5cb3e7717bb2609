package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// SlotValidator reports whether a session id is the live demo slot.
type SlotValidator interface {
    Validate(sessionID string) bool
}

// RequireSlot lets a request through only while its demo session is the
// active, unexpired slot.  The session id is stored in the context as
// "session_id".
func RequireSlot(v SlotValidator) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            sid := sessionID(c)
            if sid == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED", "message": "demo session required"})
            }
            if !v.Validate(sid) {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "FORBIDDEN", "message": "demo session expired or invalid"})
            }
            c.Set("session_id", sid)
            return next(c)
        }
    }
}
