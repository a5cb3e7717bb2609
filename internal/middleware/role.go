package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RoleAdmin is the role claim of operator tokens.
const RoleAdmin = "ADMIN"

// RequireRole enforces that the role stored by JWTAuth is one of roles.
// Anything else, including a missing role, is answered with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, ok := c.Get("role").(string)
            if !ok || !allowed[role] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "FORBIDDEN", "message": "forbidden"})
            }
            return next(c)
        }
    }
}
