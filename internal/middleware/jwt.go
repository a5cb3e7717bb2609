package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/resume-demo-gate/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer operator token
// and injects its subject and role into the context as "user_id" and
// "role".  The secret must match the one cmd/admintoken signs with.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED", "message": "missing bearer token"})
            }
            // Expired, unsigned and non-HS256 tokens all fail here.
            sub, role, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED", "message": "invalid token"})
            }
            c.Set("user_id", sub)
            c.Set("role", role)
            return next(c)
        }
    }
}
