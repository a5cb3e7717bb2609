package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resume-demo-gate/internal/handler"
	"github.com/iliyamo/resume-demo-gate/internal/middleware"
)

// RegisterRoutes registers routes that need no identity.  Currently it
// exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterSession registers the public access flow under /v1/session and
// the guarded demo route.  limiter wraps the code and verify routes, the
// only ones that cost mail or bcrypt work.
func RegisterSession(e *echo.Echo, h *handler.SessionHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/session")
	g.GET("/status", h.Status)
	g.POST("/code", h.RequestCode, limiter)
	g.POST("/verify", h.VerifyCode, limiter)
	g.POST("/claim", h.Claim)
	g.POST("/turn", h.RedeemTurn)
	g.POST("/release", h.Release)
	g.GET("/validate", h.Validate)
	g.GET("/queue", h.Queue)
	g.DELETE("/queue/:entry", h.LeaveQueue)

	// Routes unlocked by the slot live behind RequireSlot.
	demo := e.Group("/v1/demo", middleware.RequireSlot(h.Arb))
	demo.GET("/session", h.Demo)
}

// RegisterAdmin registers the operator routes.  All of them require an
// ADMIN token; cache wraps the stats view only.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	g.GET("/usage", h.Usage)
	g.GET("/usage/stats", h.Stats, cache)
	g.POST("/reset", h.Reset)
}
