package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resume-demo-gate/internal/access"
)

// AdminHandler serves the operator views.  Routes are guarded by JWTAuth
// and RequireRole("ADMIN").
type AdminHandler struct {
	Arb *access.Arbitrator
}

func NewAdminHandler(arb *access.Arbitrator) *AdminHandler {
	if arb == nil {
		panic("nil arbitrator passed to NewAdminHandler")
	}
	return &AdminHandler{Arb: arb}
}

// Usage handles GET /v1/admin/usage.
func (h *AdminHandler) Usage(c echo.Context) error {
	records := h.Arb.UsageRecords()
	return c.JSON(http.StatusOK, echo.Map{"users": records, "count": len(records)})
}

// Stats handles GET /v1/admin/usage/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Arb.UsageStats())
}

// Reset handles POST /v1/admin/reset.
func (h *AdminHandler) Reset(c echo.Context) error {
	h.Arb.Reset()
	return c.JSON(http.StatusOK, echo.Map{"message": "demo session state reset"})
}
