package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/primcare/dashboard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/analytics", h.GetAnalytics)
}

func (h *Handler) GetAnalytics(c echo.Context) error {
	ctx := c.Request().Context()
	summary, err := h.svc.Compute(ctx, auth.SessionIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to load analytics")
	}
	return c.JSON(http.StatusOK, summary)
}
