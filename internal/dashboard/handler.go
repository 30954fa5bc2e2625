package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/primcare/dashboard/internal/domain/careplan"
	"github.com/primcare/dashboard/internal/platform/auth"
)

type Handler struct {
	registry *Registry
	nav      Navigation
}

func NewHandler(registry *Registry, nav Navigation) *Handler {
	return &Handler{registry: registry, nav: nav}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/overview", h.GetOverview)
	api.POST("/overview/reload", h.Reload)
	api.POST("/overview/patients/:id/care-plans/:snapshot", h.CreateCarePlanSnapshot)
}

func (h *Handler) controller(c echo.Context) (*Controller, error) {
	ctx := c.Request().Context()
	ctrl, err := h.registry.Get(ctx, auth.SessionIDFromContext(ctx))
	if errors.Is(err, ErrNoSession) {
		return nil, h.noSession()
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return ctrl, nil
}

func (h *Handler) noSession() error {
	return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
		"message":  "no session",
		"redirect": h.nav.Login(),
	})
}

// GetOverview returns the session's dashboard state.
func (h *Handler) GetOverview(c echo.Context) error {
	ctrl, err := h.controller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ctrl.State())
}

// Reload refetches patients and analytics. Load failures are reported in
// the state's error banner, not as an HTTP error.
func (h *Handler) Reload(c echo.Context) error {
	ctrl, err := h.controller(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := ctrl.LoadPatients(ctx); errors.Is(err, ErrNoSession) {
		return h.noSession()
	}
	if err := ctrl.LoadAnalytics(ctx); errors.Is(err, ErrNoSession) {
		return h.noSession()
	}
	return c.JSON(http.StatusOK, ctrl.State())
}

type authorizeRequest struct {
	Accepted []string `json:"accepted"`
}

func (h *Handler) CreateCarePlanSnapshot(c echo.Context) error {
	var req authorizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctrl, err := h.controller(c)
	if err != nil {
		return err
	}
	snap, err := ctrl.CreateCarePlanSnapshot(c.Request().Context(), c.Param("id"), c.Param("snapshot"), req.Accepted)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, snap)
	case errors.Is(err, ErrNoSession):
		return h.noSession()
	case errors.Is(err, careplan.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "care plan snapshot not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, MsgSaveCarePlan)
	}
}
