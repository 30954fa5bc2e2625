package careplan

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/primcare/dashboard/internal/platform/auth"
)

// PendingSource lists the snapshots of a session that still need review.
type PendingSource interface {
	PendingReviews(ctx context.Context, sessionID string) ([]PendingReview, error)
}

type Handler struct {
	svc     *Service
	pending PendingSource
}

func NewHandler(svc *Service, pending PendingSource) *Handler {
	return &Handler{svc: svc, pending: pending}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/care-plans/pending", h.ListPending)
	api.POST("/patients/:id/care-plans/:snapshot/preview", h.Preview)
	api.POST("/patients/:id/care-plans/:snapshot/authorize", h.Authorize)
}

type reviewRequest struct {
	Accepted []string `json:"accepted"`
}

func (h *Handler) ListPending(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.pending.PendingReviews(ctx, auth.SessionIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if items == nil {
		items = []PendingReview{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Preview(c echo.Context) error {
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	p, err := h.svc.Preview(ctx, auth.SessionIDFromContext(ctx), c.Param("id"), c.Param("snapshot"), req.Accepted)
	if err != nil {
		return reviewError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Authorize(c echo.Context) error {
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	snap, err := h.svc.Authorize(ctx, auth.SessionIDFromContext(ctx), c.Param("id"), c.Param("snapshot"), req.Accepted)
	if err != nil {
		return reviewError(err)
	}
	return c.JSON(http.StatusCreated, snap)
}

func reviewError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "care plan snapshot not found")
	case errors.Is(err, ErrSnapshotWrite):
		return echo.NewHTTPError(http.StatusInternalServerError, ErrSnapshotWrite.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}
