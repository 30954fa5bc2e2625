package action

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/primcare/dashboard/internal/platform/auth"
)

type Handler struct {
	svc   *Service
	names PatientNamer
}

func NewHandler(svc *Service, names PatientNamer) *Handler {
	return &Handler{svc: svc, names: names}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/actions", h.ListPatientActions)
	api.GET("/activity", h.ActivityFeed)
	api.GET("/actions/requires-attention", h.RequiresAttention)

	// Called by the agent backend, outside the browser session gate.
	api.PATCH("/agent/sessions/:sid/patients/:pid/actions/:aid", h.AgentUpdate)
}

func (h *Handler) ListPatientActions(c echo.Context) error {
	ctx := c.Request().Context()
	actions, err := h.svc.ListByPatient(ctx, auth.SessionIDFromContext(ctx), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, actions)
}

func (h *Handler) ActivityFeed(c echo.Context) error {
	ctx := c.Request().Context()
	feed, err := h.svc.ActivityFeed(ctx, auth.SessionIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if feed == nil {
		feed = []FeedEntry{}
	}
	return c.JSON(http.StatusOK, feed)
}

func (h *Handler) RequiresAttention(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.RequiresAttention(ctx, auth.SessionIDFromContext(ctx), h.names)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

type agentUpdateRequest struct {
	Status string            `json:"status"`
	Entry  *ActivityLogEntry `json:"entry"`
}

// AgentUpdate applies a status change and/or a new activity-log entry sent by
// the agent backend.
func (h *Handler) AgentUpdate(c echo.Context) error {
	var req agentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" && req.Entry == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "status or entry is required")
	}
	if req.Status != "" && !ValidStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+req.Status)
	}

	ctx := c.Request().Context()
	sid, pid, aid := c.Param("sid"), c.Param("pid"), c.Param("aid")

	if req.Status != "" {
		if err := h.svc.UpdateStatus(ctx, sid, pid, aid, req.Status); err != nil {
			return agentError(err)
		}
	}
	if req.Entry != nil {
		if err := h.svc.AppendActivity(ctx, sid, pid, aid, *req.Entry); err != nil {
			return agentError(err)
		}
	}

	a, err := h.svc.Get(ctx, sid, pid, aid)
	if err != nil {
		return agentError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func agentError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "action not found")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}
