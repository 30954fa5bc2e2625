package patient

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/primcare/dashboard/internal/domain/action"
	"github.com/primcare/dashboard/internal/platform/auth"
	"github.com/primcare/dashboard/pkg/pagination"
)

// ActionSource supplies the actions shown on the patient page.
type ActionSource interface {
	ListByPatient(ctx context.Context, sessionID, patientID string) (map[string]*action.Action, error)
}

type Handler struct {
	svc     *Service
	actions ActionSource
}

func NewHandler(svc *Service, actions ActionSource) *Handler {
	return &Handler{svc: svc, actions: actions}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/timeline", h.GetTimeline)
}

func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	opts := ParseListOptions(c.QueryParam("q"), c.QueryParam("sort"), c.QueryParam("dir"))
	list, err := h.svc.ListPatients(ctx, auth.SessionIDFromContext(ctx), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	pg := pagination.FromContext(c)
	start, end := pg.Window(len(list))
	rows := make([]Summary, 0, end-start)
	for _, p := range list[start:end] {
		rows = append(rows, p.Summary())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, len(list), pg.Limit, pg.Offset).
		WithNext(c.Path(), c.QueryParams()))
}

func (h *Handler) GetPatient(c echo.Context) error {
	ctx := c.Request().Context()
	sid := auth.SessionIDFromContext(ctx)
	p, err := h.svc.GetPatient(ctx, sid, c.Param("id"))
	if err != nil {
		return patientError(err)
	}

	detail := Detail{
		Patient:   p,
		RiskLevel: p.RiskLevel(),
		Timeline:  p.SortedTimeline(),
		Snapshots: p.SortedSnapshots(),
		Actions:   map[string]*action.Action{},
	}
	if h.actions != nil {
		actions, err := h.actions.ListByPatient(ctx, sid, p.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		detail.Actions = actions
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetTimeline(c echo.Context) error {
	ctx := c.Request().Context()
	events, err := h.svc.Timeline(ctx, auth.SessionIDFromContext(ctx), c.Param("id"))
	if err != nil {
		return patientError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func patientError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
