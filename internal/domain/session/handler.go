package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/primcare/dashboard/internal/platform/auth"
)

// Opener owns the lifecycle of a session's dashboard: Open creates the
// session and loads it, Close tears both down.
type Opener interface {
	Open(ctx context.Context, userID string) (string, error)
	Close(ctx context.Context, sessionID string) error
}

type HandlerConfig struct {
	Tokens       *auth.TokenIssuer
	OverviewPath string
	LoginPath    string
}

type Handler struct {
	svc    *Service
	opener Opener
	cfg    HandlerConfig
	logger zerolog.Logger
}

func NewHandler(svc *Service, opener Opener, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	if cfg.OverviewPath == "" {
		cfg.OverviewPath = "/overview"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &Handler{svc: svc, opener: opener, cfg: cfg, logger: logger}
}

// RegisterRoutes mounts the session endpoints. loginMW wraps only the login
// route, e.g. with a rate limiter.
func (h *Handler) RegisterRoutes(api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	api.POST("/login", h.Login, loginMW...)
	api.POST("/logout", h.Logout)
	api.GET("/session", h.GetSession)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token,omitempty"`
	Redirect  string `json:"redirect"`
}

// OverviewURL is where a ready session lands.
func OverviewURL(overviewPath, sessionID string) string {
	return overviewPath + "?session_id=" + url.QueryEscape(sessionID)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Authenticate(strings.TrimSpace(req.Email), req.Password); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, h.svc.Credentials().InvalidCredentialsMessage())
	}

	ctx := c.Request().Context()
	if prev := h.previousSession(c); prev != "" {
		if err := h.opener.Close(ctx, prev); err != nil {
			h.logger.Warn().Err(err).Str("session_id", prev).Msg("clear previous session")
		}
	}

	sid, err := h.opener.Open(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrSessionCreate) {
			return echo.NewHTTPError(http.StatusBadGateway, "Failed to create session")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	resp := loginResponse{SessionID: sid, Redirect: OverviewURL(h.cfg.OverviewPath, sid)}
	if h.cfg.Tokens != nil {
		tok, err := h.cfg.Tokens.Issue(sid, req.Email)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "issue token")
		}
		resp.Token = tok
	}
	return c.JSON(http.StatusOK, resp)
}

// previousSession finds a session the caller still holds. Login is outside
// the session gate, so this reads the same places the gate does.
func (h *Handler) previousSession(c echo.Context) string {
	if h.cfg.Tokens != nil {
		raw := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			return ""
		}
		claims, err := h.cfg.Tokens.Parse(raw)
		if err != nil {
			return ""
		}
		return claims.SessionID
	}
	if sid := c.QueryParam("session_id"); sid != "" {
		return sid
	}
	return c.Request().Header.Get(auth.SessionHeader)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.opener.Close(ctx, auth.SessionIDFromContext(ctx)); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := h.svc.Get(ctx, auth.SessionIDFromContext(ctx))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
			"message":  "session not found",
			"redirect": h.cfg.LoginPath,
		})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}
