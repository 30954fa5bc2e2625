package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"
	UserIDKey    contextKey = "user_id"
)

// SessionHeader carries the session id when token checks are off.
const SessionHeader = "X-Session-ID"

// SessionLookup reports whether a session still exists in the store.
type SessionLookup interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

type SessionGateConfig struct {
	// Tokens is nil when no signing key is configured; the session id is
	// then taken from the session_id query parameter or X-Session-ID.
	Tokens    *TokenIssuer
	Sessions  SessionLookup
	LoginPath string
	Skipper   func(c echo.Context) bool
}

// SessionGate resolves the caller's session and rejects the request with a
// redirect to the login page when there is none.
func SessionGate(cfg SessionGateConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = PublicSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			sessionID, userID, ok := resolveSession(c, cfg.Tokens)
			if !ok {
				return redirectToLogin(cfg.LoginPath, "no session")
			}

			exists, err := cfg.Sessions.Exists(c.Request().Context(), sessionID)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadGateway, "session lookup failed")
			}
			if !exists {
				return redirectToLogin(cfg.LoginPath, "session not found")
			}

			c.Set("session_id", sessionID)
			ctx := context.WithValue(c.Request().Context(), SessionIDKey, sessionID)
			if userID != "" {
				ctx = context.WithValue(ctx, UserIDKey, userID)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func resolveSession(c echo.Context, tokens *TokenIssuer) (sessionID, userID string, ok bool) {
	if tokens == nil {
		sid := c.QueryParam("session_id")
		if sid == "" {
			sid = c.Request().Header.Get(SessionHeader)
		}
		return sid, "", sid != ""
	}

	raw := bearerToken(c.Request().Header.Get("Authorization"))
	if raw == "" {
		// Browsers cannot set headers on a WebSocket handshake.
		raw = c.QueryParam("token")
	}
	if raw == "" {
		return "", "", false
	}
	claims, err := tokens.Parse(raw)
	if err != nil {
		return "", "", false
	}
	return claims.SessionID, claims.Subject, true
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func redirectToLogin(loginPath, msg string) error {
	if loginPath == "" {
		loginPath = "/login"
	}
	return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
		"message":  msg,
		"redirect": loginPath,
	})
}

func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(SessionIDKey).(string)
	return sid
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// WithSessionID is used by tests and CLI commands that act on a session
// without going through the gate.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}
