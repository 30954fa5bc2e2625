package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass the session gate: infrastructure probes and the login
// endpoint that creates the session in the first place.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/db":    true,
	"/api/v1/login": true,
}

// PublicSkipper skips the gate for public paths and for the agent API, which
// addresses sessions explicitly in its URL.
func PublicSkipper(c echo.Context) bool {
	path := c.Path()
	if path == "" {
		path = c.Request().URL.Path
	}
	return IsPublicPath(path)
}

func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/api/v1/agent/")
}
