package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds the login throttle settings.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// ExpiresIn drops a client's limiter after this long without requests.
	ExpiresIn time.Duration
}

// LoginRateLimitConfig falls back to 5 rps with a burst of 10 when the
// configured limits are not positive.
func LoginRateLimitConfig(rps float64, burst int) RateLimitConfig {
	cfg := RateLimitConfig{RequestsPerSecond: rps, BurstSize: burst, ExpiresIn: 3 * time.Minute}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	return cfg
}

// retryAfter is the whole number of seconds until one token is back.
func (cfg RateLimitConfig) retryAfter() int {
	if cfg.RequestsPerSecond <= 0 {
		return 1
	}
	return int(math.Ceil(1 / cfg.RequestsPerSecond))
}

// RateLimit throttles the sandbox login per client IP so the fixed
// credential cannot be hammered. Limiters live in echo's in-memory store.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.RequestsPerSecond),
		Burst:     cfg.BurstSize,
		ExpiresIn: cfg.ExpiresIn,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		BeforeFunc: func(c echo.Context) {
			c.Response().Header().Set("X-RateLimit-Limit", limit)
		},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			h := c.Response().Header()
			h.Set("Retry-After", strconv.Itoa(cfg.retryAfter()))
			h.Set("X-RateLimit-Remaining", "0")
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}
