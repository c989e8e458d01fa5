// Package middleware holds echo middleware shared by the API server.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers for API and artwork routes. API
// responses are never cached; cached artwork is immutable by name.
func SecurityHeaders(apiPrefix, artworkPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "frame-ancestors 'self'")

			path := c.Request().URL.Path
			switch {
			case strings.HasPrefix(path, artworkPrefix):
				h.Set("Cache-Control", "public, max-age=31536000, immutable")
			case strings.HasPrefix(path, apiPrefix):
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			return next(c)
		}
	}
}
