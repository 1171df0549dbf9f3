package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// createCORSMiddleware returns nil when CORS is disabled or no usable origin is configured.
// The document API is meant for server-to-server use, so CORS stays off by default.
func createCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOrigins, logger)
	if len(origins) == 0 {
		logger.Warn("cors enabled but no valid origins configured, cors will not be applied")
		return nil
	}

	logger.Info("cors enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Content-Type", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        12 * time.Hour,
	})
}

// parseOrigins splits a comma-separated origin list. Entries gin-contrib/cors would
// reject (anything other than "*" or an http(s) origin) are dropped with a warning,
// since cors.New panics on them.
func parseOrigins(allowOrigins string, logger *slog.Logger) []string {
	var origins []string
	for part := range strings.SplitSeq(allowOrigins, ",") {
		origin := strings.TrimSpace(part)
		switch {
		case origin == "":
			continue
		case origin == "*",
			strings.HasPrefix(origin, "http://"),
			strings.HasPrefix(origin, "https://"):
			origins = append(origins, strings.TrimSuffix(origin, "/"))
		default:
			logger.Warn("ignoring invalid cors origin", slog.String("origin", origin))
		}
	}
	return origins
}
