package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetricsRouter(t *testing.T) (*gin.Engine, *Provider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider, err := NewProvider("test_app")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "test_app"))
	router.POST("/v1/documents/encrypt", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"document": gin.H{}})
	})
	router.GET("/v1/client-encryption-keys/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.GET("/error", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error"})
	})
	return router, provider
}

func serve(router *gin.Engine, method, path, body string) int {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	router.ServeHTTP(w, req)
	return w.Code
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("Success_RecordRequests", func(t *testing.T) {
		router, provider := newMetricsRouter(t)

		for range 3 {
			assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/v1/documents/encrypt", `{"document":{}}`))
		}
		assert.Equal(t, http.StatusInternalServerError, serve(router, http.MethodGet, "/error", ""))

		output := scrape(t, provider)
		assertBizMetricLine(t, output, `test_app_http_requests_total`,
			`method="POST".*path="/v1/documents/encrypt".*status_code="200"`, `3`)
		assertBizMetricLine(t, output, `test_app_http_requests_total`,
			`path="/error".*status_code="500"`, `1`)
		assertBizMetricLine(t, output, `test_app_http_request_body_bytes_count`,
			`path="/v1/documents/encrypt"`, `3`)
		assertBizMetricLine(t, output, `test_app_http_requests_in_flight`, ``, `0`)
	})

	t.Run("Success_RecordWithPathParams", func(t *testing.T) {
		router, provider := newMetricsRouter(t)

		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/v1/client-encryption-keys/cek1", ""))
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/v1/client-encryption-keys/cek2", ""))

		output := scrape(t, provider)
		assertBizMetricLine(t, output, `test_app_http_requests_total`,
			`path="/v1/client-encryption-keys/:id"`, `2`)
		assert.NotContains(t, output, "cek1")
	})

	t.Run("Success_UnmatchedRoute", func(t *testing.T) {
		router, provider := newMetricsRouter(t)

		assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/nope", ""))

		assertBizMetricLine(t, scrape(t, provider), `test_app_http_requests_total`, `path="unknown"`, `1`)
	})
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "RoutePattern",
			input:    "/v1/client-encryption-keys/:id",
			expected: "/v1/client-encryption-keys/:id",
		},
		{
			name:     "EmptyPath",
			input:    "",
			expected: "unknown",
		},
		{
			name:     "Rewrap",
			input:    "/v1/client-encryption-keys/:id/rewrap",
			expected: "/v1/client-encryption-keys/:id/rewrap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizePath(tt.input))
		})
	}
}
