package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseOrigins(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"comma separated", "https://app.example.com,https://admin.example.com",
			[]string{"https://app.example.com", "https://admin.example.com"}},
		{"whitespace and trailing slash", " https://app.example.com/ , http://localhost:3000 ",
			[]string{"https://app.example.com", "http://localhost:3000"}},
		{"wildcard", "*", []string{"*"}},
		{"invalid entries dropped", "app.example.com,,ftp://files,https://ok.example.com",
			[]string{"https://ok.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseOrigins(tt.input, logger))
		})
	}
}

func TestCreateCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	assert.Nil(t, createCORSMiddleware(false, "https://app.example.com", logger))
	assert.Nil(t, createCORSMiddleware(true, "", logger))
	assert.Nil(t, createCORSMiddleware(true, "not-an-origin", logger))
	assert.NotNil(t, createCORSMiddleware(true, "https://app.example.com", logger))
}

func newCORSRouter(enabled bool) *gin.Engine {
	router := gin.New()
	if middleware := createCORSMiddleware(enabled, "https://app.example.com", slog.New(slog.DiscardHandler)); middleware != nil {
		router.Use(middleware)
	}
	router.POST("/v1/documents/encrypt", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestCORS_AllowedOrigin(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/encrypt", nil)
	req.Header.Set("Origin", "https://app.example.com")
	newCORSRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-Id")
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/encrypt", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	newCORSRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Disabled(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/encrypt", nil)
	req.Header.Set("Origin", "https://app.example.com")
	newCORSRouter(false).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/documents/encrypt", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	newCORSRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.NotContains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}
