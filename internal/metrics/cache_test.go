package metrics

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCacheGauges(t *testing.T) {
	provider, err := NewProvider("cache_test")
	require.NoError(t, err)

	var registered atomic.Int64
	registered.Store(2)

	registration, err := RegisterCacheGauges(provider.MeterProvider(), "cache_test", map[string]CacheSizeFunc{
		"key_unwrap":   func() int { return 3 },
		"dek_registry": func() int { return int(registered.Load()) },
	})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, registration.Unregister())
	}()

	scrape := func() string {
		w := httptest.NewRecorder()
		provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return w.Body.String()
	}

	output := scrape()
	assertBizMetricLine(t, output, `cache_test_cache_entries`, `cache="key_unwrap"`, `3`)
	assertBizMetricLine(t, output, `cache_test_cache_entries`, `cache="dek_registry"`, `2`)

	registered.Store(5)
	assertBizMetricLine(t, scrape(), `cache_test_cache_entries`, `cache="dek_registry"`, `5`)
}
