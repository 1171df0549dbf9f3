package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a metric matching name,
// a partial label pattern and value. The exporter adds OTel scope labels.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusError, StatusOf(errors.New("boom")))
}

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	businessMetrics, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")

	require.NoError(t, err)
	assert.NotNil(t, businessMetrics)
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	noOpMetrics := NewNoOpBusinessMetrics()

	assert.IsType(t, &NoOpBusinessMetrics{}, noOpMetrics)
	assert.NotPanics(t, func() {
		ctx := context.Background()
		noOpMetrics.RecordOperation(ctx, "crypto", "client_encryption_key_import", StatusSuccess)
		noOpMetrics.RecordDuration(ctx, "encryption", "document_encrypt", 200*time.Millisecond, StatusError)
		noOpMetrics.RecordProperties(ctx, "document_encrypt", 3)
	})
}

func TestBusinessMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	ctx := context.Background()

	bm.RecordOperation(ctx, "crypto", "client_encryption_key_import", StatusSuccess)
	bm.RecordOperation(ctx, "crypto", "client_encryption_key_import", StatusSuccess)
	bm.RecordOperation(ctx, "crypto", "client_encryption_key_import", StatusError)
	bm.RecordOperation(ctx, "encryption", "document_encrypt", StatusSuccess)
	bm.RecordOperation(ctx, "crypto", "client_encryption_key_rewrap", StatusSuccess)

	bm.RecordDuration(ctx, "crypto", "client_encryption_key_import", 50*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, "crypto", "client_encryption_key_import", 60*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, "encryption", "document_encrypt", 10*time.Millisecond, StatusSuccess)

	bm.RecordProperties(ctx, "document_encrypt", 2)
	bm.RecordProperties(ctx, "document_encrypt", 3)
	bm.RecordProperties(ctx, "feed_decrypt", 0)

	output := scrape(t, provider)

	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="crypto".*operation="client_encryption_key_import".*status="success"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="crypto".*operation="client_encryption_key_import".*status="error"`,
		`1`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="encryption".*operation="document_encrypt".*status="success"`,
		`1`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operation_duration_seconds_count`,
		`domain="crypto".*operation="client_encryption_key_import".*status="success"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_document_properties_total`,
		`operation="document_encrypt"`,
		`5`,
	)
	assert.NotContains(t, output, `operation="feed_decrypt"`)
}
