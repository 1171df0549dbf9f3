package usecase

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	"github.com/allisson/docencrypt/internal/metrics"
)

// encryptionUseCaseWithMetrics decorates EncryptionUseCase with metrics instrumentation.
type encryptionUseCaseWithMetrics struct {
	next    EncryptionUseCase
	metrics metrics.BusinessMetrics
}

// NewEncryptionUseCaseWithMetrics wraps an EncryptionUseCase with metrics recording.
// Property counts reported to the diagnostics sink are also recorded as metrics.
func NewEncryptionUseCaseWithMetrics(useCase EncryptionUseCase, m metrics.BusinessMetrics) EncryptionUseCase {
	return &encryptionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// countingSink forwards to next and keeps the last property count it saw.
type countingSink struct {
	next  encryptionDomain.DiagnosticsSink
	count atomic.Int64
}

func (s *countingSink) SetCounter(name string, value int) {
	if name == encryptionDomain.DiagnosticPropertiesEncrypted ||
		name == encryptionDomain.DiagnosticPropertiesDecrypted {
		s.count.Store(int64(value))
	}
	if s.next != nil {
		s.next.SetCounter(name, value)
	}
}

func (s *countingSink) SetTimestamp(name string, at time.Time) {
	if s.next != nil {
		s.next.SetTimestamp(name, at)
	}
}

func (s *countingSink) SetDuration(name string, d time.Duration) {
	if s.next != nil {
		s.next.SetDuration(name, d)
	}
}

func (e *encryptionUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)
	e.metrics.RecordOperation(ctx, "encryption", operation, status)
	e.metrics.RecordDuration(ctx, "encryption", operation, time.Since(start), status)
}

func (e *encryptionUseCaseWithMetrics) recordProperties(
	ctx context.Context,
	operation string,
	sink *countingSink,
	err error,
) {
	if err == nil {
		e.metrics.RecordProperties(ctx, operation, int(sink.count.Load()))
	}
}

// BuildSettings records metrics for settings construction.
func (e *encryptionUseCaseWithMetrics) BuildSettings(
	ctx context.Context,
	container *encryptionDomain.Container,
) (*encryptionDomain.EncryptionSettings, error) {
	start := time.Now()
	settings, err := e.next.BuildSettings(ctx, container)
	e.record(ctx, "settings_build", start, err)
	return settings, err
}

// Encrypt records metrics for document encryption.
func (e *encryptionUseCaseWithMetrics) Encrypt(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, error) {
	start := time.Now()
	sink := &countingSink{next: diag}
	out, err := e.next.Encrypt(ctx, container, input, sink)
	e.record(ctx, "document_encrypt", start, err)
	e.recordProperties(ctx, "document_encrypt", sink, err)
	return out, err
}

// Decrypt records metrics for document decryption.
func (e *encryptionUseCaseWithMetrics) Decrypt(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, int, error) {
	start := time.Now()
	sink := &countingSink{next: diag}
	out, count, err := e.next.Decrypt(ctx, container, input, sink)
	e.record(ctx, "document_decrypt", start, err)
	e.recordProperties(ctx, "document_decrypt", sink, err)
	return out, count, err
}

// DecryptFeedResponse records metrics for feed decryption.
func (e *encryptionUseCaseWithMetrics) DecryptFeedResponse(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, error) {
	start := time.Now()
	sink := &countingSink{next: diag}
	out, err := e.next.DecryptFeedResponse(ctx, container, input, sink)
	e.record(ctx, "feed_decrypt", start, err)
	e.recordProperties(ctx, "feed_decrypt", sink, err)
	return out, err
}
