package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/metrics"
)

// clientEncryptionKeyUseCaseWithMetrics decorates ClientEncryptionKeyUseCase with metrics
// instrumentation.
type clientEncryptionKeyUseCaseWithMetrics struct {
	next    ClientEncryptionKeyUseCase
	metrics metrics.BusinessMetrics
}

// NewClientEncryptionKeyUseCaseWithMetrics wraps a ClientEncryptionKeyUseCase with metrics
// recording.
func NewClientEncryptionKeyUseCaseWithMetrics(
	useCase ClientEncryptionKeyUseCase,
	m metrics.BusinessMetrics,
) ClientEncryptionKeyUseCase {
	return &clientEncryptionKeyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *clientEncryptionKeyUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	err error,
) {
	status := metrics.StatusOf(err)
	c.metrics.RecordOperation(ctx, "crypto", operation, status)
	c.metrics.RecordDuration(ctx, "crypto", operation, time.Since(start), status)
}

// Import records metrics for key imports.
func (c *clientEncryptionKeyUseCaseWithMetrics) Import(
	ctx context.Context,
	key *cryptoDomain.ClientEncryptionKey,
) (*cryptoDomain.ClientEncryptionKey, error) {
	start := time.Now()
	imported, err := c.next.Import(ctx, key)
	c.record(ctx, "client_encryption_key_import", start, err)
	return imported, err
}

// Get records metrics for key retrieval.
func (c *clientEncryptionKeyUseCaseWithMetrics) Get(
	ctx context.Context,
	id string,
) (*cryptoDomain.ClientEncryptionKey, error) {
	start := time.Now()
	key, err := c.next.Get(ctx, id)
	c.record(ctx, "client_encryption_key_get", start, err)
	return key, err
}

// List records metrics for key listing.
func (c *clientEncryptionKeyUseCaseWithMetrics) List(
	ctx context.Context,
	offset, limit int,
) ([]*cryptoDomain.ClientEncryptionKey, error) {
	start := time.Now()
	keys, err := c.next.List(ctx, offset, limit)
	c.record(ctx, "client_encryption_key_list", start, err)
	return keys, err
}

// Rewrap records metrics for key rewraps.
func (c *clientEncryptionKeyUseCaseWithMetrics) Rewrap(
	ctx context.Context,
	id string,
	metadata cryptoDomain.EncryptionKeyWrapMetadata,
) (*cryptoDomain.ClientEncryptionKey, error) {
	start := time.Now()
	key, err := c.next.Rewrap(ctx, id, metadata)
	c.record(ctx, "client_encryption_key_rewrap", start, err)
	return key, err
}
