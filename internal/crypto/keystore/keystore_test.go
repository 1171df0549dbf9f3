package keystore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/docencrypt/internal/crypto/service"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// shiftResolver is an in-memory key resolver whose "custodian" wraps by adding one to every
// byte. It counts calls per path.
type shiftResolver struct {
	resolveCalls        atomic.Int32
	resolveContextCalls atomic.Int32
	unwrapCalls         atomic.Int32
	wrapCalls           atomic.Int32

	delay      time.Duration
	block      chan struct{}
	unwrapErr  error
	resolveErr error
}

func (r *shiftResolver) Resolve(keyID string) (cryptoService.KeyHandle, error) {
	r.resolveCalls.Add(1)
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	return &shiftHandle{r: r}, nil
}

func (r *shiftResolver) ResolveContext(ctx context.Context, keyID string) (cryptoService.KeyHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.resolveContextCalls.Add(1)
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	return &shiftHandle{r: r}, nil
}

type shiftHandle struct {
	r *shiftResolver
}

func shift(in []byte, by byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b + by
	}
	return out
}

func (h *shiftHandle) WrapKey(algorithm cryptoDomain.KeyWrapAlgorithm, key []byte) ([]byte, error) {
	h.r.wrapCalls.Add(1)
	return shift(key, 1), nil
}

func (h *shiftHandle) UnwrapKey(algorithm cryptoDomain.KeyWrapAlgorithm, wrappedKey []byte) ([]byte, error) {
	h.r.unwrapCalls.Add(1)
	if h.r.delay > 0 {
		time.Sleep(h.r.delay)
	}
	if h.r.unwrapErr != nil {
		return nil, h.r.unwrapErr
	}
	return shift(wrappedKey, 255), nil
}

func (h *shiftHandle) WrapKeyContext(
	ctx context.Context,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	key []byte,
) ([]byte, error) {
	return h.WrapKey(algorithm, key)
}

func (h *shiftHandle) UnwrapKeyContext(
	ctx context.Context,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	wrappedKey []byte,
) ([]byte, error) {
	h.r.unwrapCalls.Add(1)
	if h.r.block != nil {
		select {
		case <-h.r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.r.delay > 0 {
		time.Sleep(h.r.delay)
	}
	if h.r.unwrapErr != nil {
		return nil, h.r.unwrapErr
	}
	return shift(wrappedKey, 255), nil
}

var errCustodianDown = errors.New("custodian unavailable")
