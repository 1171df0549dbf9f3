package keystore

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/docencrypt/internal/crypto/service"
)

// PrefetchKeyWrapAlgorithm is the wrap algorithm used by PrefetchUnwrapKey, which is not
// told the algorithm by its callers.
const PrefetchKeyWrapAlgorithm = cryptoDomain.RSAOAEP

// KeyStoreProvider caches raw custodian unwrap results per (key id, wrapped bytes).
//
// Cache states per key: cold (no entry), warm (entry within TTL) and expired (entry past the
// live TTL, treated as cold). UnwrapKey is the synchronous hot path; PrefetchUnwrapKey warms
// the cache off the hot path through the resolver's context-aware methods only.
type KeyStoreProvider struct {
	resolver cryptoService.KeyResolver
	ttl      *TimeToLive
	opts     options

	cache      sync.Map // map[string]*cacheEntry[[]byte]
	refreshing sync.Map // map[string]struct{}
	sem        *semaphore.Weighted

	mu       sync.Mutex
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewKeyStoreProvider creates a KeyStoreProvider resolving KEKs through resolver.
func NewKeyStoreProvider(resolver cryptoService.KeyResolver, ttl *TimeToLive, opts ...Option) *KeyStoreProvider {
	ctx, cancel := context.WithCancel(context.Background())
	return &KeyStoreProvider{
		resolver: resolver,
		ttl:      ttl,
		opts:     newOptions(opts),
		sem:      semaphore.NewWeighted(1),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// unwrapCacheKey identifies one wrapped DEK under one KEK id.
func unwrapCacheKey(keyID string, wrappedKey []byte) string {
	return joinKey(keyID, wrappedKeyHash(wrappedKey))
}

// lookup returns the warm entry for key, if any.
func (p *KeyStoreProvider) lookup(key string) (*cacheEntry[[]byte], bool) {
	v, ok := p.cache.Load(key)
	if !ok {
		return nil, false
	}
	entry := v.(*cacheEntry[[]byte])
	if entry.expired(p.ttl.Get(), p.opts.now()) {
		return nil, false
	}
	return entry, true
}

func (p *KeyStoreProvider) store(key string, value []byte) {
	p.cache.Store(key, &cacheEntry[[]byte]{value: value, createdAt: p.opts.now()})
}

// PrefetchUnwrapKey warms the cache for (keyID, wrappedKey). It is a no-op when the entry is
// already warm. A cancelled ctx fails before any custodian call.
func (p *KeyStoreProvider) PrefetchUnwrapKey(ctx context.Context, keyID string, wrappedKey []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := unwrapCacheKey(keyID, wrappedKey)
	if _, ok := p.lookup(key); ok {
		return nil
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	if _, ok := p.lookup(key); ok {
		return nil
	}

	raw, err := p.unwrapContext(ctx, keyID, PrefetchKeyWrapAlgorithm, wrappedKey)
	if err != nil {
		return err
	}
	p.store(key, raw)
	return nil
}

// UnwrapKey returns the unwrapped DEK for wrappedKey. Warm hits never touch the custodian or
// the semaphore. On a miss the first caller resolves synchronously while the others wait on
// the semaphore and then reuse its result.
func (p *KeyStoreProvider) UnwrapKey(
	keyID string,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	wrappedKey []byte,
) ([]byte, error) {
	if err := algorithm.Validate(); err != nil {
		return nil, err
	}

	key := unwrapCacheKey(keyID, wrappedKey)
	if entry, ok := p.lookup(key); ok {
		p.maybeRefresh(key, keyID, algorithm, wrappedKey, entry)
		return bytes.Clone(entry.value), nil
	}

	// Acquire with a background context cannot fail.
	_ = p.sem.Acquire(context.Background(), 1)
	defer p.sem.Release(1)

	if entry, ok := p.lookup(key); ok {
		return bytes.Clone(entry.value), nil
	}

	handle, err := p.resolver.Resolve(keyID)
	if err != nil {
		return nil, err
	}
	raw, err := handle.UnwrapKey(algorithm, wrappedKey)
	if err != nil {
		return nil, err
	}
	p.store(key, raw)
	return bytes.Clone(raw), nil
}

// WrapKey wraps key with the KEK identified by keyID. Wrapping is not cached.
func (p *KeyStoreProvider) WrapKey(
	keyID string,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	key []byte,
) ([]byte, error) {
	if err := algorithm.Validate(); err != nil {
		return nil, err
	}
	handle, err := p.resolver.Resolve(keyID)
	if err != nil {
		return nil, err
	}
	return handle.WrapKey(algorithm, key)
}

// Sign is not supported by this provider.
func (p *KeyStoreProvider) Sign(keyID string, allowEnclaveComputations bool) ([]byte, error) {
	return nil, cryptoDomain.ErrUnsupportedOperation
}

// Verify is not supported by this provider.
func (p *KeyStoreProvider) Verify(keyID string, allowEnclaveComputations bool, signature []byte) (bool, error) {
	return false, cryptoDomain.ErrUnsupportedOperation
}

// Remove evicts the entry for (keyID, wrappedKey).
func (p *KeyStoreProvider) Remove(keyID string, wrappedKey []byte) {
	p.cache.Delete(unwrapCacheKey(keyID, wrappedKey))
}

// Len returns the number of cached entries, expired ones included.
func (p *KeyStoreProvider) Len() int {
	n := 0
	p.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Cleanup cancels background refreshes without waiting for them and clears the cache.
// It is safe to call repeatedly; the provider stays usable afterwards.
func (p *KeyStoreProvider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bgCancel()
	p.bgCtx, p.bgCancel = context.WithCancel(context.Background())
	p.cache.Clear()
}

// storeRefreshed stores a background refresh result unless ctx was cancelled by Cleanup.
// The check and the store share p.mu with Cleanup.
func (p *KeyStoreProvider) storeRefreshed(ctx context.Context, key string, value []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	p.store(key, value)
	return true
}

func (p *KeyStoreProvider) backgroundContext() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bgCtx
}

func (p *KeyStoreProvider) unwrapContext(
	ctx context.Context,
	keyID string,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	wrappedKey []byte,
) ([]byte, error) {
	handle, err := p.resolver.ResolveContext(ctx, keyID)
	if err != nil {
		return nil, err
	}
	return handle.UnwrapKeyContext(ctx, algorithm, wrappedKey)
}

// maybeRefresh schedules one background re-unwrap for entries older than the refresh
// threshold. It never blocks the caller.
func (p *KeyStoreProvider) maybeRefresh(
	key, keyID string,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	wrappedKey []byte,
	entry *cacheEntry[[]byte],
) {
	if p.opts.refreshPercentage <= 0 {
		return
	}
	threshold := p.ttl.Get() * time.Duration(p.opts.refreshPercentage) / 100
	if p.opts.now().Sub(entry.createdAt) < threshold {
		return
	}
	if _, loaded := p.refreshing.LoadOrStore(key, struct{}{}); loaded {
		return
	}

	ctx := p.backgroundContext()
	wrapped := bytes.Clone(wrappedKey)
	go func() {
		defer p.refreshing.Delete(key)

		raw, err := p.unwrapContext(ctx, keyID, algorithm, wrapped)
		if err != nil {
			if ctx.Err() == nil {
				p.opts.logger.Warn("background key refresh failed",
					slog.String("key_id", keyID),
					slog.Any("error", err),
				)
			}
			return
		}
		p.storeRefreshed(ctx, key, raw)
	}()
}
