package keystore

import (
	"bytes"
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ProtectedDataEncryptionKey is an unwrapped DEK together with the identity it was built
// from. Instances are immutable and shared between callers.
type ProtectedDataEncryptionKey struct {
	Name                 string
	KeyEncryptionKeyPath string
	WrappedKey           []byte
	key                  []byte
}

// RawKey returns a copy of the unwrapped key bytes.
func (k *ProtectedDataEncryptionKey) RawKey() []byte {
	return bytes.Clone(k.key)
}

// BuildFunc produces the unwrapped key bytes for a cold cache entry.
type BuildFunc func(ctx context.Context) ([]byte, error)

// ProtectedKeyCache caches built protected keys keyed by (key id, KEK path, hash of wrapped
// bytes). Rewrapping a key under the same id changes the wrapped bytes and therefore the
// cache key, so stale material is never served for new ciphertext.
type ProtectedKeyCache struct {
	ttl     *TimeToLive
	opts    options
	entries sync.Map // map[string]*cacheEntry[*ProtectedDataEncryptionKey]
	sem     *semaphore.Weighted
}

// NewProtectedKeyCache creates an empty cache whose entries expire against ttl.
func NewProtectedKeyCache(ttl *TimeToLive, opts ...Option) *ProtectedKeyCache {
	return &ProtectedKeyCache{
		ttl:  ttl,
		opts: newOptions(opts),
		sem:  semaphore.NewWeighted(1),
	}
}

// ProtectedKeyCacheKey returns the composite cache key "keyID/kekPath/hex(sha256(wrapped))".
func ProtectedKeyCacheKey(keyID, kekPath string, wrappedKey []byte) string {
	return joinKey(keyID, kekPath, wrappedKeyHash(wrappedKey))
}

// Get returns the warm entry without locking.
func (c *ProtectedKeyCache) Get(keyID, kekPath string, wrappedKey []byte) (*ProtectedDataEncryptionKey, bool) {
	return c.get(ProtectedKeyCacheKey(keyID, kekPath, wrappedKey))
}

func (c *ProtectedKeyCache) get(key string) (*ProtectedDataEncryptionKey, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	entry := v.(*cacheEntry[*ProtectedDataEncryptionKey])
	if entry.expired(c.ttl.Get(), c.opts.now()) {
		return nil, false
	}
	return entry.value, true
}

// GetOrCreate returns the warm entry or builds it. Only one build runs at a time; callers
// that waited re-check the cache before building. ctx bounds the wait and the build.
func (c *ProtectedKeyCache) GetOrCreate(
	ctx context.Context,
	keyID, kekPath string,
	wrappedKey []byte,
	build BuildFunc,
) (*ProtectedDataEncryptionKey, error) {
	key := ProtectedKeyCacheKey(keyID, kekPath, wrappedKey)
	if pk, ok := c.get(key); ok {
		return pk, nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if pk, ok := c.get(key); ok {
		return pk, nil
	}

	raw, err := build(ctx)
	if err != nil {
		return nil, err
	}

	pk := &ProtectedDataEncryptionKey{
		Name:                 keyID,
		KeyEncryptionKeyPath: kekPath,
		WrappedKey:           bytes.Clone(wrappedKey),
		key:                  raw,
	}
	c.entries.Store(key, &cacheEntry[*ProtectedDataEncryptionKey]{value: pk, createdAt: c.opts.now()})
	return pk, nil
}

// Remove evicts one entry.
func (c *ProtectedKeyCache) Remove(keyID, kekPath string, wrappedKey []byte) {
	c.entries.Delete(ProtectedKeyCacheKey(keyID, kekPath, wrappedKey))
}

// Len returns the number of stored entries, expired ones included.
func (c *ProtectedKeyCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear drops every entry.
func (c *ProtectedKeyCache) Clear() {
	c.entries.Clear()
}
