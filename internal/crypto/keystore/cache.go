// Package keystore provides the two in-process key caches that keep the key custodian off
// the hot path: KeyStoreProvider caches raw unwrap results per (key id, wrapped bytes) and
// ProtectedKeyCache caches built protected keys per (key id, KEK path, wrapped bytes).
//
// Both caches serve warm reads from a sync.Map without locking and serialize the cold path
// with one weighted semaphore of size 1 per instance followed by a double-check, so at most
// one expensive unwrap reaches the custodian for a cold key regardless of caller count.
package keystore

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// TimeToLive is a live, shared TTL setting. Cache entries are checked against its current
// value on every read, so lowering it expires existing entries immediately.
type TimeToLive struct {
	d atomic.Int64
}

// NewTimeToLive creates a TimeToLive holding d.
func NewTimeToLive(d time.Duration) *TimeToLive {
	t := &TimeToLive{}
	t.Set(d)
	return t
}

// Get returns the current TTL.
func (t *TimeToLive) Get() time.Duration {
	return time.Duration(t.d.Load())
}

// Set replaces the TTL. Zero or negative values expire every entry.
func (t *TimeToLive) Set(d time.Duration) {
	t.d.Store(int64(d))
}

// cacheEntry is an immutable cached value with its creation time.
type cacheEntry[T any] struct {
	value     T
	createdAt time.Time
}

// expired reports whether the entry is past ttl at now. A ttl <= 0 expires everything.
func (e *cacheEntry[T]) expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	return !now.Before(e.createdAt.Add(ttl))
}

// wrappedKeyHash returns the hex SHA-256 of the wrapped key bytes.
func wrappedKeyHash(wrappedKey []byte) string {
	sum := sha256.Sum256(wrappedKey)
	return hex.EncodeToString(sum[:])
}

// options holds settings shared by both caches.
type options struct {
	now               func() time.Time
	logger            *slog.Logger
	refreshPercentage int
}

// Option configures a cache.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used for background activity.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRefreshPercentage sets the entry age, as a percentage of the TTL, after which a warm
// hit schedules a background re-unwrap. Zero disables background refresh.
func WithRefreshPercentage(percentage int) Option {
	return func(o *options) {
		o.refreshPercentage = percentage
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "/")
}
