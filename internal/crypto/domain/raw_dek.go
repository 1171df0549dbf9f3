package domain

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// RawDek is an unwrapped data encryption key tracked by the lifecycle manager.
//
// Usage is recorded on every Use call so the lifecycle manager can tell active keys from
// idle ones. Dispose zeroes the key and closes every bound algorithm exactly once; it waits
// for in-flight Use calls to return, so a caller never observes a key that is being wiped.
type RawDek struct {
	ID                string
	WrappedKey        []byte
	WrapMetadata      EncryptionKeyWrapMetadata
	RefreshPercentage int

	clock     func() time.Time
	createdAt time.Time
	lastUsed  atomic.Int64

	mu       sync.RWMutex
	key      []byte
	closers  []io.Closer
	disposed bool
}

// NewRawDek creates a RawDek owning a copy of key. clock stamps creation and every Use;
// nil means time.Now.
func NewRawDek(
	id string,
	key, wrappedKey []byte,
	metadata EncryptionKeyWrapMetadata,
	refreshPercentage int,
	clock func() time.Time,
) *RawDek {
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	d := &RawDek{
		ID:                id,
		WrappedKey:        append([]byte(nil), wrappedKey...),
		WrapMetadata:      metadata,
		RefreshPercentage: refreshPercentage,
		clock:             clock,
		createdAt:         now,
		key:               append([]byte(nil), key...),
	}
	d.lastUsed.Store(now.UnixNano())
	return d
}

// CreatedAt returns when the key was unwrapped.
func (d *RawDek) CreatedAt() time.Time {
	return d.createdAt
}

// LastUsed returns the most recent usage timestamp.
func (d *RawDek) LastUsed() time.Time {
	return time.Unix(0, d.lastUsed.Load())
}

// RecordUsage moves the last-used timestamp forward. Older timestamps are ignored.
func (d *RawDek) RecordUsage(at time.Time) {
	n := at.UnixNano()
	for {
		cur := d.lastUsed.Load()
		if n <= cur {
			return
		}
		if d.lastUsed.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Bind attaches a resource released on Dispose. Binding to a disposed key closes c at once.
func (d *RawDek) Bind(c io.Closer) {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		_ = c.Close()
		return
	}
	d.closers = append(d.closers, c)
	d.mu.Unlock()
}

// Use runs fn with the key material while holding a read guard against disposal.
// It records usage and returns ErrDekDisposed once the key was disposed.
func (d *RawDek) Use(fn func(key []byte) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.disposed {
		return ErrDekDisposed
	}
	d.RecordUsage(d.clock())
	return fn(d.key)
}

// IsDisposed reports whether Dispose already ran.
func (d *RawDek) IsDisposed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.disposed
}

// Dispose zeroes the key and closes bound resources. Only the first call does any work and
// returns true.
func (d *RawDek) Dispose() bool {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return false
	}
	d.disposed = true
	Zero(d.key)
	d.key = nil
	closers := d.closers
	d.closers = nil
	d.mu.Unlock()

	for _, c := range closers {
		_ = c.Close()
	}
	return true
}

// Zero overwrites b with zeros. Callers use it on every transient copy of key material.
func Zero(b []byte) {
	clear(b)
}
