package domain

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	closed atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func newTestRawDek(now time.Time) *RawDek {
	return NewRawDek(
		"cek1",
		[]byte{1, 2, 3, 4},
		[]byte{9, 9, 9},
		EncryptionKeyWrapMetadata{Type: KeyWrapMetadataTypeKMS, Value: "base64key://", Algorithm: RSAOAEP},
		25,
		func() time.Time { return now },
	)
}

func TestRawDek_RecordUsage(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("moves forward", func(t *testing.T) {
		dek := newTestRawDek(now)
		dek.RecordUsage(now.Add(time.Minute))
		assert.True(t, dek.LastUsed().Equal(now.Add(time.Minute)))
	})

	t.Run("ignores older timestamps", func(t *testing.T) {
		dek := newTestRawDek(now)
		dek.RecordUsage(now.Add(time.Minute))
		dek.RecordUsage(now.Add(-time.Minute))
		assert.True(t, dek.LastUsed().Equal(now.Add(time.Minute)))
	})
}

func TestRawDek_Use(t *testing.T) {
	now := time.Now().Add(-time.Hour)

	t.Run("exposes key and records usage", func(t *testing.T) {
		current := now
		dek := NewRawDek("cek1", []byte{1, 2, 3, 4}, nil, EncryptionKeyWrapMetadata{}, 25,
			func() time.Time { return current })
		assert.True(t, dek.CreatedAt().Equal(now))

		current = now.Add(time.Minute)
		var seen []byte
		err := dek.Use(func(key []byte) error {
			seen = append(seen, key...)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, seen)
		assert.True(t, dek.LastUsed().Equal(now.Add(time.Minute)))
	})

	t.Run("nil clock falls back to wall time", func(t *testing.T) {
		before := time.Now()
		dek := NewRawDek("cek1", []byte{1}, nil, EncryptionKeyWrapMetadata{}, 25, nil)
		require.NoError(t, dek.Use(func([]byte) error { return nil }))
		assert.False(t, dek.LastUsed().Before(before))
	})

	t.Run("fails after dispose", func(t *testing.T) {
		dek := newTestRawDek(now)
		dek.Dispose()
		err := dek.Use(func(key []byte) error { return nil })
		assert.ErrorIs(t, err, ErrDekDisposed)
	})

	t.Run("owns a copy of the key", func(t *testing.T) {
		key := []byte{5, 6}
		dek := NewRawDek("cek", key, nil, EncryptionKeyWrapMetadata{}, 25, nil)
		key[0] = 0
		_ = dek.Use(func(k []byte) error {
			assert.Equal(t, byte(5), k[0])
			return nil
		})
	})
}

func TestRawDek_Dispose(t *testing.T) {
	now := time.Now()

	t.Run("exactly once", func(t *testing.T) {
		dek := newTestRawDek(now)
		closer := &countingCloser{}
		dek.Bind(closer)

		var wg sync.WaitGroup
		var firsts atomic.Int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if dek.Dispose() {
					firsts.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), firsts.Load())
		assert.Equal(t, int32(1), closer.closed.Load())
		assert.True(t, dek.IsDisposed())
	})

	t.Run("bind after dispose closes immediately", func(t *testing.T) {
		dek := newTestRawDek(now)
		dek.Dispose()
		closer := &countingCloser{}
		dek.Bind(closer)
		assert.Equal(t, int32(1), closer.closed.Load())
	})

	t.Run("waits for in-flight use", func(t *testing.T) {
		dek := newTestRawDek(now)
		entered := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})

		go func() {
			_ = dek.Use(func(key []byte) error {
				close(entered)
				<-release
				assert.Equal(t, byte(1), key[0])
				return nil
			})
		}()
		<-entered

		go func() {
			dek.Dispose()
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("dispose returned while key was in use")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		<-done
		assert.True(t, dek.IsDisposed())
	})
}

func TestZero(t *testing.T) {
	for _, b := range [][]byte{nil, {}, {1, 2, 3}, make([]byte, KeySize)} {
		for i := range b {
			b[i] = byte(i + 1)
		}
		assert.NotPanics(t, func() { Zero(b) })
		assert.Equal(t, make([]byte, len(b)), b)
	}
}
