package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

// countingBuild returns a BuildFunc that unwraps through a KeyStoreProvider and counts calls.
func countingBuild(calls *atomic.Int32, delay time.Duration, raw []byte) BuildFunc {
	return func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return append([]byte(nil), raw...), nil
	}
}

func TestProtectedKeyCacheKey(t *testing.T) {
	k1 := ProtectedKeyCacheKey("cek1", "kms://kek1", []byte{1, 2, 3})
	k2 := ProtectedKeyCacheKey("cek1", "kms://kek1", []byte{1, 2, 4})
	k3 := ProtectedKeyCacheKey("cek1", "kms://kek2", []byte{1, 2, 3})

	assert.NotEqual(t, k1, k2, "rewrap under the same id must change the key")
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, k1, ProtectedKeyCacheKey("cek1", "kms://kek1", []byte{1, 2, 3}))
	assert.Contains(t, k1, "cek1/kms://kek1/")
}

func TestProtectedKeyCache_GetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("builds once then hits", func(t *testing.T) {
		cache := NewProtectedKeyCache(NewTimeToLive(time.Hour))
		var calls atomic.Int32

		for i := 0; i < 3; i++ {
			pk, err := cache.GetOrCreate(ctx, "cek1", "kek1", testWrapped, countingBuild(&calls, 0, testRaw))
			require.NoError(t, err)
			assert.Equal(t, testRaw, pk.RawKey())
			assert.Equal(t, "cek1", pk.Name)
			assert.Equal(t, "kek1", pk.KeyEncryptionKeyPath)
		}
		assert.Equal(t, int32(1), calls.Load())

		pk, ok := cache.Get("cek1", "kek1", testWrapped)
		require.True(t, ok)
		assert.Equal(t, testWrapped, pk.WrappedKey)
	})

	t.Run("rewrap produces a miss", func(t *testing.T) {
		cache := NewProtectedKeyCache(NewTimeToLive(time.Hour))
		var calls atomic.Int32

		_, err := cache.GetOrCreate(ctx, "cek1", "kek1", testWrapped, countingBuild(&calls, 0, testRaw))
		require.NoError(t, err)
		pk, err := cache.GetOrCreate(ctx, "cek1", "kek1", []byte{7, 7, 7}, countingBuild(&calls, 0, []byte{6, 6, 6}))
		require.NoError(t, err)

		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, []byte{6, 6, 6}, pk.RawKey())
	})

	t.Run("build error is returned and not cached", func(t *testing.T) {
		cache := NewProtectedKeyCache(NewTimeToLive(time.Hour))
		boom := errors.New("boom")

		_, err := cache.GetOrCreate(ctx, "cek1", "kek1", testWrapped, func(context.Context) ([]byte, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("cancelled wait", func(t *testing.T) {
		cache := NewProtectedKeyCache(NewTimeToLive(time.Hour))
		release := make(chan struct{})
		started := make(chan struct{})

		go func() {
			_, _ = cache.GetOrCreate(ctx, "cek1", "kek1", testWrapped, func(context.Context) ([]byte, error) {
				close(started)
				<-release
				return testRaw, nil
			})
		}()
		<-started

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := cache.GetOrCreate(waitCtx, "cek2", "kek1", testWrapped, countingBuild(new(atomic.Int32), 0, testRaw))
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
	})
}

func TestProtectedKeyCache_Stampede(t *testing.T) {
	for _, n := range []int{50, 100} {
		t.Run(fmt.Sprintf("%d racers", n), func(t *testing.T) {
			resolver := &shiftResolver{delay: 20 * time.Millisecond}
			provider := NewKeyStoreProvider(resolver, NewTimeToLive(time.Hour))
			cache := NewProtectedKeyCache(NewTimeToLive(time.Hour))

			build := func(context.Context) ([]byte, error) {
				return provider.UnwrapKey("kek1", cryptoDomain.RSAOAEP, testWrapped)
			}

			start := make(chan struct{})
			keys := make([]*ProtectedDataEncryptionKey, n)
			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					keys[i], errs[i] = cache.GetOrCreate(context.Background(), "cek1", "kek1", testWrapped, build)
				}(i)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), resolver.unwrapCalls.Load())
			for i := 0; i < n; i++ {
				require.NoError(t, errs[i])
				assert.Same(t, keys[0], keys[i])
			}
		})
	}
}

func TestProtectedKeyCache_HitsBypassTheColdPath(t *testing.T) {
	ctx := context.Background()
	cache := NewProtectedKeyCache(NewTimeToLive(time.Hour))

	_, err := cache.GetOrCreate(ctx, "warm", "kek1", testWrapped, countingBuild(new(atomic.Int32), 0, testRaw))
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = cache.GetOrCreate(ctx, "cold", "kek1", testWrapped, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return testRaw, nil
		})
	}()
	<-started
	defer close(release)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pk, err := cache.GetOrCreate(ctx, "warm", "kek1", testWrapped, countingBuild(new(atomic.Int32), 0, testRaw))
		assert.NoError(t, err)
		assert.NotNil(t, pk)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("warm read blocked behind a cold build")
	}
}

func TestProtectedKeyCache_TTL(t *testing.T) {
	ctx := context.Background()

	t.Run("ratchet down expires existing entries", func(t *testing.T) {
		ttl := NewTimeToLive(2 * time.Hour)
		cache := NewProtectedKeyCache(ttl)
		_, err := cache.GetOrCreate(ctx, "cek1", "kek1", testWrapped, countingBuild(new(atomic.Int32), 0, testRaw))
		require.NoError(t, err)

		_, ok := cache.Get("cek1", "kek1", testWrapped)
		require.True(t, ok)

		ttl.Set(0)
		_, ok = cache.Get("cek1", "kek1", testWrapped)
		assert.False(t, ok)
	})

	t.Run("ttl zero stores but never serves", func(t *testing.T) {
		cache := NewProtectedKeyCache(NewTimeToLive(0))
		var calls atomic.Int32

		for i := 0; i < 2; i++ {
			_, err := cache.GetOrCreate(ctx, "cek1", "kek1", testWrapped, countingBuild(&calls, 0, testRaw))
			require.NoError(t, err)
		}
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("entries expire with the clock", func(t *testing.T) {
		clock := newFakeClock()
		cache := NewProtectedKeyCache(NewTimeToLive(time.Hour), WithClock(clock.Now))
		_, err := cache.GetOrCreate(ctx, "cek1", "kek1", testWrapped, countingBuild(new(atomic.Int32), 0, testRaw))
		require.NoError(t, err)

		clock.Advance(59 * time.Minute)
		_, ok := cache.Get("cek1", "kek1", testWrapped)
		assert.True(t, ok)

		clock.Advance(time.Minute)
		_, ok = cache.Get("cek1", "kek1", testWrapped)
		assert.False(t, ok)
	})
}

func TestProtectedKeyCache_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	cache := NewProtectedKeyCache(NewTimeToLive(time.Hour))

	for _, id := range []string{"a", "b", "c"} {
		_, err := cache.GetOrCreate(ctx, id, "kek1", testWrapped, countingBuild(new(atomic.Int32), 0, testRaw))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, cache.Len())

	cache.Remove("a", "kek1", testWrapped)
	assert.Equal(t, 2, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestProtectedKeyCache_IsolatedInstances(t *testing.T) {
	ctx := context.Background()
	a := NewProtectedKeyCache(NewTimeToLive(time.Hour))
	b := NewProtectedKeyCache(NewTimeToLive(time.Hour))

	_, err := a.GetOrCreate(ctx, "cek1", "kek1", testWrapped, countingBuild(new(atomic.Int32), 0, testRaw))
	require.NoError(t, err)

	_, ok := b.Get("cek1", "kek1", testWrapped)
	assert.False(t, ok)
}
