// Package lifecycle keeps unwrapped DEKs fresh in the background.
//
// A Manager tracks registered RawDek handles. On every tick it disposes expired keys, skips
// keys that were not used since the previous tick, and re-unwraps actively used keys once
// they pass their refresh threshold. Refresh failures caused by revoked KEK access dispose
// the key immediately; any other failure lets the key run out its TTL.
package lifecycle

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/docencrypt/internal/crypto/service"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

// DisposeReason tells OnDispose hooks why a DEK was disposed.
type DisposeReason string

const (
	// DisposeExpired means the DEK reached its expiry without a successful refresh.
	DisposeExpired DisposeReason = "expired"
	// DisposeRevoked means the custodian reported revoked KEK access during refresh.
	DisposeRevoked DisposeReason = "revoked"
	// DisposeShutdown means the manager was cleaned up.
	DisposeShutdown DisposeReason = "shutdown"
	// DisposeReplaced means a new DEK was registered under the same id.
	DisposeReplaced DisposeReason = "replaced"
)

// trackedDek is the registry record for one RawDek.
type trackedDek struct {
	dek       *cryptoDomain.RawDek
	ttl       time.Duration
	expiresAt time.Time
	// lastSeenUsage is the RawDek's LastUsed value observed by the previous tick.
	lastSeenUsage time.Time
}

// windowStart is when the current TTL window began (registration or last refresh).
func (t *trackedDek) windowStart() time.Time {
	return t.expiresAt.Add(-t.ttl)
}

// Manager is a background scheduler over an explicit registry of DEK handles.
type Manager struct {
	wrapProvider cryptoService.WrapProvider
	logger       *slog.Logger
	interval     time.Duration
	concurrency  int
	now          func() time.Time
	onDispose    func(dek *cryptoDomain.RawDek, reason DisposeReason)

	mu       sync.Mutex
	registry map[string]*trackedDek
	cancel   context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithInterval sets the tick interval (default one minute).
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithConcurrency bounds the number of refreshes running at once (default 4).
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		m.concurrency = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithOnDispose registers a hook called once after each disposal, outside the registry lock.
func WithOnDispose(fn func(dek *cryptoDomain.RawDek, reason DisposeReason)) Option {
	return func(m *Manager) {
		m.onDispose = fn
	}
}

// NewManager creates a Manager refreshing DEKs through wrapProvider.
func NewManager(wrapProvider cryptoService.WrapProvider, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		wrapProvider: wrapProvider,
		logger:       logger,
		interval:     time.Minute,
		concurrency:  4,
		now:          time.Now,
		registry:     make(map[string]*trackedDek),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	return m
}

// Register starts tracking dek for ttl. A DEK already registered under the same id is
// disposed and replaced.
func (m *Manager) Register(dek *cryptoDomain.RawDek, ttl time.Duration) {
	now := m.now()

	m.mu.Lock()
	previous := m.registry[dek.ID]
	m.registry[dek.ID] = &trackedDek{
		dek:           dek,
		ttl:           ttl,
		expiresAt:     now.Add(ttl),
		lastSeenUsage: dek.LastUsed(),
	}
	m.mu.Unlock()

	if previous != nil && previous.dek != dek {
		m.dispose(previous.dek, DisposeReplaced)
	}
}

// Tracked returns the DEK registered under id.
func (m *Manager) Tracked(id string) (*cryptoDomain.RawDek, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.registry[id]
	if !ok {
		return nil, false
	}
	return t.dek, true
}

// ExpiresAt returns the current expiry of the DEK registered under id.
func (m *Manager) ExpiresAt(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.registry[id]
	if !ok {
		return time.Time{}, false
	}
	return t.expiresAt, true
}

// Len returns the number of tracked DEKs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registry)
}

// Start launches the background loop. It returns immediately; calling it on a running
// manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.loop(loopCtx)

	m.logger.Info("dek lifecycle manager started", slog.Duration("interval", m.interval))
}

func (m *Manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one pass over the registry.
func (m *Manager) Tick(ctx context.Context) {
	now := m.now()

	type refreshCandidate struct {
		id      string
		tracked *trackedDek
		usage   time.Time
	}

	var (
		expired    = make(map[string]*trackedDek)
		candidates []refreshCandidate
	)

	m.mu.Lock()
	for id, t := range m.registry {
		if !now.Before(t.expiresAt) {
			expired[id] = t
			continue
		}

		lastUsed := t.dek.LastUsed()
		if !lastUsed.After(t.lastSeenUsage) {
			continue
		}

		threshold := t.ttl * time.Duration(t.dek.RefreshPercentage) / 100
		if lastUsed.Sub(t.windowStart()) < threshold {
			continue
		}
		candidates = append(candidates, refreshCandidate{id: id, tracked: t, usage: lastUsed})
	}
	m.mu.Unlock()

	for id, t := range expired {
		m.dispose(t.dek, DisposeExpired)
		m.untrack(id, t)
	}

	if len(candidates) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, c := range candidates {
		g.Go(func() error {
			m.refresh(gctx, c.id, c.tracked, c.usage)
			return nil
		})
	}
	_ = g.Wait()
}

// refresh re-unwraps one DEK. The DEK stays usable while the call is in flight.
func (m *Manager) refresh(ctx context.Context, id string, t *trackedDek, usage time.Time) {
	key, err := m.wrapProvider.UnwrapKey(ctx, t.dek.WrappedKey, t.dek.WrapMetadata)
	cryptoDomain.Zero(key)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if apperrors.Is(err, cryptoDomain.ErrAccessRevoked) {
			m.logger.Warn("dek access revoked, disposing",
				slog.String("dek_id", id),
				slog.Any("error", err),
			)
			m.dispose(t.dek, DisposeRevoked)
			m.untrack(id, t)
			return
		}

		m.logger.Warn("dek refresh failed, keeping until expiry",
			slog.String("dek_id", id),
			slog.Time("expires_at", t.expiresAt),
			slog.Any("error", err),
		)
		m.mu.Lock()
		if m.registry[id] == t {
			t.lastSeenUsage = usage
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.registry[id] == t {
		t.expiresAt = m.now().Add(t.ttl)
		t.lastSeenUsage = usage
	}
	m.mu.Unlock()

	m.logger.Debug("dek refreshed", slog.String("dek_id", id))
}

// untrack removes t from the registry if it is still the record for id.
func (m *Manager) untrack(id string, t *trackedDek) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registry[id] == t {
		delete(m.registry, id)
	}
}

// dispose runs while the DEK is still tracked; callers untrack it afterwards.
func (m *Manager) dispose(dek *cryptoDomain.RawDek, reason DisposeReason) {
	if !dek.Dispose() {
		return
	}
	m.logger.Debug("dek disposed", slog.String("dek_id", dek.ID), slog.String("reason", string(reason)))
	if m.onDispose != nil {
		m.onDispose(dek, reason)
	}
}

// Cleanup stops the background loop without waiting for in-flight refreshes and disposes
// every tracked DEK. It is safe to call repeatedly.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	tracked := maps.Clone(m.registry)
	m.mu.Unlock()

	for id, t := range tracked {
		m.dispose(t.dek, DisposeShutdown)
		m.untrack(id, t)
	}
}
