// Package collab implements spec.md §6's instance-based external API: a
// single CollaborationManager composing a provider.Provider and a
// syncbridge.Bridge one-for-one with the spec's method list (Connect,
// StartSync, StopSync, UpdateAwareness, RemoteAwareness, OnStatusChange,
// Dispose). This is the facade callers (out of scope per spec.md §1) are
// expected to hold, mirroring the teacher's top-level `kernel` package that
// wires its own subsystems behind one constructor.
package collab

import (
	"context"
	"log/slog"
	"sync"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/provider"
	"github.com/drawmesh/canvas-sync/internal/store"
	"github.com/drawmesh/canvas-sync/internal/syncbridge"
)

// Manager is spec.md §6's CollaborationManager.
type Manager struct {
	mu           sync.Mutex
	logger       *slog.Logger
	provider     *provider.Provider
	bridge       *syncbridge.Bridge
	providerOpts []provider.Option
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithLogger overrides the manager's (and its provider/bridge's) logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithProviderOptions passes through extra provider.Option values (for
// example provider.WithTransport in tests) to every Provider Connect
// builds.
func WithProviderOptions(opts ...provider.Option) Option {
	return func(m *Manager) { m.providerOpts = append(m.providerOpts, opts...) }
}

// New creates an unconnected Manager. Call Connect before StartSync.
func New(opts ...Option) *Manager {
	m := &Manager{logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Connect builds and connects a Provider for cfg. Calling Connect again
// disposes any previously connected provider first.
func (m *Manager) Connect(ctx context.Context, cfg provider.Config) error {
	m.mu.Lock()
	prev := m.provider
	providerOpts := append([]provider.Option{provider.WithLogger(m.logger)}, m.providerOpts...)
	m.mu.Unlock()
	if prev != nil {
		_ = prev.Dispose()
	}

	p := provider.New(cfg, providerOpts...)
	if err := p.Connect(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.provider = p
	m.mu.Unlock()
	return nil
}

// StartSync begins bidirectional sync against s. A no-op, logged, if
// called before Connect (spec.md §7: "Programming errors ... logged and
// no-op, not thrown").
func (m *Manager) StartSync(s store.ElementStore, debounceMs int) {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		m.logger.Warn("collab: StartSync called before Connect")
		return
	}

	b := syncbridge.New(p.Elements(), syncbridge.WithLogger(m.logger))
	b.Start(s, debounceMs)

	m.mu.Lock()
	m.bridge = b
	m.mu.Unlock()
}

// StopSync stops the active bridge, if any.
func (m *Manager) StopSync() {
	m.mu.Lock()
	b := m.bridge
	m.bridge = nil
	m.mu.Unlock()
	if b != nil {
		b.Stop()
	}
}

// UpdateAwareness forwards to the provider, a no-op before Connect.
func (m *Manager) UpdateAwareness(partial awareness.Partial) {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.UpdateAwareness(partial)
}

// RemoteAwareness returns every known remote peer's awareness state, or
// nil before Connect.
func (m *Manager) RemoteAwareness() map[string]awareness.State {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Awareness().RemoteStates()
}

// Awareness returns the provider's live presence tracker, or nil before
// Connect. Callers that need to watch for peer changes (the worker
// adapter's "peers" emission, spec.md §4.6) subscribe to it directly
// rather than polling RemoteAwareness.
func (m *Manager) Awareness() *awareness.Awareness {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Awareness()
}

// Status returns the current transport status, or provider.StatusDisconnected
// before Connect.
func (m *Manager) Status() provider.Status {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		return provider.StatusDisconnected
	}
	return p.Status()
}

// OnStatusChange forwards to the provider's status subscription. Returns a
// no-op unsubscribe before Connect.
func (m *Manager) OnStatusChange(fn func(provider.Status)) func() {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		return func() {}
	}
	return p.OnStatusChange(fn)
}

// Dispose stops the bridge and disposes the provider.
func (m *Manager) Dispose() error {
	m.StopSync()
	m.mu.Lock()
	p := m.provider
	m.provider = nil
	m.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Dispose()
}
