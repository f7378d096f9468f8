package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/collab"
	"github.com/drawmesh/canvas-sync/internal/element"
	"github.com/drawmesh/canvas-sync/internal/provider"
	"github.com/drawmesh/canvas-sync/internal/store"
)

// Backend is the background execution context spec.md §4.6 describes: it
// owns the collab.Manager (provider + sync bridge) and a local element
// store entirely off the caller's goroutine, and its methods are the
// Router's Handlers — the wiring the router previously left to a caller
// that did not exist. Connect builds the provider/bridge pair and fans
// their events out through a Router; Disconnect tears both down.
type Backend struct {
	mu      sync.Mutex
	mgr     *collab.Manager
	st      *store.MemoryStore
	router  *Router
	cancels []func()

	// applyingLocal suppresses the store-change listener's remote-update
	// emission for the host's own OnLocalUpdate write, mirroring
	// syncbridge.Bridge's applyingLocal/applyingRemote idiom so a local
	// write is never echoed back to the caller as if it came from a peer.
	applyingLocal atomic.Bool
}

// NewBackend builds a Backend and the Router fronting it. opts set the
// logger and the provider options passed through to the underlying
// collab.Manager (for example
// WithBackendProviderOptions(provider.WithTransport(fake)) in tests).
func NewBackend(opts ...BackendOption) (*Backend, *Router) {
	b := &Backend{st: store.NewMemoryStore()}
	cfg := backendConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	b.mgr = collab.New(collab.WithLogger(cfg.logger), collab.WithProviderOptions(cfg.providerOpts...))

	b.router = NewRouter(Handlers{
		OnConnect:     b.onConnect,
		OnDisconnect:  b.onDisconnect,
		OnLocalUpdate: b.onLocalUpdate,
		OnAwareness:   b.onAwareness,
	}, WithLogger(cfg.logger))
	return b, b.router
}

type backendConfig struct {
	logger       *slog.Logger
	providerOpts []provider.Option
}

// BackendOption configures a Backend at construction.
type BackendOption func(*backendConfig)

// WithBackendLogger overrides the backend's (and its manager's) logger.
func WithBackendLogger(l *slog.Logger) BackendOption {
	return func(c *backendConfig) { c.logger = l }
}

// WithBackendProviderOptions passes through provider.Option values (for
// example provider.WithTransport in tests) to every connection the
// backend establishes.
func WithBackendProviderOptions(opts ...provider.Option) BackendOption {
	return func(c *backendConfig) { c.providerOpts = append(c.providerOpts, opts...) }
}

// onConnect implements spec.md §4.6's `connect` message: construct the
// provider, install observers, and emit the initial remote-update if the
// remote collection is non-empty. Subscribing to the store before
// StartSync matters — Bridge.Start's initial reconciliation, when the
// remote collection is non-empty, replaces the local list via setElements
// synchronously before StartSync returns; subscribing first means
// onStoreChange already carries that bootstrap snapshot out as the
// initial remote-update, with no separate emission needed here.
func (b *Backend) onConnect(serverURL, roomName, authToken string, user awareness.Identity, syncDebounceMs int) error {
	cfg := provider.Config{
		ServerURL:      serverURL,
		RoomName:       roomName,
		AuthToken:      authToken,
		User:           user,
		SyncDebounceMs: syncDebounceMs,
	}
	if err := b.mgr.Connect(context.Background(), cfg); err != nil {
		return err
	}

	unsubStore := b.st.Subscribe(b.onStoreChange)
	unsubStatus := b.mgr.OnStatusChange(func(s provider.Status) {
		b.router.EmitStatus(string(s))
	})
	// Forward the status Connect already settled into before a subscriber
	// had a chance to attach, so the initial state is never silently missed.
	b.router.EmitStatus(string(b.mgr.Status()))

	b.mgr.StartSync(b.st, syncDebounceMs)

	if aw := b.mgr.Awareness(); aw != nil {
		ch, unsubAwareness := aw.Subscribe()
		go func() {
			for range ch {
				b.router.EmitPeers(b.mgr.RemoteAwareness())
			}
		}()
		b.mu.Lock()
		b.cancels = append(b.cancels, unsubAwareness)
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.cancels = append(b.cancels, unsubStore, unsubStatus)
	b.mu.Unlock()

	return nil
}

// onDisconnect implements spec.md §4.6's `disconnect` message: unsubscribe
// every observer installed on connect and dispose the manager.
func (b *Backend) onDisconnect() error {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	return b.mgr.Dispose()
}

// onLocalUpdate implements spec.md §4.6's `local-update` message: feed the
// elements into the local store as if the store itself had emitted them,
// which drives the bridge's local-to-remote half through its own store
// subscription. The store's own change notification to onStoreChange is
// suppressed for the duration since this write did not originate remotely.
func (b *Backend) onLocalUpdate(elements []element.Element) error {
	b.applyingLocal.Store(true)
	defer b.applyingLocal.Store(false)
	b.st.SetElements(elements)
	return nil
}

// onAwareness implements spec.md §4.6's `awareness` message: merge into
// local presence and broadcast it.
func (b *Backend) onAwareness(partial awareness.Partial) error {
	b.mgr.UpdateAwareness(partial)
	return nil
}

// onStoreChange is the local store's Listener. It forwards every change
// that did not originate from onLocalUpdate's own write — those already
// came from the caller and echoing them back would be redundant, not a
// peer update.
func (b *Backend) onStoreChange(current, _ []element.Element) {
	if b.applyingLocal.Load() {
		return
	}
	b.router.EmitRemoteUpdate(current)
}
