// Package worker implements spec.md §4.6: the message protocol that would
// cross a JS Worker's postMessage boundary, re-expressed as Go's natural
// analogue — a goroutine plus a pair of channels — rather than a second OS
// thread sharing memory. Channel-set shape (separate typed channels per
// direction, buffered; Stop closes FromWorker and leaves ToWorker open) is
// grounded on the teacher's
// kernel/threads/supervisor ChannelSet; panic recovery at the router is
// grounded on sab_bridge.go's "a bridge goroutine must never take the
// whole process down with it" policy.
package worker

import (
	"fmt"
	"log/slog"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/element"
)

// MessageType discriminates the small tagged union crossing the worker
// boundary in either direction (spec.md §4.6).
type MessageType string

const (
	// Inbound (to the worker).
	MsgConnect     MessageType = "connect"
	MsgDisconnect  MessageType = "disconnect"
	MsgLocalUpdate MessageType = "local-update"
	MsgAwareness   MessageType = "awareness"

	// Outbound (from the worker).
	MsgStatus       MessageType = "status"
	MsgRemoteUpdate MessageType = "remote-update"
	MsgPeers        MessageType = "peers"
	MsgError        MessageType = "error"
)

// Message is the worker protocol's single envelope type. Only the fields
// relevant to Type are populated; the rest are zero.
type Message struct {
	Type MessageType

	// MsgConnect
	ServerURL      string
	RoomName       string
	AuthToken      string
	User           awareness.Identity
	SyncDebounceMs int

	// MsgLocalUpdate
	Elements []element.Element

	// MsgAwareness
	AwarenessPartial awareness.Partial

	// MsgStatus
	Status string

	// MsgRemoteUpdate
	RemoteElements []element.Element

	// MsgPeers
	Peers map[string]awareness.State

	// MsgError
	Err error
}

// Router is the worker-side dispatcher: a background goroutine reads from
// ToWorker and writes results/events to FromWorker. It owns no transport
// itself — Handlers supplies the behavior for each inbound message type,
// keeping Router a pure dispatch/recovery shell (spec.md §7: "a worker
// must never crash the host; panics are caught and reported").
type Router struct {
	ToWorker   chan Message
	FromWorker chan Message

	logger   *slog.Logger
	handlers Handlers
	done     chan struct{}
}

// Handlers supplies the behavior invoked for each inbound message type. A
// nil handler for a given type is a no-op.
type Handlers struct {
	OnConnect     func(serverURL, roomName, authToken string, user awareness.Identity, syncDebounceMs int) error
	OnDisconnect  func() error
	OnLocalUpdate func(elements []element.Element) error
	OnAwareness   func(partial awareness.Partial) error
}

// Option configures a Router at construction.
type Option func(*Router)

// WithLogger overrides the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithBufferSize overrides the default channel buffer size (16).
func WithBufferSize(n int) Option {
	return func(r *Router) {
		r.ToWorker = make(chan Message, n)
		r.FromWorker = make(chan Message, n)
	}
}

const defaultBufferSize = 16

// NewRouter constructs a Router and starts its dispatch goroutine. Call
// Stop to terminate it and close FromWorker.
func NewRouter(h Handlers, opts ...Option) *Router {
	r := &Router{
		ToWorker:   make(chan Message, defaultBufferSize),
		FromWorker: make(chan Message, defaultBufferSize),
		logger:     slog.Default(),
		handlers:   h,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	go r.run()
	return r
}

// Post enqueues an inbound message. It does not block the caller beyond
// the channel's buffer capacity.
func (r *Router) Post(m Message) {
	r.ToWorker <- m
}

// Stop terminates the dispatch goroutine and closes FromWorker. Post must
// not be called after Stop.
func (r *Router) Stop() {
	close(r.done)
}

func (r *Router) run() {
	defer close(r.FromWorker)
	for {
		select {
		case <-r.done:
			return
		case m := <-r.ToWorker:
			r.dispatch(m)
		}
	}
}

// dispatch recovers any panic from a handler and converts it to an
// outbound error message rather than propagating it — the router's
// central contract (spec.md §4.6/§7).
func (r *Router) dispatch(m Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.emitError(fmt.Errorf("worker: handler panic for %q: %v", m.Type, rec))
		}
	}()

	var err error
	switch m.Type {
	case MsgConnect:
		if r.handlers.OnConnect != nil {
			err = r.handlers.OnConnect(m.ServerURL, m.RoomName, m.AuthToken, m.User, m.SyncDebounceMs)
		}
	case MsgDisconnect:
		if r.handlers.OnDisconnect != nil {
			err = r.handlers.OnDisconnect()
		}
	case MsgLocalUpdate:
		if r.handlers.OnLocalUpdate != nil {
			err = r.handlers.OnLocalUpdate(m.Elements)
		}
	case MsgAwareness:
		if r.handlers.OnAwareness != nil {
			err = r.handlers.OnAwareness(m.AwarenessPartial)
		}
	default:
		r.logger.Warn("worker: unknown inbound message type", "type", m.Type)
		return
	}
	if err != nil {
		r.emitError(err)
	}
}

func (r *Router) emitError(err error) {
	r.logger.Warn("worker: handler error", "err", err)
	select {
	case r.FromWorker <- Message{Type: MsgError, Err: err}:
	default:
		r.logger.Warn("worker: FromWorker full, dropping error message", "err", err)
	}
}

// EmitStatus sends a MsgStatus, non-blocking.
func (r *Router) EmitStatus(status string) {
	r.emit(Message{Type: MsgStatus, Status: status})
}

// EmitRemoteUpdate sends a MsgRemoteUpdate, non-blocking.
func (r *Router) EmitRemoteUpdate(elements []element.Element) {
	r.emit(Message{Type: MsgRemoteUpdate, RemoteElements: elements})
}

// EmitPeers sends a MsgPeers, non-blocking.
func (r *Router) EmitPeers(peers map[string]awareness.State) {
	r.emit(Message{Type: MsgPeers, Peers: peers})
}

func (r *Router) emit(m Message) {
	select {
	case r.FromWorker <- m:
	default:
		r.logger.Warn("worker: FromWorker full, dropping message", "type", m.Type)
	}
}
