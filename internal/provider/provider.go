package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/crdtdoc"
	"github.com/drawmesh/canvas-sync/internal/wire"
)

// Option configures a Provider at construction.
type Option func(*Provider)

// WithTransport substitutes the default WebSocket transport, for tests.
func WithTransport(t Transport) Option {
	return func(p *Provider) { p.transport = t }
}

// WithLogger overrides the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithPeerID overrides the provider's Lamport/LWW peer identity, mostly
// for deterministic tests; production callers let New generate one.
func WithPeerID(id string) Option {
	return func(p *Provider) { p.peerID = id }
}

// Provider owns one CRDT document and one transport session keyed on
// (ServerURL, RoomName) (spec.md §4.4). Connect/Dispose are idempotent
// from the caller's perspective: Dispose always clears local awareness and
// closes the transport, Connect always re-establishes it.
type Provider struct {
	cfg    Config
	peerID string
	logger *slog.Logger

	docOnce sync.Once
	doc     *crdtdoc.ElementsCollection
	aw      *awareness.Awareness

	transport Transport

	status     atomic.Value // Status
	statusMu   sync.Mutex
	statusSubs map[int]func(Status)
	nextSub    int
}

// New constructs a Provider. It does not connect; call Connect.
func New(cfg Config, opts ...Option) *Provider {
	cfg = cfg.withDefaults()
	p := &Provider{
		cfg:        cfg,
		peerID:     uuid.NewString(),
		logger:     slog.Default(),
		statusSubs: make(map[int]func(Status)),
	}
	p.status.Store(StatusDisconnected)
	for _, o := range opts {
		o(p)
	}
	p.aw = awareness.New(p.peerID, cfg.User)
	if p.transport == nil {
		p.transport = newWSTransport(p.handleFrame, p.setStatus)
	}
	return p
}

// Elements lazily materializes the shared element collection and wires its
// local-origin writes out to the transport (spec.md §4.4 "lazily
// materialized ElementsCollection").
func (p *Provider) Elements() *crdtdoc.ElementsCollection {
	p.docOnce.Do(func() {
		p.doc = crdtdoc.NewElementsCollection(p.peerID)
		p.wireOutbound()
	})
	return p.doc
}

// GetDoc is an alias for Elements, matching spec.md §4.4's "getDoc"
// accessor naming.
func (p *Provider) GetDoc() *crdtdoc.ElementsCollection { return p.Elements() }

// GetElementsCollection is an alias for Elements.
func (p *Provider) GetElementsCollection() *crdtdoc.ElementsCollection { return p.Elements() }

// GetProvider returns p itself, matching spec.md §4.4's accessor of the
// same name (the JS original returns a distinct y-websocket provider
// object; here the Provider already is that object).
func (p *Provider) GetProvider() *Provider { return p }

// Awareness returns the provider's local/remote presence tracker.
func (p *Provider) Awareness() *awareness.Awareness { return p.aw }

// IsActive reports whether the transport is currently connected.
func (p *Provider) IsActive() bool { return p.Status() == StatusConnected }

// Status returns the current transport status.
func (p *Provider) Status() Status { return p.status.Load().(Status) }

// OnStatusChange registers a listener for transport status transitions.
// The returned func unsubscribes.
func (p *Provider) OnStatusChange(fn func(Status)) func() {
	p.statusMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.statusSubs[id] = fn
	p.statusMu.Unlock()
	return func() {
		p.statusMu.Lock()
		delete(p.statusSubs, id)
		p.statusMu.Unlock()
	}
}

// Connect dials the transport and sets initial local awareness. Safe to
// call again after Dispose to reconnect.
func (p *Provider) Connect(ctx context.Context) error {
	u, err := buildURL(p.cfg)
	if err != nil {
		p.setStatus(StatusError)
		return err
	}
	if err := p.transport.Connect(ctx, u); err != nil {
		return err
	}
	p.Elements() // ensure outbound wiring is installed before any local write
	p.aw.UpdateLocal(awareness.Partial{Cursor: nil, SelectedIDs: []string{}})
	return nil
}

// Dispose clears local awareness, closes the transport, and marks the
// provider disconnected. The document itself is left intact; callers drop
// the Provider to release it (spec.md's "destroy" has no Go analogue
// beyond letting the value become unreachable).
func (p *Provider) Dispose() error {
	p.aw.UpdateLocal(awareness.Partial{Cursor: nil, SelectedIDs: []string{}})
	err := p.transport.Close()
	p.setStatus(StatusDisconnected)
	return err
}

// UpdateAwareness updates local presence and broadcasts it to peers.
func (p *Provider) UpdateAwareness(partial awareness.Partial) {
	p.aw.UpdateLocal(partial)
	p.broadcastAwareness()
}

func buildURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + cfg.RoomName
	if cfg.AuthToken != "" {
		q := u.Query()
		q.Set("token", cfg.AuthToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// wireOutbound relays locally-originated CRDT writes and awareness changes
// to the transport. Installed once, the first time Elements() is called.
func (p *Provider) wireOutbound() {
	p.doc.ObserveTopLevel(func(origin crdtdoc.TxOrigin, events []crdtdoc.Event) {
		if origin != crdtdoc.OriginLocalSync && origin != crdtdoc.OriginLocalInit {
			return
		}
		for _, ev := range events {
			switch ev.Kind {
			case crdtdoc.EventAdded:
				p.sendAllFields(ev.ID)
			case crdtdoc.EventDeleted:
				p.sendDelete(ev.ID)
			}
		}
	})
	p.doc.ObserveDeep(func(origin crdtdoc.TxOrigin, id string, fields []string) {
		if origin != crdtdoc.OriginLocalSync && origin != crdtdoc.OriginLocalInit {
			return
		}
		snaps, ok := p.doc.ExportFields(id)
		if !ok {
			return
		}
		for _, f := range fields {
			p.sendFieldUpdate(id, f, snaps[f])
		}
	})
}

func (p *Provider) sendAllFields(id string) {
	snaps, ok := p.doc.ExportFields(id)
	if !ok {
		return
	}
	for f, snap := range snaps {
		p.sendFieldUpdate(id, f, snap)
	}
}

func (p *Provider) sendFieldUpdate(id, field string, snap crdtdoc.FieldSnapshot) {
	val, err := wire.ValueFromNative(snap.Value)
	if err != nil {
		p.logger.Warn("provider: cannot encode field for transport", "id", id, "field", field, "err", err)
		return
	}
	frame, err := wire.Marshal(wire.Frame{
		Type: wire.FrameFieldUpdate, ID: id, Field: field,
		Value: val, TS: snap.TS, Peer: snap.Peer,
	})
	if err != nil {
		p.logger.Warn("provider: cannot marshal frame", "err", err)
		return
	}
	if err := p.transport.Send(frame); err != nil {
		p.logger.Debug("provider: send failed", "err", err)
	}
}

func (p *Provider) sendDelete(id string) {
	frame, err := wire.Marshal(wire.Frame{Type: wire.FrameDelete, ID: id})
	if err != nil {
		return
	}
	if err := p.transport.Send(frame); err != nil {
		p.logger.Debug("provider: send failed", "err", err)
	}
}

func (p *Provider) broadcastAwareness() {
	st := p.aw.Local()
	body, err := json.Marshal(st)
	if err != nil {
		return
	}
	frame, err := wire.Marshal(wire.Frame{
		Type:      wire.FrameAwareness,
		Awareness: &wire.AwarenessPayload{ClientID: p.peerID, State: body},
	})
	if err != nil {
		return
	}
	if err := p.transport.Send(frame); err != nil {
		p.logger.Debug("provider: awareness send failed", "err", err)
	}
}

// handleFrame applies one inbound transport frame to the document or
// awareness. It never panics: malformed frames are logged and dropped.
func (p *Provider) handleFrame(data []byte) {
	f, err := wire.Unmarshal(data)
	if err != nil {
		p.logger.Warn("provider: malformed frame", "err", err)
		return
	}
	switch f.Type {
	case wire.FrameFieldUpdate:
		if f.Value == nil {
			return
		}
		p.Elements().ApplyRemoteField(f.ID, f.Field, wire.NativeFromValue(f.Value), f.TS, f.Peer)
	case wire.FrameDelete:
		p.Elements().DeleteRemote(f.ID)
	case wire.FrameAwareness:
		p.handleAwarenessFrame(f.Awareness)
	case wire.FrameHello:
		p.handleHello(f)
	}
}

func (p *Provider) handleHello(f wire.Frame) {
	if f.Record == nil || f.ID == "" {
		return
	}
	rec := wire.StructToRecord(f.Record)
	p.Elements().Transact(crdtdoc.OriginRemote, func(tx *crdtdoc.Txn) {
		tx.Put(f.ID, rec)
	})
}

func (p *Provider) handleAwarenessFrame(a *wire.AwarenessPayload) {
	if a == nil {
		return
	}
	if a.Disconnect {
		p.aw.RemoveRemote(a.ClientID)
		return
	}
	var st awareness.State
	if err := json.Unmarshal(a.State, &st); err != nil {
		p.logger.Warn("provider: malformed awareness state", "client", a.ClientID, "err", err)
		return
	}
	p.aw.SetRemote(a.ClientID, st)
}

func (p *Provider) setStatus(s Status) {
	p.status.Store(s)
	p.statusMu.Lock()
	subs := make([]func(Status), 0, len(p.statusSubs))
	for _, fn := range p.statusSubs {
		subs = append(subs, fn)
	}
	p.statusMu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}
