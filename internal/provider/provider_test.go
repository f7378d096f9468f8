package provider

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/crdtdoc"
	"github.com/drawmesh/canvas-sync/internal/wire"
)

type fakeTransport struct {
	mu         sync.Mutex
	connectURL string
	connectErr error
	sent       [][]byte
	closed     bool
}

func (f *fakeTransport) Connect(_ context.Context, rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectURL = rawURL
	return f.connectErr
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func testConfig() Config {
	return Config{ServerURL: "ws://relay.example/ws", RoomName: "room1", User: awareness.Identity{ID: "u1", Name: "Ada"}}
}

func TestBuildURLAppendsRoomAndToken(t *testing.T) {
	u, err := buildURL(Config{ServerURL: "ws://relay.example/ws", RoomName: "room1", AuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "ws://relay.example/ws/room1?token=tok", u)
}

func TestConnectDialsTransportAndSetsAwareness(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))
	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, "ws://relay.example/ws/room1", ft.connectURL)
	assert.Empty(t, p.Awareness().Local().SelectedIDs)
}

func TestLocalWriteRelaysFieldUpdatesOverTransport(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))

	p.Elements().Transact(crdtdoc.OriginLocalInit, func(tx *crdtdoc.Txn) {
		tx.Put("e1", map[string]any{"id": "e1", "type": "rectangle", "x": 1.0})
	})

	frames := ft.frames()
	require.Len(t, frames, 3)
	for _, raw := range frames {
		f, err := wire.Unmarshal(raw)
		require.NoError(t, err)
		assert.Equal(t, wire.FrameFieldUpdate, f.Type)
		assert.Equal(t, "e1", f.ID)
	}
}

func TestInboundFieldUpdateAppliesToDocument(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))

	val, err := wire.ValueFromNative(5.0)
	require.NoError(t, err)
	frame, err := wire.Marshal(wire.Frame{Type: wire.FrameFieldUpdate, ID: "e1", Field: "x", Value: val, TS: 1, Peer: "peerX"})
	require.NoError(t, err)

	p.handleFrame(frame)

	rec := p.Elements().Get("e1")
	require.NotNil(t, rec)
	assert.Equal(t, 5.0, rec["x"])
}

func TestInboundDeleteRemovesEntry(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))
	p.Elements().Transact(crdtdoc.OriginLocalInit, func(tx *crdtdoc.Txn) {
		tx.Put("e1", map[string]any{"id": "e1", "type": "rectangle"})
	})

	frame, err := wire.Marshal(wire.Frame{Type: wire.FrameDelete, ID: "e1"})
	require.NoError(t, err)
	p.handleFrame(frame)

	assert.Nil(t, p.Elements().Get("e1"))
}

func TestInboundAwarenessFrameUpdatesRemote(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))

	body, err := json.Marshal(awareness.State{User: awareness.Identity{ID: "peer1", Name: "Bob"}})
	require.NoError(t, err)
	frame, err := wire.Marshal(wire.Frame{
		Type:      wire.FrameAwareness,
		Awareness: &wire.AwarenessPayload{ClientID: "peer1", State: body},
	})
	require.NoError(t, err)

	p.handleFrame(frame)

	states := p.Awareness().RemoteStates()
	require.Contains(t, states, "peer1")
	assert.Equal(t, "Bob", states["peer1"].User.Name)
}

func TestInboundAwarenessDisconnectRemovesPeer(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))
	p.Awareness().SetRemote("peer1", awareness.State{User: awareness.Identity{ID: "peer1"}})

	frame, err := wire.Marshal(wire.Frame{
		Type:      wire.FrameAwareness,
		Awareness: &wire.AwarenessPayload{ClientID: "peer1", Disconnect: true},
	})
	require.NoError(t, err)
	p.handleFrame(frame)

	assert.Empty(t, p.Awareness().RemoteStates())
}

func TestDisposeClosesTransportAndClearsAwareness(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))
	require.NoError(t, p.Connect(context.Background()))
	p.UpdateAwareness(awareness.Partial{Cursor: &awareness.Point{X: 1, Y: 2}})
	require.NotNil(t, p.Awareness().Local().Cursor)

	require.NoError(t, p.Dispose())

	assert.True(t, ft.closed)
	assert.Nil(t, p.Awareness().Local().Cursor)
	assert.Equal(t, StatusDisconnected, p.Status())
}

func TestOnStatusChangeNotifiesAndUnsubscribes(t *testing.T) {
	ft := &fakeTransport{}
	p := New(testConfig(), WithTransport(ft))

	var seen []Status
	unsubscribe := p.OnStatusChange(func(s Status) { seen = append(seen, s) })

	p.setStatus(StatusConnecting)
	p.setStatus(StatusConnected)
	unsubscribe()
	p.setStatus(StatusError)

	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, seen)
}
