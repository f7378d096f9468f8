package collab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/element"
	"github.com/drawmesh/canvas-sync/internal/provider"
	"github.com/drawmesh/canvas-sync/internal/store"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeTransport) Connect(context.Context, string) error { return nil }

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testConfig() provider.Config {
	return provider.Config{
		ServerURL: "ws://relay.example/ws",
		RoomName:  "room1",
		User:      awareness.Identity{ID: "u1", Name: "Ada"},
	}
}

func TestStartSyncBeforeConnectIsNoOp(t *testing.T) {
	m := New()
	m.StartSync(store.NewMemoryStore(), 50)
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Nil(t, m.bridge)
}

func TestConnectThenStartSyncRelaysLocalElements(t *testing.T) {
	ft := &fakeTransport{}
	m := New(WithProviderOptions(provider.WithTransport(ft)))
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	s := store.NewMemoryStore()
	m.StartSync(s, 10)
	s.SetElements([]element.Element{{ID: "e1", Type: element.KindRectangle, Width: 10, Height: 10}})

	require.Eventually(t, func() bool { return ft.count() > 0 }, time.Second, time.Millisecond)
}

func TestUpdateAwarenessBeforeConnectIsNoOp(t *testing.T) {
	m := New()
	assert.NotPanics(t, func() {
		m.UpdateAwareness(awareness.Partial{Cursor: &awareness.Point{X: 1, Y: 2}})
	})
}

func TestRemoteAwarenessBeforeConnectReturnsNil(t *testing.T) {
	m := New()
	assert.Nil(t, m.RemoteAwareness())
}

func TestOnStatusChangeBeforeConnectReturnsNoOpUnsubscribe(t *testing.T) {
	m := New()
	unsub := m.OnStatusChange(func(provider.Status) {})
	assert.NotPanics(t, unsub)
}

func TestDisposeWithoutConnectIsSafe(t *testing.T) {
	m := New()
	assert.NoError(t, m.Dispose())
}

func TestStopSyncDetachesBridge(t *testing.T) {
	ft := &fakeTransport{}
	m := New(WithProviderOptions(provider.WithTransport(ft)))
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	m.StartSync(store.NewMemoryStore(), 10)
	m.mu.Lock()
	require.NotNil(t, m.bridge)
	m.mu.Unlock()

	m.StopSync()
	m.mu.Lock()
	assert.Nil(t, m.bridge)
	m.mu.Unlock()
}

func TestDisposeStopsSyncAndClosesProvider(t *testing.T) {
	ft := &fakeTransport{}
	m := New(WithProviderOptions(provider.WithTransport(ft)))
	require.NoError(t, m.Connect(context.Background(), testConfig()))
	m.StartSync(store.NewMemoryStore(), 10)

	require.NoError(t, m.Dispose())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Nil(t, m.bridge)
	assert.Nil(t, m.provider)
}

func TestConnectTwiceDisposesPreviousProvider(t *testing.T) {
	ft1 := &fakeTransport{}
	m := New(WithProviderOptions(provider.WithTransport(ft1)))
	require.NoError(t, m.Connect(context.Background(), testConfig()))
	first := m.provider

	ft2 := &fakeTransport{}
	m.providerOpts = []provider.Option{provider.WithTransport(ft2)}
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	assert.Equal(t, provider.StatusDisconnected, first.Status())
	assert.NotSame(t, first, m.provider)
}
