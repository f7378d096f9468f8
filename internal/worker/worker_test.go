package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/element"
)

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestRouterDispatchesConnectToHandler(t *testing.T) {
	var gotURL, gotRoom, gotToken string
	r := NewRouter(Handlers{
		OnConnect: func(serverURL, roomName, authToken string, user awareness.Identity, syncDebounceMs int) error {
			gotURL, gotRoom, gotToken = serverURL, roomName, authToken
			return nil
		},
	})
	defer r.Stop()

	r.Post(Message{Type: MsgConnect, ServerURL: "ws://x", RoomName: "room1", AuthToken: "tok"})
	r.EmitStatus("connected")
	m := recv(t, r.FromWorker)
	assert.Equal(t, MsgStatus, m.Type)
	assert.Equal(t, "connected", m.Status)
	assert.Equal(t, "ws://x", gotURL)
	assert.Equal(t, "room1", gotRoom)
	assert.Equal(t, "tok", gotToken)
}

func TestRouterConvertsHandlerErrorToErrorMessage(t *testing.T) {
	r := NewRouter(Handlers{
		OnLocalUpdate: func(elements []element.Element) error {
			return errors.New("boom")
		},
	})
	defer r.Stop()

	r.Post(Message{Type: MsgLocalUpdate})
	m := recv(t, r.FromWorker)
	require.Equal(t, MsgError, m.Type)
	assert.ErrorContains(t, m.Err, "boom")
}

func TestRouterRecoversHandlerPanic(t *testing.T) {
	r := NewRouter(Handlers{
		OnAwareness: func(partial awareness.Partial) error {
			panic("handler exploded")
		},
	})
	defer r.Stop()

	r.Post(Message{Type: MsgAwareness})
	m := recv(t, r.FromWorker)
	require.Equal(t, MsgError, m.Type)
	assert.ErrorContains(t, m.Err, "handler exploded")
}

func TestRouterUnknownMessageTypeIsIgnored(t *testing.T) {
	r := NewRouter(Handlers{})
	defer r.Stop()

	r.Post(Message{Type: "bogus"})
	r.EmitStatus("idle")
	m := recv(t, r.FromWorker)
	assert.Equal(t, MsgStatus, m.Type)
}

func TestStopClosesFromWorker(t *testing.T) {
	r := NewRouter(Handlers{})
	r.Stop()

	select {
	case _, ok := <-r.FromWorker:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("FromWorker was not closed")
	}
}
