package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is the provider's session boundary, abstracted so tests can
// substitute a fake in place of a real WebSocket connection (grounded on
// the teacher's internal/network Transport interface, which does the same
// for its libp2p/webrtc sessions).
type Transport interface {
	Connect(ctx context.Context, rawURL string) error
	Send(frame []byte) error
	Close() error
}

// wsTransport is the default Transport: one gorilla/websocket connection,
// reconnectable via a fresh Connect call, with a background read loop
// delivering inbound frames to onFrame and status transitions to onStatus.
type wsTransport struct {
	dialer   *websocket.Dialer
	onFrame  func([]byte)
	onStatus func(Status)

	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSTransport(onFrame func([]byte), onStatus func(Status)) *wsTransport {
	return &wsTransport{
		dialer:   websocket.DefaultDialer,
		onFrame:  onFrame,
		onStatus: onStatus,
	}
}

func (t *wsTransport) Connect(ctx context.Context, rawURL string) error {
	t.onStatus(StatusConnecting)
	conn, _, err := t.dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		t.onStatus(StatusError)
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.onStatus(StatusConnected)
	go t.readLoop(conn)
	return nil
}

func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			t.onStatus(StatusDisconnected)
			return
		}
		t.onFrame(data)
	}
}

func (t *wsTransport) Send(frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("provider: transport not connected")
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
