// Package provider implements spec.md §4.4: one document plus one
// transport session keyed on (serverUrl, roomName), forwarding transport
// status and relaying local writes/awareness out over a WebSocket
// connection to the CRDT relay, grounded on the teacher's
// internal/network session-manager shape (one long-lived connection per
// peer, status callbacks, reconnect-on-Connect re-entry) adapted from
// libp2p host sessions to a single gorilla/websocket connection.
package provider

import (
	"time"

	"github.com/drawmesh/canvas-sync/internal/awareness"
)

// Config is the provider's connection configuration (spec.md §4.4/§6).
type Config struct {
	ServerURL string
	RoomName  string
	User      awareness.Identity
	AuthToken string

	SyncDebounceMs      int
	AwarenessThrottleMs int
}

const (
	defaultSyncDebounceMs      = 50
	defaultAwarenessThrottleMs = 100
)

func (c Config) withDefaults() Config {
	if c.SyncDebounceMs <= 0 {
		c.SyncDebounceMs = defaultSyncDebounceMs
	}
	if c.AwarenessThrottleMs <= 0 {
		c.AwarenessThrottleMs = defaultAwarenessThrottleMs
	}
	return c
}

func (c Config) syncDebounce() time.Duration {
	return time.Duration(c.SyncDebounceMs) * time.Millisecond
}

func (c Config) awarenessThrottle() time.Duration {
	return time.Duration(c.AwarenessThrottleMs) * time.Millisecond
}
