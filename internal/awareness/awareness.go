// Package awareness implements spec.md §4.5: ephemeral per-peer presence
// state (cursor, selection, active tool) with change notifications. The
// watcher-channel broadcast shape is grounded on other_examples'
// Eggwite-Tether presence.go PresenceStore: a buffered channel per
// subscriber, non-blocking send so a slow watcher never stalls a writer.
package awareness

import "sync"

// Identity is the stable, non-ephemeral part of a peer's presence.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Avatar string `json:"avatar,omitempty"`
}

// Point is a world-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the visible world-space window, used to draw peer minimaps
// or viewport outlines.
type Viewport struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// State is one peer's full ephemeral record (spec.md §3 "Awareness
// state"). Absence of a client's State from RemoteStates means
// disconnected — awareness is never persisted.
type State struct {
	User        Identity  `json:"user"`
	Cursor      *Point    `json:"cursor"`
	SelectedIDs []string  `json:"selectedIds"`
	ActiveTool  string    `json:"activeTool,omitempty"`
	Viewport    *Viewport `json:"viewport,omitempty"`
}

// Partial is a merge patch for UpdateLocal, mirroring the worker message
// protocol's `awareness {cursor, selectedIds?, activeTool?}` shape
// (spec.md §4.6). Cursor always replaces (nil clears it, matching "cursor
// world-space position or null"); SelectedIDs/ActiveTool only replace when
// non-nil/non-empty-pointer.
type Partial struct {
	Cursor      *Point
	SelectedIDs []string
	ActiveTool  *string
}

// Awareness holds the local peer's presence plus the last-known presence
// of every remote peer, and fans out change notifications to watchers.
type Awareness struct {
	mu     sync.RWMutex
	selfID string
	local  State
	remote map[string]State

	watchMu       sync.Mutex
	watchers      map[int]chan struct{}
	nextWatcherID int
}

// New creates an Awareness for the local peer identified by selfID/user.
func New(selfID string, user Identity) *Awareness {
	return &Awareness{
		selfID:   selfID,
		local:    State{User: user, SelectedIDs: []string{}},
		remote:   make(map[string]State),
		watchers: make(map[int]chan struct{}),
	}
}

// UpdateLocal merges p into the local awareness record and fires a change
// notification (spec.md §4.5).
func (a *Awareness) UpdateLocal(p Partial) {
	a.mu.Lock()
	a.local.Cursor = p.Cursor
	if p.SelectedIDs != nil {
		a.local.SelectedIDs = p.SelectedIDs
	}
	if p.ActiveTool != nil {
		a.local.ActiveTool = *p.ActiveTool
	}
	a.mu.Unlock()
	a.notify()
}

// Local returns a copy of the local peer's current state.
func (a *Awareness) Local() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.local
}

// SetRemote records (or replaces) a remote peer's state, called by the
// provider when a peer broadcasts an awareness update.
func (a *Awareness) SetRemote(clientID string, s State) {
	if clientID == a.selfIDSnapshot() {
		return
	}
	a.mu.Lock()
	a.remote[clientID] = s
	a.mu.Unlock()
	a.notify()
}

// RemoveRemote drops a peer's state, e.g. on disconnect.
func (a *Awareness) RemoveRemote(clientID string) {
	a.mu.Lock()
	_, existed := a.remote[clientID]
	delete(a.remote, clientID)
	a.mu.Unlock()
	if existed {
		a.notify()
	}
}

// RemoteStates returns every known remote peer's state, excluding the
// local client and any entry missing a user identity (spec.md §4.5).
func (a *Awareness) RemoteStates() map[string]State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]State, len(a.remote))
	for id, s := range a.remote {
		if id == a.selfID {
			continue
		}
		if s.User.ID == "" {
			continue
		}
		out[id] = s
	}
	return out
}

func (a *Awareness) selfIDSnapshot() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selfID
}

// Subscribe registers a watcher notified (non-blocking, coalesced) on any
// local or remote change. The returned func unsubscribes.
func (a *Awareness) Subscribe() (ch <-chan struct{}, unsubscribe func()) {
	a.watchMu.Lock()
	id := a.nextWatcherID
	a.nextWatcherID++
	c := make(chan struct{}, 1)
	a.watchers[id] = c
	a.watchMu.Unlock()

	return c, func() {
		a.watchMu.Lock()
		if existing, ok := a.watchers[id]; ok {
			delete(a.watchers, id)
			close(existing)
		}
		a.watchMu.Unlock()
	}
}

func (a *Awareness) notify() {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	for _, c := range a.watchers {
		select {
		case c <- struct{}{}:
		default:
			// Watcher already has a pending notification; drop to keep
			// the broadcaster non-blocking.
		}
	}
}
