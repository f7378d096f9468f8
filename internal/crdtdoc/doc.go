// Package crdtdoc implements the shared element collection of spec.md §3:
// a CRDT map id -> element-record where per-field writes resolve by
// last-writer-wins using a Lamport clock, and whole-entry add/remove is
// exposed as a top-level observer while per-field mutation is exposed as a
// deep observer — directly matching spec.md §4.3's two observer shapes.
package crdtdoc

import (
	"sort"
	"sync"

	"github.com/drawmesh/canvas-sync/internal/element"
)

// TxOrigin tags a batch of writes so observers can tell their own writes
// apart from peers'. spec.md §4.3 names "local-sync" and "local-init";
// remote writes arriving off the transport carry the empty origin.
type TxOrigin string

const (
	OriginLocalSync TxOrigin = "local-sync"
	OriginLocalInit TxOrigin = "local-init"
	OriginRemote    TxOrigin = ""
)

// EventKind discriminates a top-level observer notification.
type EventKind int

const (
	EventAdded EventKind = iota
	EventDeleted
)

// Event is one top-level (whole-entry) change.
type Event struct {
	ID   string
	Kind EventKind
}

type fieldState struct {
	value any
	ts    uint64
	peer  string
}

type entry struct {
	fields map[string]fieldState
}

func (e *entry) snapshot() element.Record {
	rec := make(element.Record, len(e.fields))
	for k, fs := range e.fields {
		rec[k] = fs.value
	}
	return rec
}

// ElementsCollection is the shared element collection (spec.md §3).
// Concurrent adds of distinct ids commute; concurrent updates of distinct
// fields commute; concurrent updates of the same field resolve by
// last-writer-wins using the Lamport order (ties broken by peer id,
// mirroring other_examples' hertz-board CRDTService.ResolveConflict).
type ElementsCollection struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   *LamportClock
	peerID  string

	topSubs  map[int]func(origin TxOrigin, events []Event)
	deepSubs map[int]func(origin TxOrigin, id string, fields []string)
	nextSub  int
}

// NewElementsCollection creates an empty collection scoped to peerID (used
// as the LWW tiebreaker and as the field-state's recorded writer).
func NewElementsCollection(peerID string) *ElementsCollection {
	return &ElementsCollection{
		entries:  make(map[string]*entry),
		clock:    NewLamportClock(),
		peerID:   peerID,
		topSubs:  make(map[int]func(TxOrigin, []Event)),
		deepSubs: make(map[int]func(TxOrigin, string, []string)),
	}
}

// Len reports the number of live entries.
func (c *ElementsCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IDs returns the ids currently present, in ascending lexicographic order.
func (c *ElementsCollection) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FieldSnapshot is one field's exported LWW metadata, used to relay a
// write from one collection to another across a transport boundary
// without losing the ordering information LWW resolution depends on.
type FieldSnapshot struct {
	Value any
	TS    uint64
	Peer  string
}

// ExportFields returns every field's current value and LWW metadata for
// id, for relaying to a peer collection. ok is false if id is absent.
func (c *ElementsCollection) ExportFields(id string) (map[string]FieldSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]FieldSnapshot, len(e.fields))
	for k, fs := range e.fields {
		out[k] = FieldSnapshot{Value: fs.value, TS: fs.ts, Peer: fs.peer}
	}
	return out, true
}

// Get returns a snapshot of one record, or nil if absent.
func (c *ElementsCollection) Get(id string) element.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	return e.snapshot()
}

// Snapshot returns a copy of every record, keyed by id.
func (c *ElementsCollection) Snapshot() map[string]element.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]element.Record, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.snapshot()
	}
	return out
}

// ObserveTopLevel registers a listener for whole-entry add/delete. The
// returned func unsubscribes.
func (c *ElementsCollection) ObserveTopLevel(fn func(origin TxOrigin, events []Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.topSubs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.topSubs, id)
		c.mu.Unlock()
	}
}

// ObserveDeep registers a listener for field-level mutation inside an
// existing record. The returned func unsubscribes.
func (c *ElementsCollection) ObserveDeep(fn func(origin TxOrigin, id string, fields []string)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.deepSubs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.deepSubs, id)
		c.mu.Unlock()
	}
}

// Txn accumulates operations for one Transact call.
type Txn struct {
	c       *ElementsCollection
	puts    map[string]element.Record
	deletes map[string]struct{}
	order   []string
}

// Put stages a full-record create or field patch for id. Calling Put for
// an id that does not yet exist creates it (fires Added); calling Put for
// an existing id merges patch fields under LWW (fires a Deep event for
// whatever actually changed).
func (t *Txn) Put(id string, patch element.Record) {
	if _, ok := t.puts[id]; !ok {
		t.order = append(t.order, id)
	}
	t.puts[id] = patch
	delete(t.deletes, id)
}

// Delete stages a whole-entry removal.
func (t *Txn) Delete(id string) {
	t.deletes[id] = struct{}{}
	delete(t.puts, id)
}

// Transact applies a batch of Put/Delete calls as one atomic unit, tagged
// with origin, and fires observers exactly once per affected id per kind —
// matching spec.md §4.3's "local writes ... grouped into one atomic CRDT
// transaction" ordering guarantee (§5).
func (c *ElementsCollection) Transact(origin TxOrigin, fn func(tx *Txn)) {
	tx := &Txn{c: c, puts: make(map[string]element.Record), deletes: make(map[string]struct{})}
	fn(tx)

	var added, deleted []Event
	deepChanges := make(map[string][]string)

	c.mu.Lock()
	for id := range tx.deletes {
		if _, ok := c.entries[id]; ok {
			delete(c.entries, id)
			deleted = append(deleted, Event{ID: id, Kind: EventDeleted})
		}
	}
	for _, id := range tx.order {
		patch := tx.puts[id]
		e, exists := c.entries[id]
		if !exists {
			e = &entry{fields: make(map[string]fieldState, len(patch))}
			c.entries[id] = e
			ts := c.clock.Tick()
			for k, v := range patch {
				e.fields[k] = fieldState{value: v, ts: ts, peer: c.peerID}
			}
			added = append(added, Event{ID: id, Kind: EventAdded})
			continue
		}
		ts := c.clock.Tick()
		var changed []string
		for k, v := range patch {
			cur, has := e.fields[k]
			if !has || lwwWins(ts, c.peerID, cur.ts, cur.peer) {
				if !has || cur.value != v {
					changed = append(changed, k)
				}
				e.fields[k] = fieldState{value: v, ts: ts, peer: c.peerID}
			}
		}
		if len(changed) > 0 {
			deepChanges[id] = append(deepChanges[id], changed...)
		}
	}
	topSubs := make([]func(TxOrigin, []Event), 0, len(c.topSubs))
	for _, fn := range c.topSubs {
		topSubs = append(topSubs, fn)
	}
	deepSubs := make([]func(TxOrigin, string, []string), 0, len(c.deepSubs))
	for _, fn := range c.deepSubs {
		deepSubs = append(deepSubs, fn)
	}
	c.mu.Unlock()

	events := append(added, deleted...)
	if len(events) > 0 {
		for _, fn := range topSubs {
			fn(origin, events)
		}
	}
	for id, fields := range deepChanges {
		for _, fn := range deepSubs {
			fn(origin, id, fields)
		}
	}
}

// ApplyRemoteField resolves one incoming field write under LWW, using the
// sender's Lamport timestamp and peer id as the tiebreaker (ties broken by
// the higher peer id, mirroring other_examples' CRDTService.ResolveConflict).
// It folds remoteTS into the local clock and fires the deep observer if the
// value actually changed. Used by a transport-facing provider to apply
// deltas received from peers; never invoked for local writes (those go
// through Transact, which stamps its own Lamport tick).
func (c *ElementsCollection) ApplyRemoteField(id, field string, value any, remoteTS uint64, remotePeer string) {
	c.mu.Lock()
	c.clock.Observe(remoteTS)
	e, exists := c.entries[id]
	if !exists {
		e = &entry{fields: make(map[string]fieldState)}
		c.entries[id] = e
	}
	cur, has := e.fields[field]
	changed := false
	isNewEntry := !exists
	if !has || lwwWins(remoteTS, remotePeer, cur.ts, cur.peer) {
		if !has || cur.value != value {
			changed = true
		}
		e.fields[field] = fieldState{value: value, ts: remoteTS, peer: remotePeer}
	}
	var topSubs []func(TxOrigin, []Event)
	var deepSubs []func(TxOrigin, string, []string)
	if isNewEntry || changed {
		for _, fn := range c.topSubs {
			topSubs = append(topSubs, fn)
		}
		for _, fn := range c.deepSubs {
			deepSubs = append(deepSubs, fn)
		}
	}
	c.mu.Unlock()

	if isNewEntry {
		for _, fn := range topSubs {
			fn(OriginRemote, []Event{{ID: id, Kind: EventAdded}})
		}
		return
	}
	if changed {
		for _, fn := range deepSubs {
			fn(OriginRemote, id, []string{field})
		}
	}
}

// DeleteRemote applies a remote whole-entry removal.
func (c *ElementsCollection) DeleteRemote(id string) {
	c.mu.Lock()
	_, existed := c.entries[id]
	if existed {
		delete(c.entries, id)
	}
	var topSubs []func(TxOrigin, []Event)
	if existed {
		for _, fn := range c.topSubs {
			topSubs = append(topSubs, fn)
		}
	}
	c.mu.Unlock()

	if existed {
		for _, fn := range topSubs {
			fn(OriginRemote, []Event{{ID: id, Kind: EventDeleted}})
		}
	}
}

// lwwWins reports whether a write at (ts, peer) should overwrite the
// current field state at (curTS, curPeer): strictly newer timestamp wins;
// on a tie, the lexicographically greater peer id wins, a deterministic
// tiebreak mirrored from other_examples' CRDTService.ResolveConflict.
func lwwWins(ts uint64, peer string, curTS uint64, curPeer string) bool {
	if ts != curTS {
		return ts > curTS
	}
	return peer > curPeer
}
