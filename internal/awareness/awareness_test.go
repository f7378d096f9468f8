package awareness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateLocalMergesPartial(t *testing.T) {
	a := New("self", Identity{ID: "self", Name: "Ada"})
	tool := "rectangle"
	a.UpdateLocal(Partial{Cursor: &Point{X: 1, Y: 2}, ActiveTool: &tool})

	local := a.Local()
	require.NotNil(t, local.Cursor)
	assert.Equal(t, 1.0, local.Cursor.X)
	assert.Equal(t, "rectangle", local.ActiveTool)

	// A subsequent update without Cursor clears it (cursor always replaces).
	a.UpdateLocal(Partial{SelectedIDs: []string{"e1"}})
	local = a.Local()
	assert.Nil(t, local.Cursor)
	assert.Equal(t, []string{"e1"}, local.SelectedIDs)
}

func TestRemoteStatesExcludesSelfAndMissingUser(t *testing.T) {
	a := New("self", Identity{ID: "self", Name: "Ada"})
	a.SetRemote("self", State{User: Identity{ID: "self"}})
	a.SetRemote("peer1", State{User: Identity{ID: "peer1", Name: "Bob"}})
	a.SetRemote("peer2", State{})

	states := a.RemoteStates()
	assert.Len(t, states, 1)
	_, ok := states["peer1"]
	assert.True(t, ok)
}

func TestRemoveRemoteDropsPeer(t *testing.T) {
	a := New("self", Identity{ID: "self"})
	a.SetRemote("peer1", State{User: Identity{ID: "peer1", Name: "Bob"}})
	require.Len(t, a.RemoteStates(), 1)

	a.RemoveRemote("peer1")
	assert.Empty(t, a.RemoteStates())
}

func TestSubscribeNotifiesNonBlockingly(t *testing.T) {
	a := New("self", Identity{ID: "self"})
	ch, unsubscribe := a.Subscribe()
	defer unsubscribe()

	a.SetRemote("peer1", State{User: Identity{ID: "peer1", Name: "Bob"}})
	select {
	case <-ch:
	default:
		t.Fatal("expected a notification")
	}

	// Multiple changes before the watcher drains should coalesce, not block.
	a.SetRemote("peer1", State{User: Identity{ID: "peer1", Name: "Bob2"}})
	a.SetRemote("peer1", State{User: Identity{ID: "peer1", Name: "Bob3"}})
}
