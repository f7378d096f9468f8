package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawmesh/canvas-sync/internal/element"
)

func TestMarshalUnmarshalRoundTripsFieldUpdate(t *testing.T) {
	val, err := ValueFromNative(5.0)
	require.NoError(t, err)

	data, err := Marshal(Frame{Type: FrameFieldUpdate, ID: "e1", Field: "x", Value: val, TS: 3, Peer: "p1"})
	require.NoError(t, err)

	f, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, FrameFieldUpdate, f.Type)
	assert.Equal(t, "e1", f.ID)
	assert.Equal(t, "x", f.Field)
	assert.Equal(t, uint64(3), f.TS)
	assert.Equal(t, "p1", f.Peer)
	assert.Equal(t, 5.0, NativeFromValue(f.Value))
}

func TestMarshalTagsSmallFramesRaw(t *testing.T) {
	data, err := Marshal(Frame{Type: FrameDelete, ID: "e1"})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, wireTagRaw, data[0])
}

func TestMarshalCompressesLargeFrames(t *testing.T) {
	rec, err := RecordToStruct(element.Record{"points": strings.Repeat("a", compressThreshold*2)})
	require.NoError(t, err)

	data, err := Marshal(Frame{Type: FrameHello, ID: "e1", Record: rec})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, wireTagDeflated, data[0])

	f, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, FrameHello, f.Type)
	got := StructToRecord(f.Record)
	assert.Equal(t, strings.Repeat("a", compressThreshold*2), got["points"])
}

func TestUnmarshalRejectsUnknownTag(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 1, 2, 3})
	assert.Error(t, err)
}

func TestUnmarshalRejectsEmptyFrame(t *testing.T) {
	_, err := Unmarshal(nil)
	assert.Error(t, err)
}

func TestRecordToStructAndBackRoundTrips(t *testing.T) {
	rec := element.Record{"id": "e1", "x": 4.5, "isLocked": true}
	s, err := RecordToStruct(rec)
	require.NoError(t, err)
	got := StructToRecord(s)
	assert.Equal(t, rec["id"], got["id"])
	assert.Equal(t, rec["x"], got["x"])
	assert.Equal(t, rec["isLocked"], got["isLocked"])
}

func TestStructToRecordHandlesNil(t *testing.T) {
	assert.Nil(t, StructToRecord(nil))
}

func TestNativeFromValueHandlesNil(t *testing.T) {
	assert.Nil(t, NativeFromValue(nil))
}

func TestValueFromNativeRejectsUnsupportedType(t *testing.T) {
	_, err := ValueFromNative(make(chan int))
	assert.Error(t, err)
}
