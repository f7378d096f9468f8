package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sort := "a0"
	e := Element{
		ID:        "e1",
		Type:      KindRectangle,
		X:         10,
		Y:         20,
		Width:     100,
		Height:    50,
		Rotation:  0,
		IsLocked:  false,
		IsVisible: true,
		SortOrder: &sort,
		Style: Style{
			FillColor:   "#f00",
			StrokeWidth: 2,
			Opacity:     1,
		},
		CornerRadius: floatPtr(4),
	}

	rec := Record{}
	Encode(e, rec)
	got := Decode(rec)
	require.NotNil(t, got)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.X, got.X)
	assert.Equal(t, e.Width, got.Width)
	assert.Equal(t, e.Style.FillColor, got.Style.FillColor)
	require.NotNil(t, got.SortOrder)
	assert.Equal(t, sort, *got.SortOrder)
	require.NotNil(t, got.CornerRadius)
	assert.Equal(t, 4.0, *got.CornerRadius)
}

func TestDecodeRejectsMissingAnchors(t *testing.T) {
	assert.Nil(t, Decode(Record{"type": "rectangle"}))
	assert.Nil(t, Decode(Record{"id": "e1"}))
	assert.Nil(t, Decode(Record{}))
}

func TestDecodeDefaults(t *testing.T) {
	rec := Record{"id": "e1", "type": "rectangle"}
	got := Decode(rec)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, got.Rotation)
	assert.False(t, got.IsLocked)
	assert.True(t, got.IsVisible)
	assert.Equal(t, 100.0, got.Width)
	assert.Equal(t, 100.0, got.Height)
	assert.Nil(t, got.SortOrder)
}

func TestDecodeMalformedStructuralAtomYieldsNilFieldNotError(t *testing.T) {
	rec := Record{
		"id":     "e1",
		"type":   "line",
		"points": "{not valid json",
	}
	got := Decode(rec)
	require.NotNil(t, got)
	assert.Nil(t, got.Points)
}

func TestEncodeFreedrawIncomplete(t *testing.T) {
	incomplete := false
	e := Element{
		ID:         "fd1",
		Type:       KindFreedraw,
		Points:     []float64{0, 0, 10, 10},
		Pressures:  []float64{0.5, 0.8},
		IsComplete: &incomplete,
	}
	rec := Record{}
	Encode(e, rec)
	got := Decode(rec)
	require.NotNil(t, got)
	assert.Equal(t, e.Points, got.Points)
	assert.Equal(t, e.Pressures, got.Pressures)
	require.NotNil(t, got.IsComplete)
	assert.False(t, *got.IsComplete)
}

func TestEncodeBoundElementsPresentButEmpty(t *testing.T) {
	empty := []BoundElementRef{}
	e := Element{ID: "e1", Type: KindRectangle, BoundElements: &empty}
	rec := Record{}
	Encode(e, rec)
	_, ok := rec["boundElements"]
	assert.True(t, ok, "boundElements must be set even when empty")

	got := Decode(rec)
	require.NotNil(t, got)
	require.NotNil(t, got.BoundElements)
	assert.Empty(t, *got.BoundElements)
}

func floatPtr(f float64) *float64 { return &f }
