package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffOnlyChangedFields(t *testing.T) {
	e := Element{ID: "e1", Type: KindRectangle, X: 1, Y: 2, Width: 100, Height: 100, IsVisible: true}
	rec := Record{}
	Encode(e, rec)

	// No change: diff against its own encoding is empty.
	assert.Empty(t, Diff(e, rec))

	e2 := e
	e2.X = 5
	patch := Diff(e2, rec)
	assert.Equal(t, Record{"x": 5.0}, patch)
}

func TestDiffStructuralAtomComparesBySerializedValue(t *testing.T) {
	e := Element{ID: "l1", Type: KindLine, Points: []float64{0, 0, 1, 1}}
	rec := Record{}
	Encode(e, rec)

	// Same points, new slice instance: no diff (compares serialized form).
	e2 := e
	e2.Points = []float64{0, 0, 1, 1}
	assert.Empty(t, Diff(e2, rec))

	e3 := e
	e3.Points = []float64{0, 0, 2, 2}
	patch := Diff(e3, rec)
	assert.Contains(t, patch, "points")
}

func TestDiffCarriesFreedrawPressureChange(t *testing.T) {
	e := Element{ID: "f1", Type: KindFreedraw, Points: []float64{0, 0, 1, 1}, Pressures: []float64{0.5, 0.5}}
	rec := Record{}
	Encode(e, rec)
	assert.Empty(t, Diff(e, rec))

	e2 := e
	e2.Pressures = []float64{0.9, 0.9}
	patch := Diff(e2, rec)
	assert.Contains(t, patch, "pressures")
}

func TestDiffCarriesArrowheadsChange(t *testing.T) {
	e := Element{ID: "a1", Type: KindArrow, Points: []float64{0, 0, 1, 1}, Arrowheads: &Arrowheads{Start: "none", End: "arrow"}}
	rec := Record{}
	Encode(e, rec)
	assert.Empty(t, Diff(e, rec))

	e2 := e
	e2.Arrowheads = &Arrowheads{Start: "none", End: "triangle"}
	patch := Diff(e2, rec)
	assert.Contains(t, patch, "arrowheads")
}

func TestDiffIsIdempotentAfterApply(t *testing.T) {
	e := Element{ID: "e1", Type: KindRectangle, X: 1, Width: 100, Height: 100}
	rec := Record{}
	Encode(e, rec)

	e2 := e
	e2.X = 9
	patch := Diff(e2, rec)
	for k, v := range patch {
		rec[k] = v
	}
	assert.Empty(t, Diff(e2, rec))
}
