// Package element defines the drawing-element data model and its
// flattened, field-granular wire representation.
package element

// SyncFields is the catalog of base element fields mirrored verbatim into
// every replicated record, regardless of variant. The incremental differ
// (Diff) iterates this slice; Encode and Decode write and read the same
// field names directly and do not read this slice.
var SyncFields = []string{
	"id", "type", "x", "y", "width", "height",
	"rotation", "isLocked", "isVisible", "sortOrder",
}

// StyleFields is the catalog of style sub-fields. Each is flattened onto the
// record as "style.<name>" so it resolves as an independent CRDT register.
var StyleFields = []string{
	"strokeColor", "fillColor", "strokeWidth", "opacity",
	"strokeStyle", "roughness", "fontSize", "fontFamily",
}

// structuralFields lists fields whose values are coarse-grained JSON atoms
// rather than independent scalar registers. They compare by serialized
// string equality in the incremental differ, never by reference.
var structuralFields = []string{
	"boundElements", "groupIds", "points", "crop", "startBinding", "endBinding",
	"pressures", "arrowheads",
}
