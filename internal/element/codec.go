package element

import (
	"encoding/json"
)

// Record is one element's flattened replicated record: a map of scalar
// field names to scalar values (string, float64, bool, or nil). Structural
// atoms (points, bindings, groupIds, boundElements, crop, pressures,
// arrowheads) are stored as JSON-encoded string scalars, per spec.md
// §3/§4.1. Record is the shape crdtdoc.ElementsCollection stores per id,
// field-by-field, each field an independent last-writer-wins register.
type Record map[string]any

// Clone returns a shallow copy (field values are themselves immutable
// scalars, so shallow is sufficient).
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Encode writes every known field of e into rec, flattening style.* and
// serializing structural atoms as JSON scalars. Optional fields that are
// unset are left untouched in rec (meaning: do not set) except where the
// contract calls for an explicit "present but empty" null, matching
// spec.md §4.1.
func Encode(e Element, rec Record) {
	rec["id"] = e.ID
	rec["type"] = string(e.Type)
	rec["x"] = e.X
	rec["y"] = e.Y
	rec["width"] = e.Width
	rec["height"] = e.Height
	rec["rotation"] = e.Rotation
	rec["isLocked"] = e.IsLocked
	rec["isVisible"] = e.IsVisible
	if e.SortOrder != nil {
		rec["sortOrder"] = *e.SortOrder
	}

	rec["style.strokeColor"] = e.Style.StrokeColor
	rec["style.fillColor"] = e.Style.FillColor
	rec["style.strokeWidth"] = e.Style.StrokeWidth
	rec["style.opacity"] = e.Style.Opacity
	rec["style.strokeStyle"] = e.Style.StrokeStyle
	rec["style.roughness"] = e.Style.Roughness
	rec["style.fontSize"] = e.Style.FontSize
	rec["style.fontFamily"] = e.Style.FontFamily

	if e.GroupIDs != nil {
		rec["groupIds"] = mustJSON(e.GroupIDs)
	}
	if e.BoundElements != nil {
		// "present but empty" contract: always set once non-nil, even if
		// the slice itself has zero elements.
		rec["boundElements"] = mustJSON(*e.BoundElements)
	}

	switch e.Type {
	case KindRectangle:
		if e.CornerRadius != nil {
			rec["cornerRadius"] = *e.CornerRadius
		}
	case KindLine, KindArrow:
		rec["points"] = mustJSON(e.Points)
		rec["lineType"] = e.LineType
		if e.Curvature != nil {
			rec["curvature"] = *e.Curvature
		}
		if e.StartBinding != nil {
			rec["startBinding"] = mustJSON(e.StartBinding)
		}
		if e.EndBinding != nil {
			rec["endBinding"] = mustJSON(e.EndBinding)
		}
		if e.Type == KindArrow && e.Arrowheads != nil {
			rec["arrowheads"] = mustJSON(e.Arrowheads)
		}
	case KindFreedraw:
		rec["points"] = mustJSON(e.Points)
		if e.Pressures != nil {
			rec["pressures"] = mustJSON(e.Pressures)
		}
		if e.IsComplete != nil {
			rec["isComplete"] = *e.IsComplete
		}
	case KindText:
		rec["text"] = e.Text
		if e.ContainerID != nil {
			rec["containerId"] = *e.ContainerID
		}
		rec["textAlign"] = e.TextAlign
		rec["verticalAlign"] = e.VerticalAlign
	case KindImage:
		rec["src"] = e.Src
		rec["naturalWidth"] = e.NaturalWidth
		rec["naturalHeight"] = e.NaturalHeight
		rec["scaleMode"] = e.ScaleMode
		if e.Crop != nil {
			rec["crop"] = mustJSON(e.Crop)
		}
		rec["alt"] = e.Alt
	}
}

// Decode reconstructs an Element from rec. It rejects (returns nil) only
// when the type/id anchors are missing; every other field defaults
// sensibly and parsing of structural atoms is total — a malformed JSON
// scalar yields a nil field, never an error, per spec.md §4.1/§7.
func Decode(rec Record) *Element {
	id, _ := rec["id"].(string)
	typ, _ := rec["type"].(string)
	if id == "" || typ == "" {
		return nil
	}

	e := &Element{ID: id, Type: Kind(typ)}
	e.X = asFloat(rec["x"])
	e.Y = asFloat(rec["y"])
	e.Width = asFloatDefault(rec["width"], 100)
	e.Height = asFloatDefault(rec["height"], 100)
	e.Rotation = asFloat(rec["rotation"])
	e.IsLocked = asBoolDefault(rec["isLocked"], false)
	e.IsVisible = asBoolDefault(rec["isVisible"], true)
	if so, ok := rec["sortOrder"].(string); ok && so != "" {
		v := so
		e.SortOrder = &v
	}

	e.Style = Style{
		StrokeColor: asString(rec["style.strokeColor"]),
		FillColor:   asString(rec["style.fillColor"]),
		StrokeWidth: asFloat(rec["style.strokeWidth"]),
		Opacity:     asFloatDefault(rec["style.opacity"], 1),
		StrokeStyle: asString(rec["style.strokeStyle"]),
		Roughness:   asFloat(rec["style.roughness"]),
		FontSize:    asFloat(rec["style.fontSize"]),
		FontFamily:  asString(rec["style.fontFamily"]),
	}

	if raw, ok := rec["groupIds"].(string); ok {
		var ids []string
		if tryJSON(raw, &ids) {
			e.GroupIDs = ids
		}
	}
	if raw, ok := rec["boundElements"].(string); ok {
		var refs []BoundElementRef
		if tryJSON(raw, &refs) {
			e.BoundElements = &refs
		}
	}

	switch e.Type {
	case KindRectangle:
		if v, ok := rec["cornerRadius"]; ok {
			f := asFloat(v)
			e.CornerRadius = &f
		}
	case KindLine, KindArrow:
		e.Points = decodePoints(rec["points"])
		e.LineType = asString(rec["lineType"])
		if v, ok := rec["curvature"]; ok {
			f := asFloat(v)
			e.Curvature = &f
		}
		if raw, ok := rec["startBinding"].(string); ok {
			var b Binding
			if tryJSON(raw, &b) {
				e.StartBinding = &b
			}
		}
		if raw, ok := rec["endBinding"].(string); ok {
			var b Binding
			if tryJSON(raw, &b) {
				e.EndBinding = &b
			}
		}
		if e.Type == KindArrow {
			if raw, ok := rec["arrowheads"].(string); ok {
				var a Arrowheads
				if tryJSON(raw, &a) {
					e.Arrowheads = &a
				}
			}
		}
	case KindFreedraw:
		e.Points = decodePoints(rec["points"])
		if raw, ok := rec["pressures"].(string); ok {
			var p []float64
			if tryJSON(raw, &p) {
				e.Pressures = p
			}
		}
		if v, ok := rec["isComplete"]; ok {
			b := asBoolDefault(v, false)
			e.IsComplete = &b
		}
	case KindText:
		e.Text = asString(rec["text"])
		if v, ok := rec["containerId"].(string); ok && v != "" {
			e.ContainerID = &v
		}
		e.TextAlign = asString(rec["textAlign"])
		e.VerticalAlign = asString(rec["verticalAlign"])
	case KindImage:
		e.Src = asString(rec["src"])
		e.NaturalWidth = asFloat(rec["naturalWidth"])
		e.NaturalHeight = asFloat(rec["naturalHeight"])
		e.ScaleMode = asString(rec["scaleMode"])
		if raw, ok := rec["crop"].(string); ok {
			var c Crop
			if tryJSON(raw, &c) {
				e.Crop = &c
			}
		}
		e.Alt = asString(rec["alt"])
	}

	return e
}

func decodePoints(v any) []float64 {
	raw, ok := v.(string)
	if !ok {
		return nil
	}
	var pts []float64
	if !tryJSON(raw, &pts) {
		return nil
	}
	return pts
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// tryJSON parses raw into dst, never panicking; a parse error leaves dst
// untouched and reports false.
func tryJSON(raw string, dst any) bool {
	if raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), dst) == nil
}

func asFloat(v any) float64 {
	return asFloatDefault(v, 0)
}

func asFloatDefault(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	default:
		return def
	}
}

func asBoolDefault(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
