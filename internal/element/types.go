package element

// Kind discriminates the element variants listed in spec.md §3.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindDiamond   Kind = "diamond"
	KindLine      Kind = "line"
	KindArrow     Kind = "arrow"
	KindFreedraw  Kind = "freedraw"
	KindText      Kind = "text"
	KindImage     Kind = "image"
)

// Style holds the style sub-record. Every field flattens onto the
// replicated record as "style.<name>" (see StyleFields).
type Style struct {
	StrokeColor string  `json:"strokeColor,omitempty"`
	FillColor   string  `json:"fillColor,omitempty"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
	StrokeStyle string  `json:"strokeStyle,omitempty"`
	Roughness   float64 `json:"roughness"`
	FontSize    float64 `json:"fontSize,omitempty"`
	FontFamily  string  `json:"fontFamily,omitempty"`
}

// BoundElementRef is one entry of an element's boundElements list.
type BoundElementRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Binding anchors a connector endpoint to another element.
type Binding struct {
	ElementID string  `json:"elementId"`
	Focus     float64 `json:"focus"`
	Gap       float64 `json:"gap"`
}

// Arrowheads names the decoration at each end of an arrow.
type Arrowheads struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Crop describes an image crop rectangle, element-local.
type Crop struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a drawing primitive. Common fields apply to every variant;
// the remaining fields are populated conditionally on Type, matching
// spec.md §3's variant list. It never changes shape across its lifetime:
// the zero value of an unused variant field simply stays unset.
type Element struct {
	ID        string `json:"id"`
	Type      Kind   `json:"type"`
	X         float64
	Y         float64
	Width     float64
	Height    float64
	Rotation  float64
	IsLocked  bool
	IsVisible bool
	// SortOrder is a fractional total-order key. Nil means "tail" per
	// spec.md §3; sortOrder is absent, not zero.
	SortOrder *string

	Style Style

	GroupIDs []string
	// BoundElements is nil when unset and non-nil-but-empty when the
	// contract calls for "present but empty" (spec.md §4.1).
	BoundElements *[]BoundElementRef

	// Rectangle
	CornerRadius *float64

	// Line / Arrow
	Points       []float64
	LineType     string
	Curvature    *float64
	StartBinding *Binding
	EndBinding   *Binding
	Arrowheads   *Arrowheads

	// Freedraw
	Pressures  []float64
	IsComplete *bool

	// Text
	Text          string
	ContainerID   *string
	TextAlign     string
	VerticalAlign string

	// Image
	Src           string
	NaturalWidth  float64
	NaturalHeight float64
	ScaleMode     string
	Crop          *Crop
	Alt           string
}

// Clone returns a deep copy so callers can hold onto an Element across a
// store replacement without aliasing slices/pointers with the original.
func (e Element) Clone() Element {
	c := e
	if e.SortOrder != nil {
		v := *e.SortOrder
		c.SortOrder = &v
	}
	if e.GroupIDs != nil {
		c.GroupIDs = append([]string(nil), e.GroupIDs...)
	}
	if e.BoundElements != nil {
		b := append([]BoundElementRef(nil), (*e.BoundElements)...)
		c.BoundElements = &b
	}
	if e.CornerRadius != nil {
		v := *e.CornerRadius
		c.CornerRadius = &v
	}
	if e.Points != nil {
		c.Points = append([]float64(nil), e.Points...)
	}
	if e.Curvature != nil {
		v := *e.Curvature
		c.Curvature = &v
	}
	if e.StartBinding != nil {
		b := *e.StartBinding
		c.StartBinding = &b
	}
	if e.EndBinding != nil {
		b := *e.EndBinding
		c.EndBinding = &b
	}
	if e.Arrowheads != nil {
		a := *e.Arrowheads
		c.Arrowheads = &a
	}
	if e.Pressures != nil {
		c.Pressures = append([]float64(nil), e.Pressures...)
	}
	if e.IsComplete != nil {
		v := *e.IsComplete
		c.IsComplete = &v
	}
	if e.ContainerID != nil {
		v := *e.ContainerID
		c.ContainerID = &v
	}
	if e.Crop != nil {
		cr := *e.Crop
		c.Crop = &cr
	}
	return c
}
