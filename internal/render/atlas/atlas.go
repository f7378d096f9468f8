package atlas

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
)

// RasterFunc renders one element to an offscreen bitmap, supplied by the
// caller (spec.md §4.8's "rasterFn(element) -> bitmap").
type RasterFunc func() (*image.RGBA, error)

// UploadFunc pushes a just-rasterized sub-rectangle of the CPU-side buffer
// to the GPU texture. internal/render/gl wires this to
// gl.TexSubImage2D; left nil in headless/test environments.
type UploadFunc func(x, y int, img *image.RGBA)

// DefaultSize is the atlas's default square texture dimension (spec.md
// §4.8: "fixed size, implementation choice; e.g. 2048^2").
const DefaultSize = 2048

// Atlas is a single fixed-size RGBA texture plus a shelf packer and an
// id -> Entry map (spec.md §4.8).
type Atlas struct {
	mu       sync.Mutex
	size     int
	buf      *image.RGBA
	packer   *shelfPacker
	entries  map[string]Entry
	uploader UploadFunc

	resets        uint64
	rasterizations uint64
}

// New creates an empty atlas of the given square size (DefaultSize if 0).
func New(size int) *Atlas {
	if size <= 0 {
		size = DefaultSize
	}
	return &Atlas{
		size:    size,
		buf:     image.NewRGBA(image.Rect(0, 0, size, size)),
		packer:  newShelfPacker(size),
		entries: make(map[string]Entry),
	}
}

// SetUploader installs the GPU upload callback.
func (a *Atlas) SetUploader(fn UploadFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploader = fn
}

// Size returns the atlas's square texture dimension.
func (a *Atlas) Size() int { return a.size }

// Buffer returns the CPU-side backing image. Callers must not retain a
// reference across a Clear/reset.
func (a *Atlas) Buffer() *image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf
}

// Get returns the current entry for id, if any.
func (a *Atlas) Get(id string) (Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	return e, ok
}

// NeedsRasterize reports whether id has no entry, a stale entry, or an
// entry whose fingerprint no longer matches fingerprint — the renderer's
// "ensure an atlas entry exists; otherwise request rasterization" check
// (spec.md §4.7 step 1).
func (a *Atlas) NeedsRasterize(id, fingerprint string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return true
	}
	return e.stale || e.Fingerprint != fingerprint
}

// Rasterize invokes raster, allocates (or reuses, if the size is
// unchanged) a region, composites the bitmap into the atlas buffer,
// uploads the sub-image if an uploader is installed, and records the entry
// with its version incremented (spec.md §4.8).
func (a *Atlas) Rasterize(id, fingerprint string, raster RasterFunc) (Region, error) {
	bitmap, err := raster()
	if err != nil {
		return Region{}, fmt.Errorf("atlas: rasterize %q: %w", id, err)
	}
	w, h := bitmap.Bounds().Dx(), bitmap.Bounds().Dy()

	a.mu.Lock()
	defer a.mu.Unlock()

	prev, existed := a.entries[id]
	var region Region
	if existed && int(prev.Region.Width) == w && int(prev.Region.Height) == h {
		region = prev.Region
	} else {
		region, err = a.allocLocked(w, h)
		if err != nil {
			return Region{}, err
		}
	}

	dstRect := image.Rect(int(region.X), int(region.Y), int(region.X)+w, int(region.Y)+h)
	draw.Draw(a.buf, dstRect, bitmap, image.Point{}, draw.Src)
	if a.uploader != nil {
		a.uploader(int(region.X), int(region.Y), bitmap)
	}

	version := prev.Version + 1
	a.entries[id] = Entry{Region: region, Version: version, Fingerprint: fingerprint}
	a.rasterizations++
	return region, nil
}

// allocLocked allocates w×h in the packer, resetting the whole atlas once
// and retrying on failure (spec.md §4.8 eviction policy: "when allocation
// fails, reset the atlas ... simpler than LRU").
func (a *Atlas) allocLocked(w, h int) (Region, error) {
	x, y, err := a.packer.alloc(w, h)
	if err != nil {
		a.resetLocked()
		x, y, err = a.packer.alloc(w, h)
		if err != nil {
			return Region{}, fmt.Errorf("atlas: %dx%d region does not fit even after reset: %w", w, h, err)
		}
	}
	return Region{X: uint32(x), Y: uint32(y), Width: uint32(w), Height: uint32(h)}, nil
}

// Invalidate marks id's entry stale; the next Rasterize call re-runs and
// re-uploads it (spec.md §4.8).
func (a *Atlas) Invalidate(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.entries[id]; ok {
		e.stale = true
		a.entries[id] = e
	}
}

// Clear drops every entry and resets the packer; atlas memory is reusable
// from scratch (spec.md §4.8).
func (a *Atlas) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Atlas) resetLocked() {
	a.entries = make(map[string]Entry)
	a.packer.reset()
	a.resets++
}

// Stats returns lifetime rasterization/reset counters, consumed by
// internal/metrics.
func (a *Atlas) Stats() (rasterizations, resets uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rasterizations, a.resets
}
