package atlas

import "fmt"

// gutter pads every allocated region to prevent bilinear sampling bleed
// from adjacent regions (spec.md §4.8).
const gutter = 2

// shelfPacker allocates rectangles into a fixed-size square using a
// shelf/skyline strategy: rows ("shelves") grow top-down, items within a
// row grow left-to-right. A shelf's height is fixed to its tallest item;
// it is never revisited once a new shelf starts, which is simpler than a
// full skyline packer and sufficient for this workload (spec.md §4.8:
// "simpler than LRU and acceptable given per-canvas workload" applies the
// same reasoning to packing as to eviction).
type shelfPacker struct {
	size int

	cursorX, cursorY int
	shelfHeight      int
}

func newShelfPacker(size int) *shelfPacker {
	return &shelfPacker{size: size}
}

// alloc reserves a w×h rectangle (plus gutter) and returns its top-left
// corner, or an error if the atlas is full.
func (p *shelfPacker) alloc(w, h int) (x, y int, err error) {
	gw, gh := w+gutter, h+gutter

	if p.cursorX+gw > p.size {
		p.cursorY += p.shelfHeight
		p.cursorX = 0
		p.shelfHeight = 0
	}
	if p.cursorY+gh > p.size {
		return 0, 0, fmt.Errorf("atlas: no space for %dx%d region in %dx%d atlas", w, h, p.size, p.size)
	}

	x, y = p.cursorX, p.cursorY
	p.cursorX += gw
	if gh > p.shelfHeight {
		p.shelfHeight = gh
	}
	return x, y, nil
}

func (p *shelfPacker) reset() {
	p.cursorX, p.cursorY, p.shelfHeight = 0, 0, 0
}
