// Package atlas implements spec.md §4.8: a single fixed-size RGBA texture
// backing every rasterized element, allocated with a shelf packer and
// addressed by elementID. Region/entry field naming (Page-less here since
// there is exactly one page; X/Y/Width/Height, a version counter) is
// grounded on phanxgames-willow's atlas.go TextureRegion, generalized from
// a static TexturePacker JSON load to dynamic on-demand shelf allocation.
package atlas

// Region is a sub-rectangle inside the atlas texture, in texel
// coordinates. UV converts it to normalized [0,1] texture coordinates for
// the renderer's per-instance `texRect`.
type Region struct {
	X, Y          uint32
	Width, Height uint32
}

// UV returns (u, v, uWidth, vHeight) in [0,1], normalized against the
// atlas's total size.
func (r Region) UV(atlasSize uint32) (u, v, uw, vh float64) {
	s := float64(atlasSize)
	return float64(r.X) / s, float64(r.Y) / s, float64(r.Width) / s, float64(r.Height) / s
}

// Entry is one element's GPU record (spec.md §3 "Atlas entry"): its
// region, a version bumped on every rasterization, and the content
// fingerprint that was current as of that rasterization — used by the
// caller to decide whether a changed element actually needs re-rasterizing
// (appearance-affecting fields only).
type Entry struct {
	Region      Region
	Version     uint64
	Fingerprint string
	stale       bool
}
