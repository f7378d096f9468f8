//go:build !headless

package gl

import (
	"fmt"
	"image"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"github.com/drawmesh/canvas-sync/internal/render/atlas"
)

// instanceFloats is the per-instance attribute count: worldRect(4) +
// texRect(4) + opacity(1) + rotation(1), matching the vertex shader
// layout locations 1-4 (spec.md §4.7).
const instanceFloats = 10

var unitQuad = [8]float32{
	0, 0,
	1, 0,
	0, 1,
	1, 1,
}

// RenderElement is one instance's worth of per-frame draw data: its
// world-space rectangle, its atlas region, and its appearance modifiers.
// The caller (the renderer's owner) builds this slice in sort order each
// frame from the local element store and the atlas (spec.md §4.7 step 2).
type RenderElement struct {
	WorldX, WorldY, WorldW, WorldH float64
	Region                         atlas.Region
	Opacity                        float64
	Rotation                       float64
}

// Renderer is spec.md §4.7's Hybrid Renderer: one GL context, one shader
// program, one atlas texture, redrawn with a single instanced draw call
// per Render.
type Renderer struct {
	ctx   *Context
	prog  *program
	atlas *atlas.Atlas

	quadVBO     uint32
	instanceVBO uint32
	vao         uint32
	texture     uint32

	viewLoc  int32
	atlasLoc int32

	width, height int
	instanceCap   int
}

// New creates a Renderer bound to ctx's current GL context and atl's
// backing texture. atl.SetUploader is wired here so every atlas.Rasterize
// call pushes its sub-image straight to this renderer's texture.
func New(ctx *Context, atl *atlas.Atlas, width, height int) (*Renderer, error) {
	prog, err := newProgram(vertexShaderSource, fragmentShaderSource)
	if err != nil {
		return nil, err
	}

	r := &Renderer{ctx: ctx, prog: prog, atlas: atl, width: width, height: height}
	r.viewLoc = gl.GetUniformLocation(prog.id, gl.Str("viewMatrix\x00"))
	r.atlasLoc = gl.GetUniformLocation(prog.id, gl.Str("atlasTexture\x00"))

	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	gl.GenBuffers(1, &r.quadVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(unitQuad)*4, gl.Ptr(&unitQuad[0]), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 2*4, 0)

	gl.GenBuffers(1, &r.instanceVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.instanceVBO)
	stride := int32(instanceFloats * 4)
	setupInstanceAttrib(1, 4, stride, 0)   // worldRect
	setupInstanceAttrib(2, 4, stride, 16)  // texRect
	setupInstanceAttrib(3, 1, stride, 32)  // opacity
	setupInstanceAttrib(4, 1, stride, 36)  // rotation

	size := int32(atl.Size())
	gl.GenTextures(1, &r.texture)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, size, size, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	atl.SetUploader(r.uploadRegion)

	gl.Viewport(0, 0, int32(width), int32(height))
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	return r, nil
}

func setupInstanceAttrib(index uint32, size int32, stride int32, offset int) {
	gl.EnableVertexAttribArray(index)
	gl.VertexAttribPointerWithOffset(index, size, gl.FLOAT, false, stride, uintptr(offset))
	gl.VertexAttribDivisor(index, 1)
}

// uploadRegion pushes a rasterized sub-image to the atlas texture, wired
// as atlas.UploadFunc. img.Stride may exceed its width*4 when the bitmap
// was cropped from a larger buffer, so UNPACK_ROW_LENGTH is set from the
// stride rather than assuming a tightly packed image.
func (r *Renderer) uploadRegion(x, y int, img *image.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, int32(x), int32(y), int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&img.Pix[0]))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
}

// Render builds the per-instance buffer in sort order, uploads it plus the
// view matrix, binds the atlas, and issues one instanced draw call
// (spec.md §4.7 steps 2-3).
func (r *Renderer) Render(elements []RenderElement, vp Viewport) error {
	if len(elements) == 0 {
		gl.Clear(gl.COLOR_BUFFER_BIT)
		return nil
	}
	data := make([]float32, 0, len(elements)*instanceFloats)
	atlasSize := uint32(r.atlas.Size())
	for _, e := range elements {
		u, v, uw, vh := e.Region.UV(atlasSize)
		data = append(data,
			float32(e.WorldX), float32(e.WorldY), float32(e.WorldW), float32(e.WorldH),
			float32(u), float32(v), float32(uw), float32(vh),
			float32(e.Opacity), float32(e.Rotation),
		)
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, r.instanceVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(&data[0]), gl.DYNAMIC_DRAW)

	gl.Clear(gl.COLOR_BUFFER_BIT)
	r.prog.use()
	gl.BindVertexArray(r.vao)

	m := viewMatrix(vp, float64(r.width), float64(r.height))
	gl.UniformMatrix3fv(r.viewLoc, 1, false, &m[0])

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.Uniform1i(r.atlasLoc, 0)

	gl.DrawArraysInstanced(gl.TRIANGLE_STRIP, 0, 4, int32(len(elements)))

	if err := gl.GetError(); err != gl.NO_ERROR {
		return fmt.Errorf("gl: render: GL error 0x%x", err)
	}
	return nil
}

// InvalidateElements marks the given ids' atlas entries stale, so the next
// rasterization pass re-renders and re-uploads them (spec.md §4.7).
func (r *Renderer) InvalidateElements(ids []string) {
	for _, id := range ids {
		r.atlas.Invalidate(id)
	}
}

// InvalidateAll clears the atlas and its entries.
func (r *Renderer) InvalidateAll() {
	r.atlas.Clear()
}

// SetSize updates the GL viewport and the matrix recomputation basis.
func (r *Renderer) SetSize(width, height int) {
	r.width, r.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
}

// Dispose releases every GL resource this Renderer created, then its
// context.
func (r *Renderer) Dispose() {
	gl.DeleteBuffers(1, &r.quadVBO)
	gl.DeleteBuffers(1, &r.instanceVBO)
	gl.DeleteVertexArrays(1, &r.vao)
	gl.DeleteTextures(1, &r.texture)
	r.prog.dispose()
	r.ctx.Dispose()
}
