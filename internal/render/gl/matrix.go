//go:build !headless

package gl

// Viewport is the visible world-space window: origin plus zoom scale
// (spec.md §4.7). Mirrors awareness.Viewport's shape but kept independent
// since the renderer should not import the awareness package for a
// three-field value type.
type Viewport struct {
	X, Y  float64
	Scale float64
}

// viewMatrix computes the 3x3 world-to-clip-space matrix (column-major,
// for gl.UniformMatrix3fv with transpose=false), following spec.md §4.7's
// stated formula exactly: screen = world*scale + (vx,vy), then
// ndc = screen*2/size - 1 with Y negated (canvas Y grows downward; NDC Y
// grows upward).
func viewMatrix(vp Viewport, canvasW, canvasH float64) [9]float32 {
	sx := vp.Scale * 2 / canvasW
	sy := vp.Scale * 2 / canvasH

	var m [9]float32
	m[0] = float32(sx)
	m[1] = 0
	m[2] = 0

	m[3] = 0
	m[4] = float32(-sy)
	m[5] = 0

	m[6] = float32(vp.X*2/canvasW - 1)
	m[7] = float32(1 - vp.Y*2/canvasH)
	m[8] = 1
	return m
}
