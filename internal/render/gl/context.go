//go:build !headless

// Package gl implements spec.md §4.7: a persistent GL context, shader
// program, shared unit-quad VBO, per-instance attribute VBO, and a single
// atlas texture, redrawing the whole scene with one instanced draw call
// per Render. Isolated behind the !headless build tag (mirroring the
// teacher's //go:build wasm isolation of sab_bridge.go) so the sync/codec
// packages stay importable in a server or CI environment with no GL
// context available. Resource lifetime (explicit create paired with
// Dispose) is grounded on the pack's gogpu-gg render_pass.go/session.go
// state-machine idiom, adapted from wgpu's pass/pipeline objects to raw
// go-gl buffer/program/texture names.
package gl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Context owns the GLFW window and GL context backing one Renderer. The GL
// context is owned exclusively by the renderer instance that created it
// (spec.md §5: "the shared atlas texture is mutated only from the render
// thread").
type Context struct {
	window *glfw.Window
}

// NewContext creates a hidden GLFW window (used purely to own a current GL
// context; this module never presents it directly — host UI compositing is
// out of scope per spec.md §1) and initializes go-gl's function pointers.
func NewContext(width, height int) (*Context, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("gl: glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.False)

	window, err := glfw.CreateWindow(width, height, "canvas-sync", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("gl: create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("gl: init: %w", err)
	}
	return &Context{window: window}, nil
}

// Dispose destroys the window and GL context.
func (c *Context) Dispose() {
	if c.window != nil {
		c.window.Destroy()
		c.window = nil
	}
	glfw.Terminate()
}
