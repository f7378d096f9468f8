//go:build !headless

package gl

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// vertexShaderSource implements spec.md §4.7's vertex shader contract:
// compute the element center from worldRect, apply a 2D rotation to the
// unit-quad-relative offset, add the center, transform by the 3x3 view
// matrix, emit clip-space position; UV = texRect.xy + unit_corner*texRect.zw.
const vertexShaderSource = `#version 410 core
layout(location = 0) in vec2 unitCorner;
layout(location = 1) in vec4 worldRect;
layout(location = 2) in vec4 texRect;
layout(location = 3) in float opacity;
layout(location = 4) in float rotation;

uniform mat3 viewMatrix;

out vec2 vUV;
out float vOpacity;

void main() {
    vec2 halfSize = worldRect.zw * 0.5;
    vec2 center = worldRect.xy + halfSize;
    vec2 offset = (unitCorner - 0.5) * worldRect.zw;

    float c = cos(rotation);
    float s = sin(rotation);
    vec2 rotated = vec2(
        offset.x * c - offset.y * s,
        offset.x * s + offset.y * c
    );

    vec2 worldPos = center + rotated;
    vec3 clip = viewMatrix * vec3(worldPos, 1.0);
    gl_Position = vec4(clip.xy, 0.0, 1.0);

    vUV = texRect.xy + unitCorner * texRect.zw;
    vOpacity = opacity;
}
`

// fragmentShaderSource samples the atlas and multiplies by opacity
// (spec.md §4.7).
const fragmentShaderSource = `#version 410 core
in vec2 vUV;
in float vOpacity;

uniform sampler2D atlasTexture;

out vec4 fragColor;

void main() {
    vec4 texel = texture(atlasTexture, vUV);
    fragColor = vec4(texel.rgb, texel.a * vOpacity);
}
`

// program wraps a compiled+linked GL program, created/deleted as a pair
// (Design Notes: "explicit create/delete-paired resource lifetimes").
type program struct {
	id uint32
}

func newProgram(vertexSrc, fragmentSrc string) (*program, error) {
	vs, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("gl: vertex shader: %w", err)
	}
	defer gl.DeleteShader(vs)

	fs, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, fmt.Errorf("gl: fragment shader: %w", err)
	}
	defer gl.DeleteShader(fs)

	id := gl.CreateProgram()
	gl.AttachShader(id, vs)
	gl.AttachShader(id, fs)
	gl.LinkProgram(id)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		logLen := logLength(func(p uint32, l int32, n *int32) { gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, n) }, id)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(id, logLen, nil, gl.Str(log))
		gl.DeleteProgram(id)
		return nil, fmt.Errorf("gl: link program: %s", log)
	}
	return &program{id: id}, nil
}

func compileShader(src string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	csource, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		logLen := logLength(func(s uint32, l int32, n *int32) { gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, n) }, shader)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s", log)
	}
	return shader, nil
}

func logLength(query func(id uint32, _ int32, out *int32), id uint32) int32 {
	var n int32
	query(id, 0, &n)
	return n
}

func (p *program) use() {
	gl.UseProgram(p.id)
}

func (p *program) dispose() {
	gl.DeleteProgram(p.id)
}
