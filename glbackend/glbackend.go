// Package glbackend executes render commands with OpenGL 4.6 through a GLFW window.
// It requires CGo; without it every constructor returns an error.
package glbackend

import (
	"errors"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/render"
)

var (
	errNoCGO     = errors.New("OpenGL backend requires CGo and is not supported on TinyGo")
	errMesh      = errors.New("entity mesh was not created by the OpenGL backend")
	errProgram   = errors.New("material program was not linked by the OpenGL backend")
	errTarget    = errors.New("render target was not created by the OpenGL backend")
	errNoIndices = errors.New("mesh has no indices")
)

// Config configures the window the backend presents to.
type Config struct {
	Title  string
	Width  int
	Height int
	// ClearColour is the colour every colour pass is cleared to.
	ClearColour rendergraph.Colour
}

// Vertex is the interleaved vertex layout read by compiled render shaders
// at attribute locations 0 through 3.
type Vertex struct {
	Position ms3.Vec
	Normal   ms3.Vec
	Colour   rendergraph.Colour
	TexCoord [2]float32
}

const vertexFloats = 3 + 3 + 4 + 2

// Mesh is indexed vertex data living in GPU memory.
type Mesh struct {
	vao, vbo, ebo uint32
	count         int32
}

// Target is an offscreen framebuffer. Depth only targets have no colour
// attachment. G-buffer targets add view space normal and position attachments.
// Every attachment is registered in the backend's bindless texture table.
type Target struct {
	fbo       uint32
	colour    uint32
	normal    uint32
	position  uint32
	depth     uint32
	width     uint32
	height    uint32
	depthOnly bool

	colourTex   *rendergraph.Texture
	normalTex   *rendergraph.Texture
	positionTex *rendergraph.Texture
	depthTex    *rendergraph.Texture
}

var _ render.SampledTarget = (*Target)(nil)

// Size returns the target's dimensions in pixels.
func (t *Target) Size() (width, height uint32) { return t.width, t.height }

// ColourTexture returns the colour attachment or nil for depth only targets.
func (t *Target) ColourTexture() *rendergraph.Texture { return t.colourTex }

// NormalTexture returns the view space normal attachment of a G-buffer.
func (t *Target) NormalTexture() *rendergraph.Texture { return t.normalTex }

// PositionTexture returns the view space position attachment of a G-buffer.
func (t *Target) PositionTexture() *rendergraph.Texture { return t.positionTex }

// DepthTexture returns the depth attachment, sampled as a shadow map.
func (t *Target) DepthTexture() *rendergraph.Texture { return t.depthTex }

// textureTable assigns shader indices to bindless texture handles. Freed
// indices are reused so live textures never move.
type textureTable struct {
	ids     rendergraph.ResourceIDs
	handles []uint64
	free    []uint32
	dirty   bool
}

func (tt *textureTable) add(handle uint64, width, height uint32) *rendergraph.Texture {
	var index uint32
	if n := len(tt.free); n > 0 {
		index = tt.free[n-1]
		tt.free = tt.free[:n-1]
		tt.handles[index] = handle
	} else {
		index = uint32(len(tt.handles))
		tt.handles = append(tt.handles, handle)
	}
	tt.dirty = true
	return tt.ids.NewTexture("", index, width, height, nil)
}

// remove frees tex's index and returns the handle it held.
func (tt *textureTable) remove(tex *rendergraph.Texture) uint64 {
	handle := tt.handles[tex.Index]
	tt.handles[tex.Index] = 0
	tt.free = append(tt.free, tex.Index)
	tt.dirty = true
	return handle
}

// quadVertices returns the full screen quad in normalized device coordinates.
func quadVertices() ([]Vertex, []uint32) {
	white := rendergraph.Colour{R: 1, G: 1, B: 1, A: 1}
	vertices := []Vertex{
		{Position: ms3.Vec{X: -1, Y: -1}, Normal: ms3.Vec{Z: 1}, Colour: white, TexCoord: [2]float32{0, 0}},
		{Position: ms3.Vec{X: 1, Y: -1}, Normal: ms3.Vec{Z: 1}, Colour: white, TexCoord: [2]float32{1, 0}},
		{Position: ms3.Vec{X: 1, Y: 1}, Normal: ms3.Vec{Z: 1}, Colour: white, TexCoord: [2]float32{1, 1}},
		{Position: ms3.Vec{X: -1, Y: 1}, Normal: ms3.Vec{Z: 1}, Colour: white, TexCoord: [2]float32{0, 1}},
	}
	return vertices, []uint32{0, 1, 2, 0, 2, 3}
}

// cubeVertices returns the unit cube sky boxes are drawn with. Winding faces
// inwards since the camera sits inside it.
func cubeVertices() ([]Vertex, []uint32) {
	corners := [8]ms3.Vec{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
	}
	vertices := make([]Vertex, len(corners))
	for i, c := range corners {
		vertices[i] = Vertex{Position: c, Normal: ms3.Scale(-1, c), Colour: rendergraph.Colour{R: 1, G: 1, B: 1, A: 1}}
	}
	indices := []uint32{
		0, 2, 1, 0, 3, 2, // back
		4, 5, 6, 4, 6, 7, // front
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
		3, 7, 6, 3, 6, 2, // top
		0, 1, 5, 0, 5, 4, // bottom
	}
	return vertices, indices
}

// appendMat4 appends m in column major order as expected by GLSL.
func appendMat4(dst []float32, m ms3.Mat4) []float32 {
	arr := m.Array()
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			dst = append(dst, arr[row*4+col])
		}
	}
	return dst
}

func appendVec4(dst []float32, v ms3.Vec, w float32) []float32 {
	return append(dst, v.X, v.Y, v.Z, w)
}
