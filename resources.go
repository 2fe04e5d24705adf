package rendergraph

import (
	"errors"
	"fmt"
	"image/color"
	"sync/atomic"

	"github.com/chewxy/math32"
)

// Colour is a linear RGBA colour with components nominally in [0,1].
type Colour struct {
	R, G, B, A float32
}

// RGBA implements [color.Color]. Components are clamped to [0,1] first.
func (c Colour) RGBA() (r, g, b, a uint32) {
	c = c.Clamp()
	const max = 0xffff
	return uint32(math32.Round(c.R * max)), uint32(math32.Round(c.G * max)),
		uint32(math32.Round(c.B * max)), uint32(math32.Round(c.A * max))
}

// Clamp returns c with every component clamped to [0,1].
func (c Colour) Clamp() Colour {
	return Colour{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B), A: clamp01(c.A)}
}

// ColourFrom converts any [color.Color] to a Colour.
func ColourFrom(c color.Color) Colour {
	r, g, b, a := c.RGBA()
	const inv = 1.0 / 0xffff
	return Colour{R: float32(r) * inv, G: float32(g) * inv, B: float32(b) * inv, A: float32(a) * inv}
}

// Array returns the colour as an RGBA array.
func (c Colour) Array() [4]float32 { return [4]float32{c.R, c.G, c.B, c.A} }

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}

// LightType selects which lighting model a material is compiled for.
type LightType uint8

const (
	// LightAmbient is the unlit/ambient contribution. It is the "none" light type.
	LightAmbient LightType = iota
	LightDirectional
	LightPoint
	lightTypeCount
)

// LightTypes lists all light types in declaration order.
func LightTypes() []LightType {
	return []LightType{LightAmbient, LightDirectional, LightPoint}
}

func (lt LightType) String() string {
	switch lt {
	case LightAmbient:
		return "ambient"
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	}
	return fmt.Sprintf("LightType(%d)", uint8(lt))
}

// IsValid reports whether lt is one of the declared light types.
func (lt LightType) IsValid() bool { return lt < lightTypeCount }

// ParseLightType parses the name returned by [LightType.String].
func ParseLightType(s string) (LightType, error) {
	for _, lt := range LightTypes() {
		if lt.String() == s {
			return lt, nil
		}
	}
	return 0, fmt.Errorf("unknown light type %q", s)
}

// Sampler is a handle to a backend sampler object.
type Sampler struct {
	ID    uint32
	Index uint32
}

// Texture is a handle to a 2D texture resource owned by a texture manager.
// Graph nodes reference textures; they never own them.
type Texture struct {
	ID      uint32
	Name    string
	Index   uint32
	Width   uint32
	Height  uint32
	Sampler *Sampler
}

// CubeMap is a handle to a six faced cube texture.
type CubeMap struct {
	ID      uint32
	Name    string
	Index   uint32
	Size    uint32
	Sampler *Sampler
}

var errCubeMapFaces = errors.New("cube map faces must all be square and of the same size")

// ResourceIDs hands out unique identifiers and default names for
// textures, cube maps and samplers. The zero value is ready to use
// and safe for concurrent use.
type ResourceIDs struct {
	next atomic.Uint32
}

// Next returns a new identifier. Identifiers start at 1.
func (ids *ResourceIDs) Next() uint32 { return ids.next.Add(1) }

// NewSampler returns a sampler bound at index.
func (ids *ResourceIDs) NewSampler(index uint32) *Sampler {
	return &Sampler{ID: ids.Next(), Index: index}
}

// NewTexture returns a texture handle. An empty name is replaced by an
// anonymous unique name.
func (ids *ResourceIDs) NewTexture(name string, index, width, height uint32, sampler *Sampler) *Texture {
	id := ids.Next()
	if name == "" {
		name = fmt.Sprintf("texture_%d", id)
	}
	return &Texture{ID: id, Name: name, Index: index, Width: width, Height: height, Sampler: sampler}
}

// NewCubeMap returns a cube map handle. faces holds the width and height of
// each of the six faces which must all be equal and square.
func (ids *ResourceIDs) NewCubeMap(name string, index uint32, faces [6][2]uint32, sampler *Sampler) (*CubeMap, error) {
	size := faces[0][0]
	for i := range faces {
		if faces[i][0] != size || faces[i][1] != size {
			return nil, fmt.Errorf("face %d is %dx%d, want %dx%d: %w", i, faces[i][0], faces[i][1], size, size, errCubeMapFaces)
		}
	}
	id := ids.Next()
	if name == "" {
		name = fmt.Sprintf("cube_map_%d", id)
	}
	return &CubeMap{ID: id, Name: name, Index: index, Size: size, Sampler: sampler}, nil
}
