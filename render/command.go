// Package render flattens render passes into a linear command queue and
// dispatches it to a graphics backend once per frame.
package render

import (
	"fmt"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/material"
	"github.com/soypat/rendergraph/scene"
)

// CommandType is the kind of a render [Command].
type CommandType uint8

const (
	CommandPassStart CommandType = iota
	CommandDraw
	CommandPassEnd
	CommandPresent
)

func (t CommandType) String() string {
	switch t {
	case CommandPassStart:
		return "PASS_START"
	case CommandDraw:
		return "DRAW"
	case CommandPassEnd:
		return "PASS_END"
	case CommandPresent:
		return "PRESENT"
	}
	return fmt.Sprintf("CommandType(%d)", uint8(t))
}

// Command is a single step of a frame. Which fields are set depends on Type:
// pass commands carry Pass, draw commands additionally carry Entity, Material
// and Light. ShadowMap is set on directional draws of shadow receiving entities.
type Command struct {
	Type      CommandType
	Pass      *Pass
	Entity    *scene.Entity
	Material  *material.Material
	Light     scene.Light
	ShadowMap RenderTarget
}

// RenderTarget is a backend owned surface drawn to by a pass.
type RenderTarget interface {
	Size() (width, height uint32)
}

// Pass draws a scene seen through a camera into a target. A nil Target
// draws to the presented surface.
type Pass struct {
	Scene     *scene.Scene
	Camera    *scene.Camera
	Target    RenderTarget
	SkyBox    *rendergraph.CubeMap
	DepthOnly bool
	// RenderNormal and RenderPosition select material variants that also
	// write view space normals and positions, i.e: for a G-buffer pass.
	RenderNormal   bool
	RenderPosition bool
	// PostProcessing effects are applied after the scene is drawn.
	// See [Pipeline.Build].
	PostProcessing PostProcessing
}
