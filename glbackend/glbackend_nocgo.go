//go:build tinygo || !cgo

package glbackend

import (
	"github.com/soypat/rendergraph/material"
	"github.com/soypat/rendergraph/render"
	"github.com/soypat/rendergraph/scene"
	"github.com/soypat/rendergraph/shadergen"
)

// Backend is unavailable without CGo.
type Backend struct{}

var _ render.Backend = (*Backend)(nil)

// New returns an error without CGo.
func New(cfg Config) (*Backend, error) { return nil, errNoCGO }

func (b *Backend) Close()                     {}
func (b *Backend) ShouldClose() bool          { return true }
func (b *Backend) Frames() uint64             { return 0 }
func (b *Backend) DeleteMesh(*Mesh)           {}
func (b *Backend) SkyBoxMesh() scene.Mesh     { return nil }
func (b *Backend) ScreenQuadMesh() scene.Mesh { return nil }

func (b *Backend) Link(shadergen.Source) (material.Program, error) { return nil, errNoCGO }

func (b *Backend) NewMesh([]Vertex, []uint32) (*Mesh, error) { return nil, errNoCGO }

func (b *Backend) CreateRenderTarget(uint32, uint32, bool) (render.RenderTarget, error) {
	return nil, errNoCGO
}

func (b *Backend) CreateSampledTarget(uint32, uint32, bool) (render.SampledTarget, error) {
	return nil, errNoCGO
}

func (b *Backend) DeleteRenderTarget(*Target)             {}
func (b *Backend) PreRender() error                       { return errNoCGO }
func (b *Backend) ExecutePassStart(*render.Command) error { return errNoCGO }
func (b *Backend) ExecuteDraw(*render.Command) error      { return errNoCGO }
func (b *Backend) ExecutePassEnd(*render.Command) error   { return errNoCGO }
func (b *Backend) ExecutePresent(*render.Command) error   { return errNoCGO }
func (b *Backend) PostRender() error                      { return errNoCGO }
