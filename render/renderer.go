package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/material"
	"github.com/soypat/rendergraph/scene"
	"github.com/soypat/rendergraph/shadergen"
)

var (
	// ErrUnknownCommand is returned by [Renderer.Render] for a command of a
	// type no backend handler exists for. It signals a corrupt queue.
	ErrUnknownCommand = errors.New("unknown render command")
	errNoPipeline     = errors.New("renderer has no pipeline")
)

// Backend executes render commands on a graphics API.
type Backend interface {
	// Linker links compiled shader sources into backend programs.
	material.Linker
	PreRender() error
	ExecutePassStart(cmd *Command) error
	ExecuteDraw(cmd *Command) error
	ExecutePassEnd(cmd *Command) error
	ExecutePresent(cmd *Command) error
	PostRender() error
	CreateRenderTarget(width, height uint32, depthOnly bool) (RenderTarget, error)
	CreateSampledTarget(width, height uint32, gBuffer bool) (SampledTarget, error)
	// SkyBoxMesh returns the cube mesh sky boxes are drawn with.
	SkyBoxMesh() scene.Mesh
	// ScreenQuadMesh returns the full screen quad post-processing is drawn with.
	ScreenQuadMesh() scene.Mesh
}

// Renderer draws a pipeline's command queue through a backend. It is not
// safe for concurrent use; the material cache is only touched from Render.
type Renderer struct {
	backend   Backend
	materials *material.Manager
	builder   QueueBuilder
	pipeline  *Pipeline
	queue     []Command
}

// NewRenderer returns a renderer compiling materials for lang and executing
// commands on backend.
func NewRenderer(backend Backend, lang shadergen.Language) (*Renderer, error) {
	if !lang.IsValid() {
		return nil, shadergen.ErrUnsupportedLanguage
	}
	materials := material.NewManager(lang, backend)
	r := &Renderer{
		backend:   backend,
		materials: materials,
	}
	r.builder = QueueBuilder{
		CreateMaterial:     ManagerMaterials(materials),
		CreateRenderTarget: backend.CreateRenderTarget,
		SkyBoxMesh:         backend.SkyBoxMesh(),
	}
	return r, nil
}

// Materials returns the renderer's material manager.
func (r *Renderer) Materials() *material.Manager { return r.materials }

// Pipeline returns the installed pipeline or nil.
func (r *Renderer) Pipeline() *Pipeline { return r.pipeline }

// SetPipeline installs p. Every compiled material is discarded and the queue
// is rebuilt lazily on the next call to Render.
func (r *Renderer) SetPipeline(p *Pipeline) {
	r.materials.Clear()
	r.builder.Reset()
	r.queue = r.queue[:0]
	r.pipeline = p
	if p != nil {
		p.MarkDirty()
	}
}

// Resize resizes the presented surface. Materials depend on surface size
// through screen space texture coordinates so they are discarded.
func (r *Renderer) Resize(width, height uint32) {
	r.materials.Clear()
	if r.pipeline != nil {
		r.pipeline.Resize(width, height)
	}
}

// Queue returns the command queue built on the last rebuild.
func (r *Renderer) Queue() []Command { return r.queue }

// Rebuild regenerates the command queue from the pipeline's passes and
// clears the pipeline's dirty bit.
func (r *Renderer) Rebuild() error {
	if r.pipeline == nil {
		return errNoPipeline
	}
	start := time.Now()
	passes, err := r.pipeline.Build(r.backend.CreateSampledTarget, r.backend.ScreenQuadMesh())
	if err != nil {
		return fmt.Errorf("building render passes: %w", err)
	}
	queue, err := r.builder.Build(passes)
	if err != nil {
		return fmt.Errorf("building render queue: %w", err)
	}
	r.queue = queue
	r.pipeline.ClearDirty()
	rendergraph.Logger().Debug("rebuilt render queue",
		"passes", len(passes),
		"commands", len(queue),
		"materials", r.materials.Len(),
		"elapsed", time.Since(start),
	)
	return nil
}

// Render draws a frame. The queue is rebuilt first if the pipeline is dirty.
// Commands are executed strictly in queue order.
func (r *Renderer) Render() error {
	if r.pipeline == nil {
		return errNoPipeline
	}
	if r.pipeline.IsDirty() {
		if err := r.Rebuild(); err != nil {
			return err
		}
	}
	if err := r.backend.PreRender(); err != nil {
		return err
	}
	for i := range r.queue {
		if err := r.execute(&r.queue[i]); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, r.queue[i].Type, err)
		}
	}
	return r.backend.PostRender()
}

func (r *Renderer) execute(cmd *Command) error {
	switch cmd.Type {
	case CommandPassStart:
		return r.backend.ExecutePassStart(cmd)
	case CommandDraw:
		return r.backend.ExecuteDraw(cmd)
	case CommandPassEnd:
		return r.backend.ExecutePassEnd(cmd)
	case CommandPresent:
		return r.backend.ExecutePresent(cmd)
	}
	return ErrUnknownCommand
}
