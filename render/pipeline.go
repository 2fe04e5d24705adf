package render

import (
	"github.com/soypat/rendergraph/scene"
)

// Pipeline is the ordered list of passes drawn each frame and the scenes
// they draw. A new pipeline starts dirty so the first frame builds its queue.
type Pipeline struct {
	scenes []*scene.Scene
	passes []*Pass
	dirty  bool
	width  uint32
	height uint32
	// chains are the post-processing passes of each user pass.
	chains map[*Pass]*postChain
}

// NewPipeline returns an empty pipeline presenting to a surface of the given size.
func NewPipeline(width, height uint32) *Pipeline {
	return &Pipeline{dirty: true, width: width, height: height}
}

// CreateScene creates a scene owned by the pipeline.
func (p *Pipeline) CreateScene() *scene.Scene {
	s := scene.New()
	p.scenes = append(p.scenes, s)
	return s
}

// Scenes returns the scenes owned by the pipeline.
func (p *Pipeline) Scenes() []*scene.Scene { return p.scenes }

// CreatePass appends a pass drawing s through camera into target and marks
// the pipeline dirty. A nil target draws to the presented surface.
func (p *Pipeline) CreatePass(s *scene.Scene, camera *scene.Camera, target RenderTarget) *Pass {
	pass := &Pass{Scene: s, Camera: camera, Target: target}
	p.AddPass(pass)
	return pass
}

// AddPass appends pass and marks the pipeline dirty.
func (p *Pipeline) AddPass(pass *Pass) {
	p.passes = append(p.passes, pass)
	p.dirty = true
}

// Passes returns the pipeline's passes in draw order.
func (p *Pipeline) Passes() []*Pass { return p.passes }

// IsDirty reports whether the command queue must be rebuilt before the next frame.
func (p *Pipeline) IsDirty() bool { return p.dirty }

// MarkDirty requests a queue rebuild. Must be called after modifying a scene
// or pass that the pipeline draws.
func (p *Pipeline) MarkDirty() { p.dirty = true }

// ClearDirty is called once the queue has been rebuilt.
func (p *Pipeline) ClearDirty() { p.dirty = false }

// Size returns the size of the presented surface.
func (p *Pipeline) Size() (width, height uint32) { return p.width, p.height }

// Resize sets the presented surface size and marks the pipeline dirty.
func (p *Pipeline) Resize(width, height uint32) {
	p.width, p.height = width, height
	p.dirty = true
}
