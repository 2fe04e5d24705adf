package render

import (
	"errors"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/material"
	"github.com/soypat/rendergraph/scene"
	"github.com/soypat/rendergraph/shadergen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	w, h      uint32
	depthOnly bool
}

func (t *fakeTarget) Size() (uint32, uint32) { return t.w, t.h }

type fakeSampledTarget struct {
	fakeTarget
	colour, normal, position *rendergraph.Texture
}

func (t *fakeSampledTarget) ColourTexture() *rendergraph.Texture   { return t.colour }
func (t *fakeSampledTarget) NormalTexture() *rendergraph.Texture   { return t.normal }
func (t *fakeSampledTarget) PositionTexture() *rendergraph.Texture { return t.position }

type fakeProgram struct{ deleted bool }

func (p *fakeProgram) Delete() { p.deleted = true }

type fakeBackend struct {
	executed []CommandType
	targets  []*fakeTarget
	sampled  []*fakeSampledTarget
	ids      rendergraph.ResourceIDs
	programs []*fakeProgram
	pre      int
	post     int
	drawErr  error
}

func (b *fakeBackend) Link(shadergen.Source) (material.Program, error) {
	p := &fakeProgram{}
	b.programs = append(b.programs, p)
	return p, nil
}

func (b *fakeBackend) PreRender() error  { b.pre++; return nil }
func (b *fakeBackend) PostRender() error { b.post++; return nil }

func (b *fakeBackend) ExecutePassStart(cmd *Command) error {
	b.executed = append(b.executed, cmd.Type)
	return nil
}

func (b *fakeBackend) ExecuteDraw(cmd *Command) error {
	b.executed = append(b.executed, cmd.Type)
	return b.drawErr
}

func (b *fakeBackend) ExecutePassEnd(cmd *Command) error {
	b.executed = append(b.executed, cmd.Type)
	return nil
}

func (b *fakeBackend) ExecutePresent(cmd *Command) error {
	b.executed = append(b.executed, cmd.Type)
	return nil
}

func (b *fakeBackend) CreateRenderTarget(w, h uint32, depthOnly bool) (RenderTarget, error) {
	t := &fakeTarget{w: w, h: h, depthOnly: depthOnly}
	b.targets = append(b.targets, t)
	return t, nil
}

func (b *fakeBackend) CreateSampledTarget(w, h uint32, gBuffer bool) (SampledTarget, error) {
	index := uint32(3 * len(b.sampled))
	t := &fakeSampledTarget{
		fakeTarget: fakeTarget{w: w, h: h},
		colour:     b.ids.NewTexture("", index, w, h, nil),
	}
	if gBuffer {
		t.normal = b.ids.NewTexture("", index+1, w, h, nil)
		t.position = b.ids.NewTexture("", index+2, w, h, nil)
	}
	b.sampled = append(b.sampled, t)
	return t, nil
}

func (b *fakeBackend) SkyBoxMesh() scene.Mesh     { return "cube" }
func (b *fakeBackend) ScreenQuadMesh() scene.Mesh { return "quad" }

func colourGraph(s *scene.Scene, c rendergraph.Colour) *rendergraph.Graph {
	g := s.CreateRenderGraph()
	g.SetRoot(g.Add(&rendergraph.RenderNode{Colour: g.Add(&rendergraph.ColourNode{Colour: c})}))
	return g
}

func newBuilder(b *fakeBackend) *QueueBuilder {
	return &QueueBuilder{
		CreateMaterial:     ManagerMaterials(material.NewManager(shadergen.GLSL, b)),
		CreateRenderTarget: b.CreateRenderTarget,
		SkyBoxMesh:         b.SkyBoxMesh(),
	}
}

func types(cmds []Command) []CommandType {
	var ts []CommandType
	for _, c := range cmds {
		ts = append(ts, c.Type)
	}
	return ts
}

func TestBuildEmpty(t *testing.T) {
	cmds, err := newBuilder(&fakeBackend{}).Build(nil)
	require.NoError(t, err)
	assert.Equal(t, []CommandType{CommandPresent}, types(cmds))
}

func TestBuildSingleEntity(t *testing.T) {
	s := scene.New()
	g := colourGraph(s, rendergraph.Colour{R: 1, A: 1})
	e, err := s.CreateEntity(g, "cube")
	require.NoError(t, err)

	cmds, err := newBuilder(&fakeBackend{}).Build([]*Pass{{Scene: s, Camera: &scene.Camera{}}})
	require.NoError(t, err)
	require.Equal(t, []CommandType{CommandPassStart, CommandDraw, CommandPassEnd, CommandPresent}, types(cmds))
	draw := cmds[1]
	assert.Same(t, e, draw.Entity)
	assert.Equal(t, rendergraph.LightAmbient, draw.Light.LightType())
	assert.Equal(t, rendergraph.LightAmbient, draw.Material.Key.Light)
	assert.Nil(t, draw.ShadowMap)
}

func TestBuildLights(t *testing.T) {
	s := scene.New()
	g := colourGraph(s, rendergraph.Colour{G: 1, A: 1})
	e1, _ := s.CreateEntity(g, "a")
	e2, _ := s.CreateEntity(g, "b")
	e2.ReceiveShadow = true
	white := rendergraph.Colour{R: 1, G: 1, B: 1, A: 1}
	p1 := s.AddPointLight(ms3.Vec{Y: 1}, white, ms3.Vec{X: 1})
	sun := s.AddDirectionalLight(ms3.Vec{Y: -1}, white, true)

	backend := &fakeBackend{}
	b := newBuilder(backend)
	main := &Pass{Scene: s, Camera: &scene.Camera{}}
	cmds, err := b.Build([]*Pass{main})
	require.NoError(t, err)

	want := []CommandType{
		// Shadow pass: ambient draws only.
		CommandPassStart, CommandDraw, CommandDraw, CommandPassEnd,
		// Main pass: ambient, point and directional draws.
		CommandPassStart,
		CommandDraw, CommandDraw,
		CommandDraw, CommandDraw,
		CommandDraw, CommandDraw,
		CommandPassEnd,
		CommandPresent,
	}
	require.Equal(t, want, types(cmds))

	shadow := cmds[0].Pass
	assert.True(t, shadow.DepthOnly)
	assert.Same(t, &sun.ShadowCamera, shadow.Camera)
	require.Len(t, backend.targets, 1)
	assert.Equal(t, &fakeTarget{w: ShadowMapSize, h: ShadowMapSize, depthOnly: true}, backend.targets[0])
	assert.Same(t, backend.targets[0], shadow.Target)

	assert.Same(t, main, cmds[4].Pass)
	assert.Same(t, p1, cmds[7].Light)
	assert.Same(t, e1, cmds[7].Entity)
	assert.Same(t, e2, cmds[8].Entity)
	assert.Same(t, sun, cmds[9].Light)
	assert.Nil(t, cmds[9].ShadowMap, "entity does not receive shadows")
	assert.Same(t, backend.targets[0], cmds[10].ShadowMap)
	assert.Equal(t, rendergraph.LightDirectional, cmds[10].Material.Key.Light)

	// Shadow targets are reused across builds.
	_, err = b.Build([]*Pass{main})
	require.NoError(t, err)
	assert.Len(t, backend.targets, 1)
}

func TestBuildDepthOnlyAndSkyBox(t *testing.T) {
	s := scene.New()
	g := colourGraph(s, rendergraph.Colour{B: 1, A: 1})
	s.CreateEntity(g, "a")
	s.AddPointLight(ms3.Vec{}, rendergraph.Colour{R: 1, A: 1}, ms3.Vec{X: 1})

	var ids rendergraph.ResourceIDs
	var faces [6][2]uint32
	for i := range faces {
		faces[i] = [2]uint32{64, 64}
	}
	sky, err := ids.NewCubeMap("sky", 0, faces, ids.NewSampler(0))
	require.NoError(t, err)

	b := newBuilder(&fakeBackend{})
	cmds, err := b.Build([]*Pass{
		{Scene: s, DepthOnly: true, SkyBox: sky},
		{Scene: s, SkyBox: sky},
	})
	require.NoError(t, err)
	require.Equal(t, []CommandType{
		CommandPassStart, CommandDraw, CommandPassEnd,
		CommandPassStart, CommandDraw, CommandDraw, CommandDraw, CommandPassEnd,
		CommandPresent,
	}, types(cmds))
	skyDraw := cmds[6]
	assert.Equal(t, "cube", skyDraw.Entity.Mesh)
	assert.Equal(t, rendergraph.KindSkyBox, skyDraw.Entity.RenderGraph().RootNode().Kind())
	assert.NotContains(t, s.Entities(), skyDraw.Entity)

	cmds2, err := b.Build([]*Pass{{Scene: s, SkyBox: sky}})
	require.NoError(t, err)
	assert.Same(t, skyDraw.Entity, cmds2[len(cmds2)-3].Entity, "sky box entity is reused")
}

func TestBuildErrors(t *testing.T) {
	_, err := (&QueueBuilder{}).Build(nil)
	assert.ErrorIs(t, err, errNoMaterialFunc)

	s := scene.New()
	g := s.CreateRenderGraph() // No root.
	s.CreateEntity(g, nil)
	_, err = newBuilder(&fakeBackend{}).Build([]*Pass{{Scene: s}})
	assert.ErrorIs(t, err, rendergraph.ErrMissingInput)

	s = scene.New()
	s.AddDirectionalLight(ms3.Vec{Z: 1}, rendergraph.Colour{A: 1}, true)
	b := newBuilder(&fakeBackend{})
	b.CreateRenderTarget = nil
	_, err = b.Build([]*Pass{{Scene: s}})
	assert.ErrorIs(t, err, errNoTargetFunc)

	// Missing scenes are reported before shadow casters are looked up.
	for _, passes := range [][]*Pass{{{}}, {nil}, {{Scene: s}, {DepthOnly: true}}} {
		_, err = newBuilder(&fakeBackend{}).Build(passes)
		assert.ErrorIs(t, err, errNoScene)
	}
}

func TestPipelineDirty(t *testing.T) {
	p := NewPipeline(640, 480)
	assert.True(t, p.IsDirty())
	p.ClearDirty()
	s := p.CreateScene()
	assert.Equal(t, []*scene.Scene{s}, p.Scenes())
	assert.False(t, p.IsDirty())
	pass := p.CreatePass(s, &scene.Camera{}, nil)
	assert.True(t, p.IsDirty())
	assert.Equal(t, []*Pass{pass}, p.Passes())
	p.ClearDirty()
	p.Resize(800, 600)
	assert.True(t, p.IsDirty())
	w, h := p.Size()
	assert.Equal(t, [2]uint32{800, 600}, [2]uint32{w, h})
}

func TestRendererRender(t *testing.T) {
	backend := &fakeBackend{}
	r, err := NewRenderer(backend, shadergen.GLSL)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Render(), errNoPipeline)

	p := NewPipeline(640, 480)
	s := p.CreateScene()
	s.CreateEntity(colourGraph(s, rendergraph.Colour{R: 1, A: 1}), "cube")
	p.CreatePass(s, &scene.Camera{}, nil)
	r.SetPipeline(p)

	require.NoError(t, r.Render())
	assert.False(t, p.IsDirty())
	assert.Equal(t, []CommandType{CommandPassStart, CommandDraw, CommandPassEnd, CommandPresent}, backend.executed)
	assert.Equal(t, 1, backend.pre)
	assert.Equal(t, 1, backend.post)
	assert.Equal(t, 1, r.Materials().Len())

	// Clean pipeline renders the same queue without rebuilding.
	queue := r.Queue()
	require.NoError(t, r.Render())
	assert.Same(t, &queue[0], &r.Queue()[0])
	assert.Len(t, backend.executed, 8)

	// Replacing the pipeline discards compiled materials.
	r.SetPipeline(p)
	assert.True(t, p.IsDirty())
	assert.Zero(t, r.Materials().Len())
	assert.True(t, backend.programs[0].deleted)
	require.NoError(t, r.Render())
	assert.Len(t, backend.programs, 2)

	r.Resize(1024, 768)
	assert.True(t, p.IsDirty())
	assert.Zero(t, r.Materials().Len())
}

func TestRendererErrors(t *testing.T) {
	backend := &fakeBackend{drawErr: errors.New("device lost")}
	r, err := NewRenderer(backend, shadergen.HLSL)
	require.NoError(t, err)
	p := NewPipeline(1, 1)
	s := p.CreateScene()
	s.CreateEntity(colourGraph(s, rendergraph.Colour{A: 1}), nil)
	p.CreatePass(s, nil, nil)
	r.SetPipeline(p)
	err = r.Render()
	assert.ErrorIs(t, err, backend.drawErr)
	assert.Zero(t, backend.post)

	backend.drawErr = nil
	r.queue = append(r.queue, Command{Type: CommandType(42)})
	assert.ErrorIs(t, r.Render(), ErrUnknownCommand)
	assert.Equal(t, "CommandType(42)", CommandType(42).String())

	_, err = NewRenderer(backend, shadergen.Language(9))
	assert.ErrorIs(t, err, shadergen.ErrUnsupportedLanguage)
}

// effectTexture returns the texture sampled by the colour input of a post-processing pass.
func effectTexture(t *testing.T, pass *Pass) *rendergraph.Texture {
	t.Helper()
	entities := pass.Scene.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, "quad", entities[0].Mesh)
	g := entities[0].RenderGraph()
	var input rendergraph.NodeID
	switch root := g.RootNode().(type) {
	case *rendergraph.AmbientOcclusionNode:
		input = root.Colour
	case *rendergraph.ColourAdjustNode:
		input = root.Colour
	case *rendergraph.AntiAliasingNode:
		input = root.Input
	default:
		t.Fatalf("unexpected post-processing root %s", g.RootNode().Kind())
	}
	return g.Node(input).(*rendergraph.TextureNode).Texture
}

func TestPipelinePostProcessing(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPipeline(320, 240)
	s := p.CreateScene()
	s.CreateEntity(colourGraph(s, rendergraph.Colour{R: 1, A: 1}), "cube")
	plain := p.CreatePass(s, &scene.Camera{}, nil)
	screen := &fakeTarget{w: 320, h: 240}
	post := p.CreatePass(s, &scene.Camera{}, screen)
	post.PostProcessing = PostProcessing{
		AmbientOcclusion: DefaultAmbientOcclusion(),
		ColourAdjust:     DefaultColourAdjust(),
		AntiAliasing:     &AntiAliasing{},
	}

	passes, err := p.Build(backend.CreateSampledTarget, backend.ScreenQuadMesh())
	require.NoError(t, err)
	require.Len(t, passes, 5)
	assert.Same(t, plain, passes[0])
	require.Len(t, backend.sampled, 3)
	gbuffer, aoOut, caOut := backend.sampled[0], backend.sampled[1], backend.sampled[2]
	assert.NotNil(t, gbuffer.normal)
	assert.Nil(t, aoOut.normal)

	scenePass := passes[1]
	assert.Same(t, s, scenePass.Scene)
	assert.Same(t, gbuffer, scenePass.Target)
	assert.True(t, scenePass.RenderNormal && scenePass.RenderPosition)
	assert.False(t, scenePass.PostProcessing.Enabled())
	assert.True(t, post.PostProcessing.Enabled(), "user pass is not modified")

	ao := passes[2]
	assert.Same(t, aoOut, ao.Target)
	assert.Same(t, gbuffer.colour, effectTexture(t, ao))
	aoRoot := ao.Scene.Entities()[0].RenderGraph().RootNode().(*rendergraph.AmbientOcclusionNode)
	assert.Equal(t, uint32(32), aoRoot.SampleCount)
	g := ao.Scene.Entities()[0].RenderGraph()
	assert.Same(t, gbuffer.position, g.Node(aoRoot.Position).(*rendergraph.TextureNode).Texture)
	assert.Same(t, gbuffer.normal, g.Node(aoRoot.Normal).(*rendergraph.TextureNode).Texture)

	assert.Same(t, caOut, passes[3].Target)
	assert.Same(t, aoOut.colour, effectTexture(t, passes[3]))
	assert.Same(t, screen, passes[4].Target, "last effect draws to the pass target")
	assert.Same(t, caOut.colour, effectTexture(t, passes[4]))

	// Unchanged pipelines reuse the chain.
	again, err := p.Build(backend.CreateSampledTarget, backend.ScreenQuadMesh())
	require.NoError(t, err)
	assert.Len(t, backend.sampled, 3)
	assert.Equal(t, passes[2:], again[2:])

	// Resizing recreates targets at the new size.
	p.Resize(640, 480)
	_, err = p.Build(backend.CreateSampledTarget, backend.ScreenQuadMesh())
	require.NoError(t, err)
	require.Len(t, backend.sampled, 6)
	assert.Equal(t, uint32(640), backend.sampled[5].w)

	// Without ambient occlusion the scene target is not a G-buffer.
	post.PostProcessing = PostProcessing{ColourAdjust: &ColourAdjust{Gamma: 1.8}}
	passes, err = p.Build(backend.CreateSampledTarget, backend.ScreenQuadMesh())
	require.NoError(t, err)
	require.Len(t, passes, 3)
	assert.Nil(t, backend.sampled[6].normal)
	assert.False(t, passes[1].RenderNormal)
	assert.Same(t, screen, passes[2].Target)

	_, err = p.Build(nil, nil)
	assert.ErrorIs(t, err, errNoSampledTargetFunc)

	post.PostProcessing.ColourAdjust.Gamma = 0
	_, err = p.Build(backend.CreateSampledTarget, backend.ScreenQuadMesh())
	assert.Error(t, err)
}

func TestRendererPostProcessing(t *testing.T) {
	backend := &fakeBackend{}
	r, err := NewRenderer(backend, shadergen.GLSL)
	require.NoError(t, err)
	p := NewPipeline(64, 64)
	s := p.CreateScene()
	s.CreateEntity(colourGraph(s, rendergraph.Colour{G: 1, A: 1}), "cube")
	pass := p.CreatePass(s, &scene.Camera{}, nil)
	pass.PostProcessing.AntiAliasing = &AntiAliasing{}
	r.SetPipeline(p)
	require.NoError(t, r.Render())
	assert.Equal(t, []CommandType{
		CommandPassStart, CommandDraw, CommandPassEnd,
		CommandPassStart, CommandDraw, CommandPassEnd,
		CommandPresent,
	}, backend.executed)
	assert.Equal(t, 2, r.Materials().Len())
	queue := r.Queue()
	assert.Equal(t, rendergraph.KindAntiAliasing, queue[4].Material.Key.Graph.RootNode().Kind())
	assert.Nil(t, queue[4].Pass.Target)
}
