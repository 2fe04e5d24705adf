//go:build !tinygo && cgo

package glbackend

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/material"
	"github.com/soypat/rendergraph/render"
	"github.com/soypat/rendergraph/scene"
	"github.com/soypat/rendergraph/shadergen"
)

const (
	cameraBinding  = 0
	lightBinding   = 1
	textureBinding = 2
)

// Backend draws render commands into a GLFW window. All methods must be
// called from the goroutine that created it.
type Backend struct {
	window    *glfw.Window
	terminate func()
	cfg       Config
	cameraUBO uint32
	lightUBO  uint32
	// textureSSBO holds the bindless handles of textures.
	textureSSBO uint32
	textures    textureTable
	targets     []*Target
	skyBox      *Mesh
	quad        *Mesh
	pass        *render.Pass
	scratch     []float32
	frames      uint64
}

var _ render.Backend = (*Backend)(nil)

// New opens a window and makes its OpenGL context current on the calling
// goroutine, which is locked to its OS thread.
func New(cfg Config) (*Backend, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Title == "" {
		cfg.Title = "rendergraph"
	}
	runtime.LockOSThread()
	window, term, err := startGLFW(cfg)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	b := &Backend{window: window, terminate: term, cfg: cfg}
	b.cameraUBO = newUniformBuffer(cameraBinding, 40)
	b.lightUBO = newUniformBuffer(lightBinding, 44)
	gl.GenBuffers(1, &b.textureSSBO)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, textureBinding, b.textureSSBO)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	if err := glgl.Err(); err != nil {
		b.Close()
		return nil, err
	}
	rendergraph.Logger().Info("opened OpenGL window",
		"title", cfg.Title,
		"width", cfg.Width,
		"height", cfg.Height,
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
	)
	return b, nil
}

func startGLFW(cfg Config) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	window, err = glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}

func newUniformBuffer(binding uint32, floats int) uint32 {
	var ubo uint32
	gl.GenBuffers(1, &ubo)
	gl.BindBuffer(gl.UNIFORM_BUFFER, ubo)
	gl.BufferData(gl.UNIFORM_BUFFER, 4*floats, nil, gl.DYNAMIC_DRAW)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, binding, ubo)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	return ubo
}

// Close releases GPU resources and terminates GLFW.
func (b *Backend) Close() {
	for _, m := range []*Mesh{b.skyBox, b.quad} {
		if m != nil {
			b.DeleteMesh(m)
		}
	}
	b.skyBox, b.quad = nil, nil
	for _, t := range b.targets {
		if t.fbo != 0 {
			b.DeleteRenderTarget(t)
		}
	}
	b.targets = nil
	gl.DeleteBuffers(1, &b.cameraUBO)
	gl.DeleteBuffers(1, &b.lightUBO)
	gl.DeleteBuffers(1, &b.textureSSBO)
	if b.terminate != nil {
		b.terminate()
		b.terminate = nil
	}
	runtime.UnlockOSThread()
}

// ShouldClose reports whether the user requested the window be closed.
func (b *Backend) ShouldClose() bool { return b.window.ShouldClose() }

// Frames returns the amount of frames presented.
func (b *Backend) Frames() uint64 { return b.frames }

type program struct {
	prog glgl.Program
}

func (p *program) Delete() { p.prog.Delete() }

// Link compiles and links a vertex and fragment shader pair.
func (b *Backend) Link(src shadergen.Source) (material.Program, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   src.Vertex + "\x00",
		Fragment: src.Fragment + "\x00",
	})
	if err != nil {
		return nil, fmt.Errorf("%s\n\n%w", src.Fragment, err)
	}
	return &program{prog: prog}, nil
}

// NewMesh uploads indexed vertex data.
func (b *Backend) NewMesh(vertices []Vertex, indices []uint32) (*Mesh, error) {
	if len(indices) == 0 || len(vertices) == 0 {
		return nil, errNoIndices
	}
	m := &Mesh{count: int32(len(indices))}
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)
	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 4*vertexFloats*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, 4*len(indices), gl.Ptr(indices), gl.STATIC_DRAW)

	const stride = 4 * vertexFloats
	sizes := [4]int32{3, 3, 4, 2}
	offset := 0
	for loc, size := range sizes {
		gl.EnableVertexAttribArray(uint32(loc))
		gl.VertexAttribPointerWithOffset(uint32(loc), size, gl.FLOAT, false, stride, uintptr(offset))
		offset += 4 * int(size)
	}
	gl.BindVertexArray(0)
	if err := glgl.Err(); err != nil {
		b.DeleteMesh(m)
		return nil, err
	}
	return m, nil
}

// DeleteMesh frees the mesh's GPU buffers.
func (b *Backend) DeleteMesh(m *Mesh) {
	gl.DeleteBuffers(1, &m.ebo)
	gl.DeleteBuffers(1, &m.vbo)
	gl.DeleteVertexArrays(1, &m.vao)
	*m = Mesh{}
}

// SkyBoxMesh returns the cube sky boxes are drawn with, creating it on first use.
func (b *Backend) SkyBoxMesh() scene.Mesh {
	if b.skyBox == nil {
		vertices, indices := cubeVertices()
		mesh, err := b.NewMesh(vertices, indices)
		if err != nil {
			rendergraph.Logger().Error("creating sky box mesh", "err", err)
			return nil
		}
		b.skyBox = mesh
	}
	return b.skyBox
}

// ScreenQuadMesh returns the quad post-processing passes are drawn with,
// creating it on first use.
func (b *Backend) ScreenQuadMesh() scene.Mesh {
	if b.quad == nil {
		vertices, indices := quadVertices()
		mesh, err := b.NewMesh(vertices, indices)
		if err != nil {
			rendergraph.Logger().Error("creating screen quad mesh", "err", err)
			return nil
		}
		b.quad = mesh
	}
	return b.quad
}

// CreateRenderTarget creates an offscreen framebuffer with a depth texture
// and, unless depthOnly, an RGBA colour texture.
func (b *Backend) CreateRenderTarget(width, height uint32, depthOnly bool) (render.RenderTarget, error) {
	t, err := b.newTarget(width, height, depthOnly, false)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateSampledTarget creates a colour framebuffer. gBuffer adds view space
// normal and position attachments at colour locations 1 and 2.
func (b *Backend) CreateSampledTarget(width, height uint32, gBuffer bool) (render.SampledTarget, error) {
	t, err := b.newTarget(width, height, false, gBuffer)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *Backend) newTarget(width, height uint32, depthOnly, gBuffer bool) (*Target, error) {
	t := &Target{width: width, height: height, depthOnly: depthOnly}
	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	defer gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	t.depth = newTexture(width, height, gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, t.depth, 0)
	if depthOnly {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	} else {
		t.colour = newTexture(width, height, gl.RGBA16F, gl.RGBA)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.colour, 0)
		attachments := []uint32{gl.COLOR_ATTACHMENT0}
		if gBuffer {
			t.normal = newTexture(width, height, gl.RGBA16F, gl.RGBA)
			t.position = newTexture(width, height, gl.RGBA32F, gl.RGBA)
			gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT1, gl.TEXTURE_2D, t.normal, 0)
			gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT2, gl.TEXTURE_2D, t.position, 0)
			attachments = append(attachments, gl.COLOR_ATTACHMENT1, gl.COLOR_ATTACHMENT2)
		}
		gl.DrawBuffers(int32(len(attachments)), &attachments[0])
	}
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		b.DeleteRenderTarget(t)
		return nil, fmt.Errorf("incomplete framebuffer %dx%d: status 0x%x", width, height, status)
	}
	t.depthTex = b.registerTexture(t.depth, width, height)
	t.colourTex = b.registerTexture(t.colour, width, height)
	t.normalTex = b.registerTexture(t.normal, width, height)
	t.positionTex = b.registerTexture(t.position, width, height)
	b.targets = append(b.targets, t)
	return t, glgl.Err()
}

// registerTexture makes tex resident and adds its bindless handle to the
// texture table. A zero tex is not registered.
func (b *Backend) registerTexture(tex, width, height uint32) *rendergraph.Texture {
	if tex == 0 {
		return nil
	}
	handle := gl.GetTextureHandleARB(tex)
	gl.MakeTextureHandleResidentARB(handle)
	return b.textures.add(handle, width, height)
}

func (b *Backend) unregisterTexture(tex *rendergraph.Texture) {
	if tex != nil {
		gl.MakeTextureHandleNonResidentARB(b.textures.remove(tex))
	}
}

func newTexture(width, height uint32, internalFormat int32, format uint32) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internalFormat, int32(width), int32(height), 0, format, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return tex
}

// DeleteRenderTarget frees the target's framebuffer and textures.
func (b *Backend) DeleteRenderTarget(t *Target) {
	for _, tex := range []*rendergraph.Texture{t.depthTex, t.colourTex, t.normalTex, t.positionTex} {
		b.unregisterTexture(tex)
	}
	gl.DeleteFramebuffers(1, &t.fbo)
	for _, tex := range []*uint32{&t.depth, &t.colour, &t.normal, &t.position} {
		if *tex != 0 {
			gl.DeleteTextures(1, tex)
		}
	}
	*t = Target{}
}

// PreRender uploads the texture table if textures were added or removed.
func (b *Backend) PreRender() error {
	c := b.cfg.ClearColour
	gl.ClearColor(c.R, c.G, c.B, c.A)
	if b.textures.dirty && len(b.textures.handles) > 0 {
		handles := b.textures.handles
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.textureSSBO)
		gl.BufferData(gl.SHADER_STORAGE_BUFFER, 8*len(handles), gl.Ptr(handles), gl.DYNAMIC_DRAW)
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
		b.textures.dirty = false
	}
	return glgl.Err()
}

func (b *Backend) ExecutePassStart(cmd *render.Command) error {
	p := cmd.Pass
	width, height := uint32(b.cfg.Width), uint32(b.cfg.Height)
	var fbo uint32
	if p.Target != nil {
		t, ok := p.Target.(*Target)
		if !ok {
			return errTarget
		}
		fbo = t.fbo
		width, height = t.Size()
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.Viewport(0, 0, int32(width), int32(height))
	if p.DepthOnly {
		gl.ColorMask(false, false, false, false)
		gl.Clear(gl.DEPTH_BUFFER_BIT)
	} else {
		gl.ColorMask(true, true, true, true)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	}
	b.pass = p

	buf := b.scratch[:0]
	var cam scene.Camera
	if p.Camera != nil {
		cam = *p.Camera
	}
	buf = appendMat4(buf, cam.Projection)
	buf = appendMat4(buf, cam.View)
	buf = appendVec4(buf, cam.Position, 1)
	buf = append(buf, float32(width), float32(height), 1/float32(width), 1/float32(height))
	b.scratch = buf
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.cameraUBO)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, 4*len(buf), gl.Ptr(buf))
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	return glgl.Err()
}

// ExecuteDraw draws the entity's mesh with its material. Ambient draws
// overwrite the target; every other light is blended additively on top.
func (b *Backend) ExecuteDraw(cmd *render.Command) error {
	mesh, ok := cmd.Entity.Mesh.(*Mesh)
	if !ok {
		return errMesh
	}
	prog, ok := cmd.Material.Program.(*program)
	if !ok {
		return errProgram
	}
	if err := b.uploadLight(cmd.Light); err != nil {
		return err
	}
	if cmd.Light.LightType() == rendergraph.LightAmbient {
		gl.Disable(gl.BLEND)
		gl.DepthMask(true)
	} else {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.ONE, gl.ONE)
		gl.DepthMask(false)
	}
	prog.prog.Bind()
	defer prog.prog.Unbind()
	setMat4(prog.prog, "model\x00", cmd.Entity.Transform)
	setMat4(prog.prog, "normal_matrix\x00", cmd.Entity.Transform)
	if cmd.ShadowMap != nil {
		t, ok := cmd.ShadowMap.(*Target)
		if !ok {
			return errTarget
		}
		if loc := gl.GetUniformLocation(prog.prog.ID(), gl.Str("shadow_map_index\x00")); loc >= 0 {
			gl.Uniform1i(loc, int32(t.depthTex.Index))
		}
	}
	gl.BindVertexArray(mesh.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, mesh.count, gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)
	return glgl.Err()
}

func setMat4(prog glgl.Program, name string, m ms3.Mat4) {
	loc := gl.GetUniformLocation(prog.ID(), gl.Str(name))
	if loc < 0 {
		return
	}
	arr := m.Array()
	gl.UniformMatrix4fv(loc, 1, true, &arr[0])
}

func (b *Backend) uploadLight(l scene.Light) error {
	if l == nil {
		return errors.New("draw command without light")
	}
	identity := ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1})
	projection, view := identity, identity
	var position, attenuation ms3.Vec
	var w float32
	switch l := l.(type) {
	case *scene.PointLight:
		position, attenuation, w = l.Position, l.Attenuation, 1
	case *scene.DirectionalLight:
		position = l.Direction
		projection, view = l.ShadowCamera.Projection, l.ShadowCamera.View
	}
	c := l.LightColour()
	buf := b.scratch[:0]
	buf = appendMat4(buf, projection)
	buf = appendMat4(buf, view)
	buf = append(buf, c.R, c.G, c.B, c.A)
	buf = appendVec4(buf, position, w)
	buf = appendVec4(buf, attenuation, 0)
	b.scratch = buf
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.lightUBO)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, 4*len(buf), gl.Ptr(buf))
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	return nil
}

func (b *Backend) ExecutePassEnd(cmd *render.Command) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.ColorMask(true, true, true, true)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
	b.pass = nil
	return glgl.Err()
}

func (b *Backend) ExecutePresent(*render.Command) error {
	b.window.SwapBuffers()
	glfw.PollEvents()
	b.frames++
	return nil
}

func (b *Backend) PostRender() error {
	return glgl.Err()
}
