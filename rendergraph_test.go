package rendergraph

import (
	"errors"
	"image/color"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRedGraph(g *Graph) NodeID {
	c := g.Add(&ColourNode{Colour: Colour{R: 1, A: 1}})
	root := g.Add(&RenderNode{Colour: c})
	g.SetRoot(root)
	return root
}

func TestStructuralHashEqual(t *testing.T) {
	g1, g2 := NewRenderGraph(), NewRenderGraph()
	buildRedGraph(g1)
	// Extra unrelated nodes must not change the root hash.
	AddValue(g2, float32(3))
	buildRedGraph(g2)
	require.NotZero(t, g1.RootHash())
	assert.Equal(t, g1.RootHash(), g2.RootHash())
	assert.NotEqual(t, g1.Root(), g2.Root(), "handles differ, hashes do not")
}

func TestHashDependsOnPayloadAndInputs(t *testing.T) {
	g := NewRenderGraph()
	a := AddValue(g, float32(1))
	b := AddValue(g, float32(2))
	a2 := AddValue(g, float32(1))
	assert.Equal(t, g.Hash(a), g.Hash(a2))
	assert.NotEqual(t, g.Hash(a), g.Hash(b))

	add := g.Add(&ArithmeticNode{A: a, B: b, Op: OpAdd})
	sub := g.Add(&ArithmeticNode{A: a, B: b, Op: OpSubtract})
	swapped := g.Add(&ArithmeticNode{A: b, B: a, Op: OpAdd})
	assert.NotEqual(t, g.Hash(add), g.Hash(sub))
	assert.NotEqual(t, g.Hash(add), g.Hash(swapped))

	// Same literal bits with different value types must not collide.
	f := AddValue(g, float32(0))
	v := AddValue(g, ms3.Vec{})
	c := AddValue(g, Colour{})
	assert.NotEqual(t, g.Hash(f), g.Hash(v))
	assert.NotEqual(t, g.Hash(v), g.Hash(c))

	x := g.Add(&ComponentNode{Input: v, Component: "x"})
	y := g.Add(&ComponentNode{Input: v, Component: "y"})
	assert.NotEqual(t, g.Hash(x), g.Hash(y))
}

func TestHashDistinguishesKinds(t *testing.T) {
	var ids ResourceIDs
	tex := ids.NewTexture("", 0, 4, 4, nil)
	g := NewRenderGraph()
	zero := AddValue(g, float32(0))
	colour := g.Add(&ColourNode{})
	texture := g.Add(&TextureNode{Texture: tex})
	sin := g.Add(&SinNode{Input: texture})
	invert := g.Add(&InvertNode{Input: texture})
	blur := g.Add(&BlurNode{Input: texture})
	sinZero := g.Add(&SinNode{Input: zero})
	invertZero := g.Add(&InvertNode{Input: zero})
	nodes := []NodeID{zero, colour, texture, sin, invert, blur, sinZero, invertZero}
	seen := make(map[uint64]NodeID)
	for _, id := range nodes {
		h := g.Hash(id)
		assert.NotZero(t, h, "node %s of kind %s", id, g.Node(id).Kind())
		if prev, ok := seen[h]; ok {
			t.Errorf("%s (%s) and %s (%s) share hash %x", prev, g.Node(prev).Kind(), id, g.Node(id).Kind(), h)
		}
		seen[h] = id
	}
}

func TestTextureHashUsesBinding(t *testing.T) {
	// Hand made handles without an ID still compile to different shaders.
	g := NewRenderGraph()
	a := g.Add(&TextureNode{Texture: &Texture{Index: 0}})
	b := g.Add(&TextureNode{Texture: &Texture{Index: 7}})
	c := g.Add(&TextureNode{Texture: &Texture{Index: 7, Sampler: &Sampler{Index: 2}}})
	assert.NotEqual(t, g.Hash(a), g.Hash(b))
	assert.NotEqual(t, g.Hash(b), g.Hash(c))
	d := g.Add(&TextureNode{Texture: &Texture{Index: 7, Sampler: &Sampler{Index: 0}}})
	assert.Equal(t, g.Hash(b), g.Hash(d), "nil sampler binds index 0")
}

func TestAddRejectsNonFinite(t *testing.T) {
	nan, inf := math32.NaN(), math32.Inf(1)
	g := NewRenderGraph()
	g.NoInputPanic = true
	var ids ResourceIDs
	pos := g.Add(&TextureNode{Texture: ids.NewTexture("", 0, 4, 4, nil)})
	nrm := g.Add(&TextureNode{Texture: ids.NewTexture("", 1, 4, 4, nil)})
	nodes := []Node{
		&ValueNode[float32]{Value: nan},
		&ValueNode[ms3.Vec]{Value: ms3.Vec{Y: inf}},
		&ValueNode[Colour]{Value: Colour{A: nan}},
		&ColourNode{Colour: Colour{R: -inf}},
		&AmbientOcclusionNode{Position: pos, Normal: nrm, SampleCount: 4, Radius: nan},
		&AmbientOcclusionNode{Position: pos, Normal: nrm, SampleCount: 4, Radius: inf},
		&AmbientOcclusionNode{Position: pos, Normal: nrm, SampleCount: 4, Radius: 1, Bias: nan},
		&ColourAdjustNode{Gamma: nan},
	}
	for i, n := range nodes {
		g.ClearErrors()
		assert.Equal(t, Nil, g.Add(n), "node %d", i)
		assert.Error(t, g.Err(), "node %d", i)
	}
	g.ClearErrors()
	assert.NotEqual(t, Nil, g.Add(&AmbientOcclusionNode{Position: pos, Normal: nrm, SampleCount: 4, Radius: 1, Bias: -0.5}))
	assert.NoError(t, g.Err())
}

func TestTextureHashUsesIdentity(t *testing.T) {
	var ids ResourceIDs
	t1 := ids.NewTexture("", 0, 4, 4, nil)
	t2 := ids.NewTexture("", 1, 4, 4, nil)
	g := NewRenderGraph()
	n1 := g.Add(&TextureNode{Texture: t1})
	n2 := g.Add(&TextureNode{Texture: t2})
	n1b := g.Add(&TextureNode{Texture: t1})
	assert.NotEqual(t, g.Hash(n1), g.Hash(n2))
	assert.Equal(t, g.Hash(n1), g.Hash(n1b))
	screen := g.Add(&TextureNode{Texture: t1, UVSource: UVScreenSpace})
	assert.NotEqual(t, g.Hash(n1), g.Hash(screen))
}

func TestSetTextureRehashes(t *testing.T) {
	var ids ResourceIDs
	t1 := ids.NewTexture("a", 0, 4, 4, nil)
	t2 := ids.NewTexture("b", 1, 4, 4, nil)
	g := NewRenderGraph()
	tex := g.Add(&TextureNode{Texture: t1})
	root := g.Add(&RenderNode{Colour: tex})
	g.SetRoot(root)
	before := g.RootHash()
	require.NoError(t, g.SetTexture(tex, t2))
	assert.NotEqual(t, before, g.RootHash())
	require.NoError(t, g.SetTexture(tex, t1))
	assert.Equal(t, before, g.RootHash())

	c := g.Add(&ColourNode{})
	assert.ErrorIs(t, g.SetTexture(c, t1), ErrNotTexture)
}

func TestAddValidation(t *testing.T) {
	var ids ResourceIDs
	g := NewRenderGraph()
	g.NoInputPanic = true
	one := AddValue(g, float32(1))
	tests := []struct {
		name string
		node Node
		want error
	}{
		{"missing arithmetic input", &ArithmeticNode{A: one}, ErrMissingInput},
		{"unknown input", &InvertNode{Input: 99}, ErrUnknownNode},
		{"blur of non texture", &BlurNode{Input: one}, ErrNotTexture},
		{"ao normal not texture", &AmbientOcclusionNode{Position: one, Normal: one, SampleCount: 4, Radius: 1}, ErrNotTexture},
		{"missing combine w", &CombineNode{X: one, Y: one, Z: one}, ErrMissingInput},
		{"nil texture", &TextureNode{}, errNilTexture},
		{"nil cube map", &SkyBoxNode{}, errNilTexture},
		{"bad swizzle", &ComponentNode{Input: one, Component: "xr"}, nil},
		{"long swizzle", &VertexNode{Swizzle: "xyzwx"}, nil},
		{"zero gamma", &ColourAdjustNode{}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g.ClearErrors()
			id := g.Add(test.node)
			assert.Equal(t, Nil, id)
			err := g.Err()
			require.Error(t, err)
			if test.want != nil {
				assert.ErrorIs(t, err, test.want)
			}
		})
	}
	g.ClearErrors()
	root := g.Add(&RenderNode{})
	g.Add(&InvertNode{Input: root})
	assert.ErrorIs(t, g.Err(), ErrRootAsInput)

	g.ClearErrors()
	tex := g.Add(&TextureNode{Texture: ids.NewTexture("", 0, 1, 1, nil)})
	g.Add(&BlurNode{Input: tex})
	assert.NoError(t, g.Err())
}

func TestAddPanicsByDefault(t *testing.T) {
	g := NewRenderGraph()
	assert.Panics(t, func() { g.Add(&SinNode{}) })
	assert.Panics(t, func() { g.SetRoot(AddValue(g, float32(1))) })
}

func TestSetRootRejectsNonRoot(t *testing.T) {
	g := NewRenderGraph()
	g.NoInputPanic = true
	v := AddValue(g, float32(1))
	g.SetRoot(v)
	assert.ErrorIs(t, g.Err(), ErrNotRoot)
	assert.Equal(t, Nil, g.Root())
	g.SetRoot(42)
	assert.ErrorIs(t, g.Err(), ErrUnknownNode)
}

func TestForEachInput(t *testing.T) {
	g := NewRenderGraph()
	a := AddValue(g, float32(1))
	b := AddValue(g, float32(2))
	cond := g.Add(&ConditionalNode{Input1: a, Input2: b, Output1: b, Output2: a, Op: OpLess})
	var got []NodeID
	err := g.ForEachInput(cond, func(in NodeID) error {
		got = append(got, in)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a, b, b, a}, got)

	stop := errors.New("stop")
	err = g.ForEachInput(cond, func(NodeID) error { return stop })
	assert.ErrorIs(t, err, stop)

	root := g.Add(&RenderNode{Colour: cond})
	got = got[:0]
	require.NoError(t, g.ForEachInput(root, func(in NodeID) error {
		got = append(got, in)
		return nil
	}))
	assert.Equal(t, []NodeID{cond}, got, "unset optional inputs are skipped")
}

func TestResourceIDs(t *testing.T) {
	var ids ResourceIDs
	s := ids.NewSampler(2)
	tex := ids.NewTexture("", 3, 16, 8, s)
	assert.NotEqual(t, s.ID, tex.ID)
	assert.Equal(t, "texture_2", tex.Name)
	assert.Same(t, s, tex.Sampler)

	square := [6][2]uint32{{8, 8}, {8, 8}, {8, 8}, {8, 8}, {8, 8}, {8, 8}}
	cm, err := ids.NewCubeMap("sky", 0, square, s)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), cm.Size)

	bad := square
	bad[4] = [2]uint32{8, 4}
	_, err = ids.NewCubeMap("", 0, bad, s)
	assert.ErrorIs(t, err, errCubeMapFaces)
}

func TestColour(t *testing.T) {
	c := ColourFrom(color.RGBA{R: 255, A: 255})
	assert.InDelta(t, 1, c.R, 1e-6)
	assert.InDelta(t, 0, c.G, 1e-6)
	r, g, b, a := Colour{R: 2, G: -1, B: 0.5, A: 1}.RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Equal(t, uint32(0x8000), b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestLightTypeParse(t *testing.T) {
	for _, lt := range LightTypes() {
		got, err := ParseLightType(lt.String())
		require.NoError(t, err)
		assert.Equal(t, lt, got)
	}
	_, err := ParseLightType("spot")
	assert.Error(t, err)
	assert.False(t, LightType(7).IsValid())
}
