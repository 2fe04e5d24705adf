package scene

import (
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rendergraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntities(t *testing.T) {
	s := New()
	g := s.CreateRenderGraph()
	e1, err := s.CreateEntity(g, "cube")
	require.NoError(t, err)
	e2, err := s.CreateEntity(g, "sphere")
	require.NoError(t, err)
	assert.Same(t, g, e1.RenderGraph())
	assert.Equal(t, []*Entity{e1, e2}, s.Entities())
	assert.Equal(t, ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}), e1.Transform)

	require.NoError(t, s.Remove(e1))
	assert.Equal(t, []*Entity{e2}, s.Entities())
	assert.ErrorIs(t, s.Remove(e1), errEntityMissing)

	_, err = s.CreateEntity(rendergraph.NewRenderGraph(), nil)
	assert.ErrorIs(t, err, errForeignGraph)
	_, err = s.CreateEntity(nil, nil)
	assert.ErrorIs(t, err, errNilGraph)

	foreign := rendergraph.NewRenderGraph()
	require.NoError(t, s.AddRenderGraph(foreign))
	require.NoError(t, s.AddRenderGraph(foreign))
	assert.Len(t, s.RenderGraphs(), 2)
	_, err = s.CreateEntity(foreign, nil)
	assert.NoError(t, err)
}

func TestLightingRig(t *testing.T) {
	s := New()
	assert.Equal(t, rendergraph.Colour{R: 1, G: 1, B: 1, A: 1}, s.LightingRig().Ambient.Colour)
	s.SetAmbientLight(rendergraph.Colour{R: 0.1, G: 0.1, B: 0.1, A: 1})
	assert.Equal(t, float32(0.1), s.LightingRig().Ambient.Colour.R)

	white := rendergraph.Colour{R: 1, G: 1, B: 1, A: 1}
	p := s.AddPointLight(ms3.Vec{Y: 2}, white, ms3.Vec{X: 1, Y: 0.09, Z: 0.032})
	sun := s.AddDirectionalLight(ms3.Vec{Y: -4}, white, true)
	moon := s.AddDirectionalLight(ms3.Vec{X: 1}, white, false)
	assert.Equal(t, ms3.Vec{Y: -1}, sun.Direction, "direction is normalized")

	rig := s.LightingRig()
	assert.Equal(t, []*PointLight{p}, rig.Points)
	assert.Equal(t, []*DirectionalLight{sun, moon}, rig.Directionals)
	assert.Equal(t, []*DirectionalLight{sun}, rig.ShadowCasters())

	var lights []Light = []Light{&rig.Ambient, p, sun}
	want := []rendergraph.LightType{rendergraph.LightAmbient, rendergraph.LightPoint, rendergraph.LightDirectional}
	for i, l := range lights {
		assert.Equal(t, want[i], l.LightType())
		assert.Equal(t, float32(1), l.LightColour().A)
	}
}
