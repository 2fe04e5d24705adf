// Package scene holds the entities, render graphs and lights that make up
// what is drawn in a render pass.
package scene

import (
	"errors"
	"slices"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rendergraph"
)

var (
	errNilGraph      = errors.New("nil render graph")
	errForeignGraph  = errors.New("render graph does not belong to scene")
	errEntityMissing = errors.New("entity not in scene")
)

// Mesh is an opaque handle to vertex data owned by a mesh manager.
type Mesh interface{}

// Entity is a mesh drawn with the material described by a render graph.
type Entity struct {
	Mesh      Mesh
	Transform ms3.Mat4
	// ReceiveShadow enables sampling of directional light shadow maps.
	ReceiveShadow bool
	graph         *rendergraph.Graph
}

// RenderGraph returns the graph the entity is drawn with.
func (e *Entity) RenderGraph() *rendergraph.Graph { return e.graph }

// Camera holds the view and projection used to draw a pass.
type Camera struct {
	Position   ms3.Vec
	View       ms3.Mat4
	Projection ms3.Mat4
}

// Scene owns render graphs and the entities drawn with them. A Scene is not
// safe for concurrent modification.
type Scene struct {
	graphs   []*rendergraph.Graph
	entities []*Entity
	rig      LightingRig
}

// New returns an empty scene lit by a white ambient light.
func New() *Scene {
	return &Scene{rig: LightingRig{Ambient: AmbientLight{Colour: rendergraph.Colour{R: 1, G: 1, B: 1, A: 1}}}}
}

// CreateRenderGraph creates an empty render graph owned by the scene.
func (s *Scene) CreateRenderGraph() *rendergraph.Graph {
	g := rendergraph.NewRenderGraph()
	s.graphs = append(s.graphs, g)
	return g
}

// AddRenderGraph transfers ownership of g to the scene.
func (s *Scene) AddRenderGraph(g *rendergraph.Graph) error {
	if g == nil {
		return errNilGraph
	}
	if !slices.Contains(s.graphs, g) {
		s.graphs = append(s.graphs, g)
	}
	return nil
}

// RenderGraphs returns the graphs owned by the scene.
func (s *Scene) RenderGraphs() []*rendergraph.Graph { return s.graphs }

// CreateEntity adds an entity drawing mesh with g, which must be owned by the scene.
// The entity's transform is the identity.
func (s *Scene) CreateEntity(g *rendergraph.Graph, mesh Mesh) (*Entity, error) {
	if g == nil {
		return nil, errNilGraph
	} else if !slices.Contains(s.graphs, g) {
		return nil, errForeignGraph
	}
	e := NewEntity(g, mesh)
	s.entities = append(s.entities, e)
	return e, nil
}

// NewEntity returns an entity that belongs to no scene, such as a sky box
// drawn by a render pass. The entity's transform is the identity.
func NewEntity(g *rendergraph.Graph, mesh Mesh) *Entity {
	return &Entity{
		Mesh:      mesh,
		Transform: ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}),
		graph:     g,
	}
}

// Remove removes e from the scene. Its render graph stays owned by the scene.
func (s *Scene) Remove(e *Entity) error {
	idx := slices.Index(s.entities, e)
	if idx < 0 {
		return errEntityMissing
	}
	s.entities = slices.Delete(s.entities, idx, idx+1)
	return nil
}

// Entities returns the scene's entities in creation order.
func (s *Scene) Entities() []*Entity { return s.entities }

// LightingRig returns the scene's lights.
func (s *Scene) LightingRig() *LightingRig { return &s.rig }

// SetAmbientLight sets the colour of the ambient light.
func (s *Scene) SetAmbientLight(c rendergraph.Colour) { s.rig.Ambient.Colour = c }

// AddPointLight adds a point light. attenuation holds the constant, linear and
// quadratic attenuation terms.
func (s *Scene) AddPointLight(position ms3.Vec, c rendergraph.Colour, attenuation ms3.Vec) *PointLight {
	l := &PointLight{Position: position, Colour: c, Attenuation: attenuation}
	s.rig.Points = append(s.rig.Points, l)
	return l
}

// AddDirectionalLight adds a directional light shining along direction.
func (s *Scene) AddDirectionalLight(direction ms3.Vec, c rendergraph.Colour, castsShadows bool) *DirectionalLight {
	l := &DirectionalLight{Direction: ms3.Unit(direction), Colour: c, CastsShadows: castsShadows}
	s.rig.Directionals = append(s.rig.Directionals, l)
	return l
}
