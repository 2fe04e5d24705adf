package scene

import (
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rendergraph"
)

// Light is a light source of the lighting rig.
type Light interface {
	LightType() rendergraph.LightType
	LightColour() rendergraph.Colour
}

// AmbientLight lights every fragment evenly.
type AmbientLight struct {
	Colour rendergraph.Colour
}

func (*AmbientLight) LightType() rendergraph.LightType  { return rendergraph.LightAmbient }
func (l *AmbientLight) LightColour() rendergraph.Colour { return l.Colour }

// PointLight emits in all directions from Position.
type PointLight struct {
	Position ms3.Vec
	Colour   rendergraph.Colour
	// Attenuation holds constant (X), linear (Y) and quadratic (Z) terms.
	Attenuation ms3.Vec
}

func (*PointLight) LightType() rendergraph.LightType  { return rendergraph.LightPoint }
func (l *PointLight) LightColour() rendergraph.Colour { return l.Colour }

// DirectionalLight is a light infinitely far away shining along Direction.
type DirectionalLight struct {
	Direction    ms3.Vec
	Colour       rendergraph.Colour
	CastsShadows bool
	// ShadowCamera renders the shadow map when CastsShadows is set.
	ShadowCamera Camera
}

func (*DirectionalLight) LightType() rendergraph.LightType  { return rendergraph.LightDirectional }
func (l *DirectionalLight) LightColour() rendergraph.Colour { return l.Colour }

// LightingRig is the set of lights of a scene.
type LightingRig struct {
	Ambient      AmbientLight
	Points       []*PointLight
	Directionals []*DirectionalLight
}

// ShadowCasters returns the directional lights that cast shadows in rig order.
func (r *LightingRig) ShadowCasters() []*DirectionalLight {
	var casters []*DirectionalLight
	for _, l := range r.Directionals {
		if l.CastsShadows {
			casters = append(casters, l)
		}
	}
	return casters
}
