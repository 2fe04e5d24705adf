package render

import (
	"errors"
	"fmt"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/material"
	"github.com/soypat/rendergraph/scene"
)

// ShadowMapSize is the width and height of directional light shadow maps.
const ShadowMapSize = 1024

var (
	errNoMaterialFunc = errors.New("queue builder has no material callback")
	errNoTargetFunc   = errors.New("queue builder has no render target callback")
	errNoScene        = errors.New("pass has no scene")
)

// MaterialFunc returns the material entity is drawn with into target under light.
type MaterialFunc func(g *rendergraph.Graph, entity *scene.Entity, target RenderTarget, light rendergraph.LightType, renderNormal, renderPosition bool) (*material.Material, error)

// TargetFunc creates a render target.
type TargetFunc func(width, height uint32, depthOnly bool) (RenderTarget, error)

// ManagerMaterials adapts a material manager to a [MaterialFunc].
func ManagerMaterials(m *material.Manager) MaterialFunc {
	return func(g *rendergraph.Graph, _ *scene.Entity, _ RenderTarget, light rendergraph.LightType, renderNormal, renderPosition bool) (*material.Material, error) {
		return m.Create(g, light, renderNormal, renderPosition)
	}
}

// QueueBuilder flattens passes into a command queue. Shadow map targets and
// sky box entities are created once and reused across builds.
type QueueBuilder struct {
	CreateMaterial     MaterialFunc
	CreateRenderTarget TargetFunc
	// SkyBoxMesh is the cube drawn for passes with a sky box.
	SkyBoxMesh scene.Mesh

	shadowTargets map[*scene.DirectionalLight]RenderTarget
	skyBoxes      map[*rendergraph.CubeMap]*scene.Entity
}

// Build returns the command queue for passes. For every shadow casting
// directional light a depth only shadow pass is prepended. Each pass is
// bracketed by pass start and end commands and contains, in order: ambient
// draws of every entity and, unless depth only, point light draws, directional
// light draws and the sky box draw. A single present command ends the queue.
func (b *QueueBuilder) Build(passes []*Pass) ([]Command, error) {
	if b.CreateMaterial == nil {
		return nil, errNoMaterialFunc
	}
	var shadowPasses []*Pass
	shadowMaps := make(map[*scene.DirectionalLight]RenderTarget)
	for i, p := range passes {
		if p == nil || p.Scene == nil {
			return nil, fmt.Errorf("pass %d: %w", i, errNoScene)
		} else if p.DepthOnly {
			continue
		}
		for _, l := range p.Scene.LightingRig().ShadowCasters() {
			if _, ok := shadowMaps[l]; ok {
				continue
			}
			target, err := b.shadowTarget(l)
			if err != nil {
				return nil, err
			}
			shadowMaps[l] = target
			shadowPasses = append(shadowPasses, &Pass{
				Scene:     p.Scene,
				Camera:    &l.ShadowCamera,
				Target:    target,
				DepthOnly: true,
			})
		}
	}

	var cmds []Command
	var err error
	for _, p := range shadowPasses {
		cmds, err = b.appendPass(cmds, p, shadowMaps)
		if err != nil {
			return nil, err
		}
	}
	for _, p := range passes {
		cmds, err = b.appendPass(cmds, p, shadowMaps)
		if err != nil {
			return nil, err
		}
	}
	return append(cmds, Command{Type: CommandPresent}), nil
}

func (b *QueueBuilder) appendPass(cmds []Command, p *Pass, shadowMaps map[*scene.DirectionalLight]RenderTarget) ([]Command, error) {
	if p.Scene == nil {
		return nil, errNoScene
	}
	cmds = append(cmds, Command{Type: CommandPassStart, Pass: p})
	rig := p.Scene.LightingRig()
	entities := p.Scene.Entities()
	draw := func(e *scene.Entity, light scene.Light, shadowMap RenderTarget) error {
		mat, err := b.CreateMaterial(e.RenderGraph(), e, p.Target, light.LightType(), p.RenderNormal, p.RenderPosition)
		if err != nil {
			return fmt.Errorf("%s material: %w", light.LightType(), err)
		}
		cmds = append(cmds, Command{
			Type:      CommandDraw,
			Pass:      p,
			Entity:    e,
			Material:  mat,
			Light:     light,
			ShadowMap: shadowMap,
		})
		return nil
	}

	for _, e := range entities {
		if err := draw(e, &rig.Ambient, nil); err != nil {
			return nil, err
		}
	}
	if !p.DepthOnly {
		for _, l := range rig.Points {
			for _, e := range entities {
				if err := draw(e, l, nil); err != nil {
					return nil, err
				}
			}
		}
		for _, l := range rig.Directionals {
			for _, e := range entities {
				var shadowMap RenderTarget
				if e.ReceiveShadow {
					shadowMap = shadowMaps[l]
				}
				if err := draw(e, l, shadowMap); err != nil {
					return nil, err
				}
			}
		}
		if p.SkyBox != nil {
			if err := draw(b.skyBox(p.SkyBox), &rig.Ambient, nil); err != nil {
				return nil, err
			}
		}
	}
	return append(cmds, Command{Type: CommandPassEnd, Pass: p}), nil
}

func (b *QueueBuilder) shadowTarget(l *scene.DirectionalLight) (RenderTarget, error) {
	if target, ok := b.shadowTargets[l]; ok {
		return target, nil
	} else if b.CreateRenderTarget == nil {
		return nil, errNoTargetFunc
	}
	target, err := b.CreateRenderTarget(ShadowMapSize, ShadowMapSize, true)
	if err != nil {
		return nil, fmt.Errorf("creating shadow map: %w", err)
	}
	if b.shadowTargets == nil {
		b.shadowTargets = make(map[*scene.DirectionalLight]RenderTarget)
	}
	b.shadowTargets[l] = target
	return target, nil
}

func (b *QueueBuilder) skyBox(cm *rendergraph.CubeMap) *scene.Entity {
	if e, ok := b.skyBoxes[cm]; ok {
		return e
	}
	g := rendergraph.NewRenderGraph()
	g.SetRoot(g.Add(&rendergraph.SkyBoxNode{CubeMap: cm}))
	e := scene.NewEntity(g, b.SkyBoxMesh)
	if b.skyBoxes == nil {
		b.skyBoxes = make(map[*rendergraph.CubeMap]*scene.Entity)
	}
	b.skyBoxes[cm] = e
	return e
}

// Reset forgets shadow map targets and sky box entities so they are
// recreated on the next build.
func (b *QueueBuilder) Reset() {
	clear(b.shadowTargets)
	clear(b.skyBoxes)
}
