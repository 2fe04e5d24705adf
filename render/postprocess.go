package render

import (
	"errors"
	"fmt"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/scene"
)

var errNoSampledTargetFunc = errors.New("post-processing requires a sampled render target callback")

// AmbientOcclusion configures screen space ambient occlusion.
type AmbientOcclusion struct {
	// SampleCount is the amount of hemisphere samples taken per fragment.
	SampleCount uint32
	// Radius of the sample hemisphere in view space units.
	Radius float32
	// Bias is added to sample depths before comparison to avoid acne.
	Bias float32
}

// DefaultAmbientOcclusion returns 32 samples over a 0.5 radius with a 0.025 bias.
func DefaultAmbientOcclusion() *AmbientOcclusion {
	return &AmbientOcclusion{SampleCount: 32, Radius: 0.5, Bias: 0.025}
}

// ColourAdjust configures tone mapping and gamma correction.
type ColourAdjust struct {
	Gamma   float32
	ToneMap rendergraph.ToneMapCurve
}

// DefaultColourAdjust returns Reinhard tone mapping with a 2.2 gamma.
func DefaultColourAdjust() *ColourAdjust {
	return &ColourAdjust{Gamma: 2.2, ToneMap: rendergraph.ToneMapReinhard}
}

// AntiAliasing enables fast approximate anti-aliasing. It has no settings.
type AntiAliasing struct{}

// PostProcessing selects the full screen effects applied to a pass's output.
// Effects run in field order and nil fields are disabled.
type PostProcessing struct {
	AmbientOcclusion *AmbientOcclusion
	ColourAdjust     *ColourAdjust
	AntiAliasing     *AntiAliasing
}

// Enabled reports whether any effect is set.
func (pp *PostProcessing) Enabled() bool {
	return pp.AmbientOcclusion != nil || pp.ColourAdjust != nil || pp.AntiAliasing != nil
}

// SampledTarget is a render target whose attachments later passes sample.
type SampledTarget interface {
	RenderTarget
	ColourTexture() *rendergraph.Texture
	// NormalTexture and PositionTexture hold view space G-buffer data.
	// They are nil unless the target was created as a G-buffer.
	NormalTexture() *rendergraph.Texture
	PositionTexture() *rendergraph.Texture
}

// SampledTargetFunc creates a colour target sampled by post-processing passes.
// gBuffer adds normal and position attachments.
type SampledTargetFunc func(width, height uint32, gBuffer bool) (SampledTarget, error)

// postKey identifies the inputs a post-processing chain was built from.
type postKey struct {
	ao            AmbientOcclusion
	ca            ColourAdjust
	effects       [3]bool
	width, height uint32
	target        RenderTarget
	camera        *scene.Camera
}

func newPostKey(pass *Pass, width, height uint32) postKey {
	pp := &pass.PostProcessing
	k := postKey{width: width, height: height, target: pass.Target, camera: pass.Camera}
	if pp.AmbientOcclusion != nil {
		k.ao, k.effects[0] = *pp.AmbientOcclusion, true
	}
	if pp.ColourAdjust != nil {
		k.ca, k.effects[1] = *pp.ColourAdjust, true
	}
	k.effects[2] = pp.AntiAliasing != nil
	return k
}

// postChain holds the engine created passes post-processing a user pass.
type postChain struct {
	key     postKey
	gbuffer SampledTarget
	effects []*Pass
}

type effectFunc func(g *rendergraph.Graph, colour rendergraph.NodeID) rendergraph.Node

// newPostChain creates the targets, scenes and graphs of the effects of pass.
// Each effect is a full screen quad sampling the colour of the previous
// target. The last effect draws into the pass's own target.
func newPostChain(key postKey, pass *Pass, targets SampledTargetFunc, quad scene.Mesh) (*postChain, error) {
	pp := &pass.PostProcessing
	gbuffer, err := targets(key.width, key.height, pp.AmbientOcclusion != nil)
	if err != nil {
		return nil, fmt.Errorf("creating scene target: %w", err)
	}
	var effects []effectFunc
	if ao := pp.AmbientOcclusion; ao != nil {
		effects = append(effects, func(g *rendergraph.Graph, colour rendergraph.NodeID) rendergraph.Node {
			return &rendergraph.AmbientOcclusionNode{
				Colour:      colour,
				Position:    g.Add(&rendergraph.TextureNode{Texture: gbuffer.PositionTexture()}),
				Normal:      g.Add(&rendergraph.TextureNode{Texture: gbuffer.NormalTexture()}),
				SampleCount: ao.SampleCount,
				Radius:      ao.Radius,
				Bias:        ao.Bias,
			}
		})
	}
	if ca := pp.ColourAdjust; ca != nil {
		effects = append(effects, func(_ *rendergraph.Graph, colour rendergraph.NodeID) rendergraph.Node {
			return &rendergraph.ColourAdjustNode{Colour: colour, Gamma: ca.Gamma, ToneMap: ca.ToneMap}
		})
	}
	if pp.AntiAliasing != nil {
		effects = append(effects, func(_ *rendergraph.Graph, colour rendergraph.NodeID) rendergraph.Node {
			return &rendergraph.AntiAliasingNode{Input: colour}
		})
	}

	chain := &postChain{key: key, gbuffer: gbuffer}
	src := gbuffer
	for i, effect := range effects {
		target := pass.Target
		var next SampledTarget
		if i < len(effects)-1 {
			next, err = targets(key.width, key.height, false)
			if err != nil {
				return nil, fmt.Errorf("creating post-processing target: %w", err)
			}
			target = next
		}
		s := scene.New()
		g := s.CreateRenderGraph()
		g.NoInputPanic = true
		colour := g.Add(&rendergraph.TextureNode{Texture: src.ColourTexture()})
		g.SetRoot(g.Add(effect(g, colour)))
		if err := g.Err(); err != nil {
			return nil, err
		}
		if _, err := s.CreateEntity(g, quad); err != nil {
			return nil, err
		}
		chain.effects = append(chain.effects, &Pass{Scene: s, Camera: pass.Camera, Target: target})
		src = next
	}
	return chain, nil
}

// Build returns the passes drawn each frame. Passes without post-processing
// are returned as is. A pass with post-processing is drawn into an offscreen
// target, which is a G-buffer when ambient occlusion is enabled, followed by
// one pass per effect. Chains are reused across builds until the pass's
// effects, target, camera or the pipeline size change. quad is the full
// screen mesh effects are drawn with.
func (p *Pipeline) Build(targets SampledTargetFunc, quad scene.Mesh) ([]*Pass, error) {
	out := make([]*Pass, 0, len(p.passes))
	for i, pass := range p.passes {
		if pass == nil || !pass.PostProcessing.Enabled() {
			out = append(out, pass)
			continue
		} else if targets == nil {
			return nil, errNoSampledTargetFunc
		}
		key := newPostKey(pass, p.width, p.height)
		chain := p.chains[pass]
		if chain == nil || chain.key != key {
			var err error
			chain, err = newPostChain(key, pass, targets, quad)
			if err != nil {
				return nil, fmt.Errorf("pass %d post-processing: %w", i, err)
			}
			if p.chains == nil {
				p.chains = make(map[*Pass]*postChain)
			}
			p.chains[pass] = chain
		}
		first := *pass
		first.Target = chain.gbuffer
		first.PostProcessing = PostProcessing{}
		if pass.PostProcessing.AmbientOcclusion != nil {
			first.RenderNormal, first.RenderPosition = true, true
		}
		out = append(out, &first)
		out = append(out, chain.effects...)
	}
	return out, nil
}
