package shadergen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rendergraph"
)

type args = map[string]any

// Compiler turns a single render graph into vertex and fragment shader source.
// The graph is walked depth first from its root: every non-root node evaluates
// to an expression that its consumer embeds, root nodes write the shader
// entry points. Helper functions required by nodes are emitted once per
// shader in order of first use.
//
// A Compiler is single use and not safe for concurrent use. Distinct
// compilers may compile the same graph concurrently.
type Compiler struct {
	cfg      Config
	g        *rendergraph.Graph
	used     bool
	depth    int
	maxDepth int
	funcs    []string
	funcSet  map[string]struct{}
	vertex   bytes.Buffer
	fragment bytes.Buffer
	scratch  bytes.Buffer
}

// NewCompiler returns a compiler for the cfg material variant.
func NewCompiler(cfg Config) *Compiler {
	return &Compiler{cfg: cfg, funcSet: make(map[string]struct{})}
}

// Config returns the configuration the compiler was created with.
func (c *Compiler) Config() Config { return c.cfg }

// Depth returns the current expression nesting depth. It is zero before
// and after [Compiler.Compile].
func (c *Compiler) Depth() int { return c.depth }

// MaxDepth returns the deepest expression nesting reached while compiling.
func (c *Compiler) MaxDepth() int { return c.maxDepth }

// Compile compiles g. On error no shader source is retained.
func (c *Compiler) Compile(g *rendergraph.Graph) error {
	if c.used {
		return ErrCompilerUsed
	}
	c.used = true
	if !c.cfg.Language.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, c.cfg.Language)
	} else if !c.cfg.Light.IsValid() {
		return fmt.Errorf("invalid light type %s", c.cfg.Light)
	} else if g == nil {
		return errors.New("nil graph")
	}
	root := g.RootNode()
	if root == nil {
		return fmt.Errorf("graph has no root: %w", rendergraph.ErrMissingInput)
	}
	c.g = g
	err := c.compileRoot(root)
	c.g = nil
	if err != nil {
		c.vertex.Reset()
		c.fragment.Reset()
		return err
	}
	rendergraph.Logger().Debug("compiled shader",
		"language", c.cfg.Language.String(),
		"light", c.cfg.Light.String(),
		"root", root.Kind().String(),
		"nodes", g.Len(),
		"functions", len(c.funcs),
		"depth", c.maxDepth,
	)
	return nil
}

// VertexShader returns the compiled vertex shader.
func (c *Compiler) VertexShader() string { return c.vertex.String() }

// FragmentShader returns the compiled fragment shader.
func (c *Compiler) FragmentShader() string { return c.fragment.String() }

// WriteVertex writes the compiled vertex shader to w.
func (c *Compiler) WriteVertex(w io.Writer) (int, error) { return w.Write(c.vertex.Bytes()) }

// WriteFragment writes the compiled fragment shader to w.
func (c *Compiler) WriteFragment(w io.Writer) (int, error) { return w.Write(c.fragment.Bytes()) }

func (c *Compiler) compileRoot(root rendergraph.Node) (err error) {
	var (
		vsnip, fsnip Snippet
		vargs, fargs args
	)
	switch n := root.(type) {
	case *rendergraph.RenderNode:
		if err = c.addFunction(SnippetShadowFunction); err != nil {
			return err
		}
		var colour, normal, ao string
		if colour, err = c.optionalExpr(n.Colour); err != nil {
			return err
		}
		if normal, err = c.optionalExpr(n.Normal); err != nil {
			return err
		}
		if ao, err = c.optionalExpr(n.AmbientOcclusion); err != nil {
			return err
		}
		vsnip, fsnip = SnippetRenderVertex, SnippetRenderFragment
		vargs = args{"is_directional_light": c.cfg.Light == rendergraph.LightDirectional}
		fargs = args{
			"render_normal":   c.cfg.RenderNormal,
			"render_position": c.cfg.RenderPosition,
			"light_type":      int(c.cfg.Light),
			"fragment_colour": colour,
			"normal":          normal,
			"ambient_input":   ao,
		}

	case *rendergraph.SkyBoxNode:
		vsnip, fsnip = SnippetSkyBoxVertex, SnippetSkyBoxFragment
		fargs = args{
			"cube_map_index": n.CubeMap.Index,
			"sampler_index":  samplerIndex(n.CubeMap.Sampler),
		}

	case *rendergraph.AmbientOcclusionNode:
		colour, err := c.optionalExpr(n.Colour)
		if err != nil {
			return err
		}
		position, err := c.textureOf(n.Position)
		if err != nil {
			return err
		}
		normal, err := c.textureOf(n.Normal)
		if err != nil {
			return err
		}
		vsnip, fsnip = SnippetPostProcessVertex, SnippetAmbientOcclusionFragment
		fargs = args{
			"fragment_colour":        colour,
			"position_texture_index": position.Index,
			"position_sampler_index": samplerIndex(position.Sampler),
			"normal_texture_index":   normal.Index,
			"normal_sampler_index":   samplerIndex(normal.Sampler),
			"sample_count":           n.SampleCount,
			"radius":                 formatFloat(n.Radius),
			"bias":                   formatFloat(n.Bias),
		}

	case *rendergraph.ColourAdjustNode:
		colour, err := c.optionalExpr(n.Colour)
		if err != nil {
			return err
		}
		vsnip, fsnip = SnippetPostProcessVertex, SnippetColourAdjustFragment
		fargs = args{
			"fragment_colour": colour,
			"inverse_gamma":   formatFloat(1 / n.Gamma),
			"tone_map_curve":  int(n.ToneMap),
		}

	case *rendergraph.AntiAliasingNode:
		if err = c.addFunction(SnippetRGBToLumaFunction); err != nil {
			return err
		}
		input, err := c.textureOf(n.Input)
		if err != nil {
			return err
		}
		vsnip, fsnip = SnippetPostProcessVertex, SnippetAntiAliasingFragment
		fargs = args{
			"input_texture_index": input.Index,
			"input_sampler_index": samplerIndex(input.Sampler),
			"inverse_width":       reciprocal(input.Width),
			"inverse_height":      reciprocal(input.Height),
		}

	default:
		return fmt.Errorf("root of kind %s: %w", root.Kind(), rendergraph.ErrNotRoot)
	}

	prelude, err := c.execute(SnippetPrelude, nil)
	if err != nil {
		return err
	}
	vert, err := c.execute(vsnip, vargs)
	if err != nil {
		return err
	}
	frag, err := c.execute(fsnip, fargs)
	if err != nil {
		return err
	}
	writeSection(&c.vertex, prelude)
	writeSection(&c.vertex, vert)
	writeSection(&c.fragment, prelude)
	for _, fn := range c.funcs {
		writeSection(&c.fragment, fn)
	}
	writeSection(&c.fragment, frag)
	return nil
}

// optionalExpr is expr for optional input slots. Unset slots yield "".
func (c *Compiler) optionalExpr(id rendergraph.NodeID) (string, error) {
	if id == rendergraph.Nil {
		return "", nil
	}
	return c.expr(id)
}

// expr returns the expression id evaluates to, compiling its inputs first.
func (c *Compiler) expr(id rendergraph.NodeID) (_ string, err error) {
	c.depth++
	c.maxDepth = max(c.maxDepth, c.depth)
	defer func() { c.depth-- }()
	node := c.g.Node(id)
	if node == nil {
		return "", fmt.Errorf("expression %s: %w", id, rendergraph.ErrUnknownNode)
	}
	switch n := node.(type) {
	case *rendergraph.ValueNode[float32]:
		return c.execute(SnippetValueFloat, args{"value": formatFloat(n.Value)})

	case *rendergraph.ValueNode[ms3.Vec]:
		return c.execute(SnippetValueVector3, componentArgs(n.Value.X, n.Value.Y, n.Value.Z))

	case *rendergraph.ValueNode[rendergraph.Colour]:
		return c.execute(SnippetValueColour, componentArgs(n.Value.R, n.Value.G, n.Value.B, n.Value.A))

	case *rendergraph.ColourNode:
		return c.execute(SnippetColour, componentArgs(n.Colour.R, n.Colour.G, n.Colour.B, n.Colour.A))

	case *rendergraph.TextureNode:
		a, err := c.textureArgs(n)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetTexture, a)

	case *rendergraph.BlurNode:
		tn, ok := c.g.Node(n.Input).(*rendergraph.TextureNode)
		if !ok {
			return "", fmt.Errorf("blur input %s: %w", n.Input, rendergraph.ErrNotTexture)
		}
		if err = c.addFunction(SnippetBlurFunction); err != nil {
			return "", err
		}
		a, err := c.textureArgs(tn)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetBlur, a)

	case *rendergraph.ArithmeticNode:
		a, b, err := c.expr2(n.A, n.B)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetArithmetic, args{"operator": int(n.Op), "value1": a, "value2": b})

	case *rendergraph.ConditionalNode:
		in1, in2, err := c.expr2(n.Input1, n.Input2)
		if err != nil {
			return "", err
		}
		out1, out2, err := c.expr2(n.Output1, n.Output2)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetConditional, args{
			"operator": int(n.Op),
			"input1":   in1, "input2": in2,
			"output1": out1, "output2": out2,
		})

	case *rendergraph.CompositeNode:
		if err = c.addFunction(SnippetCompositeFunction); err != nil {
			return "", err
		}
		c1, c2, err := c.expr2(n.Colour1, n.Colour2)
		if err != nil {
			return "", err
		}
		d1, d2, err := c.expr2(n.Depth1, n.Depth2)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetComposite, args{"colour1": c1, "colour2": c2, "depth1": d1, "depth2": d2})

	case *rendergraph.InvertNode:
		if err = c.addFunction(SnippetInvertFunction); err != nil {
			return "", err
		}
		in, err := c.expr(n.Input)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetInvert, args{"input": in})

	case *rendergraph.ComponentNode:
		in, err := c.expr(n.Input)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetComponent, args{"value": in, "component": n.Component})

	case *rendergraph.CombineNode:
		x, y, err := c.expr2(n.X, n.Y)
		if err != nil {
			return "", err
		}
		z, w, err := c.expr2(n.Z, n.W)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetCombine, args{"x": x, "y": y, "z": z, "w": w})

	case *rendergraph.SinNode:
		in, err := c.expr(n.Input)
		if err != nil {
			return "", err
		}
		return c.execute(SnippetSin, args{"value": in})

	case *rendergraph.VertexNode:
		return c.execute(SnippetVertex, args{"type": int(n.Data), "swizzle": n.Swizzle})
	}
	return "", fmt.Errorf("node %s of kind %s: %w", id, node.Kind(), ErrNotExpression)
}

func (c *Compiler) expr2(a, b rendergraph.NodeID) (ea, eb string, err error) {
	ea, err = c.expr(a)
	if err != nil {
		return "", "", err
	}
	eb, err = c.expr(b)
	return ea, eb, err
}

func (c *Compiler) textureArgs(n *rendergraph.TextureNode) (args, error) {
	uv, err := c.optionalExpr(n.UVInput)
	if err != nil {
		return nil, err
	}
	return args{
		"uv_source":         int(n.UVSource),
		"texture_index":     n.Texture.Index,
		"sampler_index":     samplerIndex(n.Texture.Sampler),
		"reciprocal_width":  reciprocal(n.Texture.Width),
		"reciprocal_height": reciprocal(n.Texture.Height),
		"tex_coord":         uv,
	}, nil
}

// textureOf returns the texture sampled by the texture node id.
func (c *Compiler) textureOf(id rendergraph.NodeID) (*rendergraph.Texture, error) {
	tn, ok := c.g.Node(id).(*rendergraph.TextureNode)
	if !ok {
		return nil, fmt.Errorf("input %s: %w", id, rendergraph.ErrNotTexture)
	}
	return tn.Texture, nil
}

// addFunction adds a helper function to the fragment shader if an identical
// one has not been added yet.
func (c *Compiler) addFunction(s Snippet) error {
	src, err := c.execute(s, nil)
	if err != nil {
		return err
	}
	if _, ok := c.funcSet[src]; ok {
		return nil
	}
	c.funcSet[src] = struct{}{}
	c.funcs = append(c.funcs, src)
	return nil
}

func (c *Compiler) execute(s Snippet, data args) (string, error) {
	tmpl := table[tableKey{snippet: s, lang: c.cfg.Language}]
	if tmpl == nil {
		return "", fmt.Errorf("%w: no %s snippet for %s", ErrUnsupportedLanguage, s, c.cfg.Language)
	}
	c.scratch.Reset()
	if err := tmpl.Execute(&c.scratch, data); err != nil {
		return "", fmt.Errorf("executing %s %s snippet: %w", c.cfg.Language, s, err)
	}
	return strings.TrimSpace(c.scratch.String()), nil
}

func writeSection(buf *bytes.Buffer, s string) {
	if s == "" {
		return
	}
	buf.WriteString(s)
	buf.WriteString("\n\n")
}

// componentArgs formats a vector literal's comma separated components.
func componentArgs(v ...float32) args {
	var buf [64]byte
	return args{"components": string(AppendFloats(buf[:0], ',', '-', '.', v...))}
}

func samplerIndex(s *rendergraph.Sampler) string {
	if s == nil {
		return "0"
	}
	return strconv.FormatUint(uint64(s.Index), 10)
}
