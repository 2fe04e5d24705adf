// Package graphfile decodes render graphs from YAML descriptions.
//
// A description lists nodes in dependency order. Each node has a unique id
// which later nodes reference in their inputs. Example:
//
//	textures:
//	  - name: albedo
//	    index: 0
//	    width: 512
//	    height: 512
//	nodes:
//	  - id: base
//	    kind: texture
//	    texture: albedo
//	  - id: tint
//	    kind: colour
//	    value: [1, 0.5, 0.5, 1]
//	  - id: out
//	    kind: arithmetic
//	    op: multiply
//	    inputs: {a: base, b: tint}
//	  - id: root
//	    kind: render
//	    inputs: {colour: out}
//	root: root
package graphfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rendergraph"
	"gopkg.in/yaml.v3"
)

var (
	errNoRoot       = errors.New("graph description has no root")
	errDuplicateID  = errors.New("duplicate node id")
	errUndefinedRef = errors.New("undefined reference")
)

// Description is the YAML document describing a render graph.
type Description struct {
	Textures []TextureDesc `yaml:"textures,omitempty"`
	CubeMaps []CubeMapDesc `yaml:"cube_maps,omitempty"`
	Nodes    []NodeDesc    `yaml:"nodes"`
	Root     string        `yaml:"root"`
}

// TextureDesc declares a texture referenced by texture nodes.
type TextureDesc struct {
	Name    string `yaml:"name"`
	Index   uint32 `yaml:"index"`
	Width   uint32 `yaml:"width"`
	Height  uint32 `yaml:"height"`
	Sampler uint32 `yaml:"sampler"`
}

// CubeMapDesc declares a cube map referenced by sky box nodes.
type CubeMapDesc struct {
	Name    string `yaml:"name"`
	Index   uint32 `yaml:"index"`
	Size    uint32 `yaml:"size"`
	Sampler uint32 `yaml:"sampler"`
}

// NodeDesc describes a single node. Which fields apply depends on Kind.
type NodeDesc struct {
	ID     string            `yaml:"id"`
	Kind   string            `yaml:"kind"`
	Inputs map[string]string `yaml:"inputs,omitempty"`
	// Value holds a float, a 3 component vector or an RGBA colour.
	Value Floats `yaml:"value,omitempty,flow"`
	// Type is the value type of value nodes: float, vec3 or colour.
	Type string `yaml:"type,omitempty"`
	Op   string `yaml:"op,omitempty"`
	// Texture names a texture for texture nodes or a cube map for sky box nodes.
	Texture     string  `yaml:"texture,omitempty"`
	UV          string  `yaml:"uv,omitempty"`
	Component   string  `yaml:"component,omitempty"`
	Data        string  `yaml:"data,omitempty"`
	Swizzle     string  `yaml:"swizzle,omitempty"`
	SampleCount uint32  `yaml:"sample_count,omitempty"`
	Radius      float32 `yaml:"radius,omitempty"`
	Bias        float32 `yaml:"bias,omitempty"`
	Gamma       float32 `yaml:"gamma,omitempty"`
	ToneMap     string  `yaml:"tone_map,omitempty"`
}

// Floats is a list of floats that also decodes from a single YAML scalar.
type Floats []float32

// UnmarshalYAML implements [yaml.Unmarshaler].
func (f *Floats) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var v float32
		if err := value.Decode(&v); err != nil {
			return err
		}
		*f = Floats{v}
		return nil
	case yaml.SequenceNode:
		var vs []float32
		if err := value.Decode(&vs); err != nil {
			return err
		}
		*f = vs
		return nil
	}
	return fmt.Errorf("line %d: expected float or list of floats", value.Line)
}

// Resources resolves texture and cube map names used by a description.
// Names not found are looked up in the description's own declarations,
// which are created with IDs. A nil IDs uses a package level generator.
type Resources struct {
	IDs      *rendergraph.ResourceIDs
	Textures map[string]*rendergraph.Texture
	CubeMaps map[string]*rendergraph.CubeMap
}

var defaultIDs rendergraph.ResourceIDs

// Load reads and builds the graph described by the YAML file at path.
func Load(path string, res *Resources) (*rendergraph.Graph, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	g, err := Decode(fp, res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Decode reads a YAML description from r and builds its graph.
func Decode(r io.Reader, res *Resources) (*rendergraph.Graph, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var desc Description
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("decoding graph description: %w", err)
	}
	return desc.Build(res)
}

// Unmarshal builds the graph described by YAML data.
func Unmarshal(data []byte, res *Resources) (*rendergraph.Graph, error) {
	return Decode(bytes.NewReader(data), res)
}

// Marshal encodes desc as YAML.
func Marshal(desc *Description) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(desc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Build creates the described graph. Nodes that fail validation are reported
// together; no partially built graph is returned.
func (desc *Description) Build(res *Resources) (*rendergraph.Graph, error) {
	if desc.Root == "" {
		return nil, errNoRoot
	}
	b, err := newBuilder(desc, res)
	if err != nil {
		return nil, err
	}
	for i := range desc.Nodes {
		nd := &desc.Nodes[i]
		if nd.ID == "" {
			return nil, fmt.Errorf("node %d: missing id", i)
		} else if _, ok := b.ids[nd.ID]; ok {
			return nil, fmt.Errorf("node %q: %w", nd.ID, errDuplicateID)
		}
		n, err := b.node(nd)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.ID, err)
		}
		b.ids[nd.ID] = b.g.Add(n)
	}
	root, ok := b.ids[desc.Root]
	if !ok {
		return nil, fmt.Errorf("root %q: %w", desc.Root, errUndefinedRef)
	}
	b.g.SetRoot(root)
	if err := b.g.Err(); err != nil {
		return nil, err
	}
	return b.g, nil
}

type builder struct {
	g        *rendergraph.Graph
	ids      map[string]rendergraph.NodeID
	textures map[string]*rendergraph.Texture
	cubeMaps map[string]*rendergraph.CubeMap
}

func newBuilder(desc *Description, res *Resources) (*builder, error) {
	b := &builder{
		g:        &rendergraph.Graph{NoInputPanic: true},
		ids:      make(map[string]rendergraph.NodeID, len(desc.Nodes)),
		textures: make(map[string]*rendergraph.Texture),
		cubeMaps: make(map[string]*rendergraph.CubeMap),
	}
	ids := &defaultIDs
	if res != nil {
		if res.IDs != nil {
			ids = res.IDs
		}
		for name, tex := range res.Textures {
			b.textures[name] = tex
		}
		for name, cm := range res.CubeMaps {
			b.cubeMaps[name] = cm
		}
	}
	for _, td := range desc.Textures {
		if _, ok := b.textures[td.Name]; ok || td.Name == "" {
			continue
		}
		b.textures[td.Name] = ids.NewTexture(td.Name, td.Index, td.Width, td.Height, ids.NewSampler(td.Sampler))
	}
	for _, cd := range desc.CubeMaps {
		if _, ok := b.cubeMaps[cd.Name]; ok || cd.Name == "" {
			continue
		}
		var faces [6][2]uint32
		for i := range faces {
			faces[i] = [2]uint32{cd.Size, cd.Size}
		}
		cm, err := ids.NewCubeMap(cd.Name, cd.Index, faces, ids.NewSampler(cd.Sampler))
		if err != nil {
			return nil, fmt.Errorf("cube map %q: %w", cd.Name, err)
		}
		b.cubeMaps[cd.Name] = cm
	}
	return b, nil
}

// inputSlots lists the input names each kind accepts.
var inputSlots = map[rendergraph.Kind][]string{
	rendergraph.KindTexture:          {"uv"},
	rendergraph.KindArithmetic:       {"a", "b"},
	rendergraph.KindConditional:      {"input1", "input2", "output1", "output2"},
	rendergraph.KindComposite:        {"colour1", "colour2", "depth1", "depth2"},
	rendergraph.KindBlur:             {"input"},
	rendergraph.KindInvert:           {"input"},
	rendergraph.KindComponent:        {"input"},
	rendergraph.KindCombine:          {"x", "y", "z", "w"},
	rendergraph.KindSin:              {"input"},
	rendergraph.KindRender:           {"colour", "normal", "ambient_occlusion"},
	rendergraph.KindAmbientOcclusion: {"colour", "position", "normal"},
	rendergraph.KindColourAdjust:     {"colour"},
	rendergraph.KindAntiAliasing:     {"input"},
}

func (b *builder) node(nd *NodeDesc) (rendergraph.Node, error) {
	kind, err := parseKind(nd.Kind)
	if err != nil {
		return nil, err
	}
	slots := inputSlots[kind]
	for name := range nd.Inputs {
		if !slices.Contains(slots, name) {
			return nil, fmt.Errorf("%s node has no input %q", kind, name)
		}
	}
	in := func(name string) (rendergraph.NodeID, error) {
		ref, ok := nd.Inputs[name]
		if !ok || ref == "" {
			return rendergraph.Nil, nil
		}
		id, ok := b.ids[ref]
		if !ok {
			return rendergraph.Nil, fmt.Errorf("input %s %q: %w", name, ref, errUndefinedRef)
		}
		return id, nil
	}
	var ids [4]rendergraph.NodeID
	for i, name := range slots {
		ids[i], err = in(name)
		if err != nil {
			return nil, err
		}
	}

	switch kind {
	case rendergraph.KindValue:
		return valueNode(nd.Type, nd.Value)
	case rendergraph.KindColour:
		c, err := colour(nd.Value)
		if err != nil {
			return nil, err
		}
		return &rendergraph.ColourNode{Colour: c}, nil
	case rendergraph.KindTexture:
		tex, ok := b.textures[nd.Texture]
		if !ok {
			return nil, fmt.Errorf("texture %q: %w", nd.Texture, errUndefinedRef)
		}
		uv, err := lookup("uv source", uvSources, nd.UV)
		if err != nil {
			return nil, err
		}
		return &rendergraph.TextureNode{Texture: tex, UVSource: uv, UVInput: ids[0]}, nil
	case rendergraph.KindArithmetic:
		op, err := lookup("arithmetic operator", arithmeticOps, nd.Op)
		if err != nil {
			return nil, err
		}
		return &rendergraph.ArithmeticNode{A: ids[0], B: ids[1], Op: op}, nil
	case rendergraph.KindConditional:
		op, err := lookup("conditional operator", conditionalOps, nd.Op)
		if err != nil {
			return nil, err
		}
		return &rendergraph.ConditionalNode{Input1: ids[0], Input2: ids[1], Output1: ids[2], Output2: ids[3], Op: op}, nil
	case rendergraph.KindComposite:
		return &rendergraph.CompositeNode{Colour1: ids[0], Colour2: ids[1], Depth1: ids[2], Depth2: ids[3]}, nil
	case rendergraph.KindBlur:
		return &rendergraph.BlurNode{Input: ids[0]}, nil
	case rendergraph.KindInvert:
		return &rendergraph.InvertNode{Input: ids[0]}, nil
	case rendergraph.KindComponent:
		return &rendergraph.ComponentNode{Input: ids[0], Component: nd.Component}, nil
	case rendergraph.KindCombine:
		return &rendergraph.CombineNode{X: ids[0], Y: ids[1], Z: ids[2], W: ids[3]}, nil
	case rendergraph.KindSin:
		return &rendergraph.SinNode{Input: ids[0]}, nil
	case rendergraph.KindVertex:
		data, err := lookup("vertex data", vertexData, nd.Data)
		if err != nil {
			return nil, err
		}
		return &rendergraph.VertexNode{Data: data, Swizzle: nd.Swizzle}, nil
	case rendergraph.KindRender:
		return &rendergraph.RenderNode{Colour: ids[0], Normal: ids[1], AmbientOcclusion: ids[2]}, nil
	case rendergraph.KindSkyBox:
		cm, ok := b.cubeMaps[nd.Texture]
		if !ok {
			return nil, fmt.Errorf("cube map %q: %w", nd.Texture, errUndefinedRef)
		}
		return &rendergraph.SkyBoxNode{CubeMap: cm}, nil
	case rendergraph.KindAmbientOcclusion:
		return &rendergraph.AmbientOcclusionNode{
			Colour:      ids[0],
			Position:    ids[1],
			Normal:      ids[2],
			SampleCount: nd.SampleCount,
			Radius:      nd.Radius,
			Bias:        nd.Bias,
		}, nil
	case rendergraph.KindColourAdjust:
		curve, err := lookup("tone map curve", toneMapCurves, nd.ToneMap)
		if err != nil {
			return nil, err
		}
		gamma := nd.Gamma
		if gamma == 0 {
			gamma = 2.2
		}
		return &rendergraph.ColourAdjustNode{Colour: ids[0], Gamma: gamma, ToneMap: curve}, nil
	case rendergraph.KindAntiAliasing:
		return &rendergraph.AntiAliasingNode{Input: ids[0]}, nil
	}
	return nil, fmt.Errorf("unhandled node kind %s", kind)
}

func parseKind(s string) (rendergraph.Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := rendergraph.KindValue; k <= rendergraph.KindAntiAliasing; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

func valueNode(typ string, v Floats) (rendergraph.Node, error) {
	switch strings.ToLower(typ) {
	case "", "float":
		if len(v) != 1 {
			return nil, fmt.Errorf("float value needs 1 component, got %d", len(v))
		}
		return &rendergraph.ValueNode[float32]{Value: v[0]}, nil
	case "vec3":
		if len(v) != 3 {
			return nil, fmt.Errorf("vec3 value needs 3 components, got %d", len(v))
		}
		return &rendergraph.ValueNode[ms3.Vec]{Value: ms3.Vec{X: v[0], Y: v[1], Z: v[2]}}, nil
	case "colour", "color":
		c, err := colour(v)
		if err != nil {
			return nil, err
		}
		return &rendergraph.ValueNode[rendergraph.Colour]{Value: c}, nil
	}
	return nil, fmt.Errorf("unknown value type %q", typ)
}

// colour accepts RGB with an implicit opaque alpha or RGBA.
func colour(v Floats) (rendergraph.Colour, error) {
	switch len(v) {
	case 3:
		return rendergraph.Colour{R: v[0], G: v[1], B: v[2], A: 1}, nil
	case 4:
		return rendergraph.Colour{R: v[0], G: v[1], B: v[2], A: v[3]}, nil
	}
	return rendergraph.Colour{}, fmt.Errorf("colour needs 3 or 4 components, got %d", len(v))
}

var (
	uvSources = map[string]rendergraph.UVSource{
		"":             rendergraph.UVVertexData,
		"vertex":       rendergraph.UVVertexData,
		"screen_space": rendergraph.UVScreenSpace,
	}
	arithmeticOps = map[string]rendergraph.ArithmeticOp{
		"add":      rendergraph.OpAdd,
		"subtract": rendergraph.OpSubtract,
		"multiply": rendergraph.OpMultiply,
		"divide":   rendergraph.OpDivide,
		"dot":      rendergraph.OpDot,
	}
	conditionalOps = map[string]rendergraph.ConditionalOp{
		"greater": rendergraph.OpGreater,
		"less":    rendergraph.OpLess,
	}
	vertexData = map[string]rendergraph.VertexData{
		"position": rendergraph.VertexPosition,
		"normal":   rendergraph.VertexNormal,
		"uv":       rendergraph.VertexUV,
	}
	toneMapCurves = map[string]rendergraph.ToneMapCurve{
		"":         rendergraph.ToneMapNone,
		"none":     rendergraph.ToneMapNone,
		"reinhard": rendergraph.ToneMapReinhard,
		"aces":     rendergraph.ToneMapACES,
	}
)

func lookup[T any](what string, m map[string]T, s string) (T, error) {
	v, ok := m[strings.ToLower(s)]
	if !ok {
		return v, fmt.Errorf("unknown %s %q", what, s)
	}
	return v, nil
}
