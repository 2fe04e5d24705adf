package rendergraph

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Kind is the closed set of node kinds a [Graph] can hold.
type Kind uint8

const (
	kindInvalid Kind = iota
	KindValue
	KindColour
	KindTexture
	KindArithmetic
	KindConditional
	KindComposite
	KindBlur
	KindInvert
	KindComponent
	KindCombine
	KindSin
	KindVertex
	KindRender
	KindSkyBox
	KindAmbientOcclusion
	KindColourAdjust
	KindAntiAliasing
	kindCount
)

var kindNames = [kindCount]string{
	kindInvalid:          "invalid",
	KindValue:            "value",
	KindColour:           "colour",
	KindTexture:          "texture",
	KindArithmetic:       "arithmetic",
	KindConditional:      "conditional",
	KindComposite:        "composite",
	KindBlur:             "blur",
	KindInvert:           "invert",
	KindComponent:        "component",
	KindCombine:          "combine",
	KindSin:              "sin",
	KindVertex:           "vertex",
	KindRender:           "render",
	KindSkyBox:           "sky_box",
	KindAmbientOcclusion: "ambient_occlusion",
	KindColourAdjust:     "colour_adjust",
	KindAntiAliasing:     "anti_aliasing",
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// IsRoot reports whether nodes of kind k may only appear as a graph root.
// Root kinds write the vertex channel and the fragment entry point.
func (k Kind) IsRoot() bool {
	switch k {
	case KindRender, KindSkyBox, KindAmbientOcclusion, KindColourAdjust, KindAntiAliasing:
		return true
	}
	return false
}

// IsPostProcess reports whether k is a full screen post-processing root.
func (k Kind) IsPostProcess() bool {
	return k == KindAmbientOcclusion || k == KindColourAdjust || k == KindAntiAliasing
}

// Node is a vertex of a render graph. The set of implementations is closed,
// consumers switch over the concrete types in this package.
// Nodes reference their inputs by [NodeID] and never own them.
type Node interface {
	Kind() Kind
	// AppendInputs appends the node's input slots in a fixed order.
	// Unset optional inputs are appended as [Nil].
	AppendInputs(dst []NodeID) []NodeID
	// appendPayload appends the literal data of the node that takes part in hashing.
	appendPayload(b []byte) []byte
	validate(g *Graph) error
}

// Scalar is the set of literal types a [ValueNode] may hold.
type Scalar interface {
	float32 | ms3.Vec | Colour
}

// ValueType tags the literal type of a [ValueNode].
type ValueType uint8

const (
	ValueFloat ValueType = iota
	ValueVec3
	ValueColour
)

// ValueNode is a literal value of type T.
type ValueNode[T Scalar] struct {
	Value T
}

func (*ValueNode[T]) Kind() Kind                         { return KindValue }
func (*ValueNode[T]) AppendInputs(dst []NodeID) []NodeID { return dst }
func (n *ValueNode[T]) validate(*Graph) error {
	switch v := any(n.Value).(type) {
	case float32:
		return checkFinite("value node", v)
	case ms3.Vec:
		return checkFinite("value node", v.X, v.Y, v.Z)
	case Colour:
		return checkFinite("value node", v.R, v.G, v.B, v.A)
	}
	return nil
}

// ValueType returns the tag for T.
func (n *ValueNode[T]) ValueType() ValueType {
	switch any(n.Value).(type) {
	case ms3.Vec:
		return ValueVec3
	case Colour:
		return ValueColour
	}
	return ValueFloat
}

func (n *ValueNode[T]) appendPayload(b []byte) []byte {
	b = append(b, byte(n.ValueType()))
	switch v := any(n.Value).(type) {
	case float32:
		b = appendFloats(b, v)
	case ms3.Vec:
		b = appendVec(b, v)
	case Colour:
		b = appendFloats(b, v.R, v.G, v.B, v.A)
	}
	return b
}

// ColourNode is a constant colour.
type ColourNode struct {
	Colour Colour
}

func (*ColourNode) Kind() Kind                         { return KindColour }
func (*ColourNode) AppendInputs(dst []NodeID) []NodeID { return dst }
func (n *ColourNode) validate(*Graph) error {
	return checkFinite("colour node", n.Colour.R, n.Colour.G, n.Colour.B, n.Colour.A)
}
func (n *ColourNode) appendPayload(b []byte) []byte {
	return appendFloats(b, n.Colour.R, n.Colour.G, n.Colour.B, n.Colour.A)
}

// UVSource selects where a texture sample takes its coordinates from.
type UVSource uint8

const (
	// UVVertexData samples with the interpolated mesh texture coordinates.
	UVVertexData UVSource = iota
	// UVScreenSpace samples with the fragment's screen position.
	UVScreenSpace
)

// TextureNode samples Texture. When UVInput is set its value is used as
// texture coordinate instead of UVSource.
type TextureNode struct {
	Texture  *Texture
	UVSource UVSource
	UVInput  NodeID
}

func (*TextureNode) Kind() Kind                           { return KindTexture }
func (n *TextureNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.UVInput) }
func (n *TextureNode) validate(g *Graph) error {
	if n.Texture == nil {
		return fmt.Errorf("texture node: %w", errNilTexture)
	} else if n.UVSource > UVScreenSpace {
		return fmt.Errorf("texture node: invalid uv source %d", n.UVSource)
	}
	return g.checkInput("texture uv", n.UVInput, false)
}
func (n *TextureNode) appendPayload(b []byte) []byte {
	t := n.Texture
	var sampler uint32
	if t.Sampler != nil {
		sampler = t.Sampler.Index
	}
	b = appendUint(b, uint64(t.ID))
	b = appendUint32s(b, t.Index, t.Width, t.Height, sampler)
	return append(b, byte(n.UVSource))
}

// ArithmeticOp is a binary arithmetic operator.
type ArithmeticOp uint8

const (
	OpAdd ArithmeticOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpDot
)

func (op ArithmeticOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	case OpDot:
		return "dot"
	}
	return fmt.Sprintf("ArithmeticOp(%d)", uint8(op))
}

// ArithmeticNode applies Op to A and B.
type ArithmeticNode struct {
	A, B NodeID
	Op   ArithmeticOp
}

func (*ArithmeticNode) Kind() Kind                           { return KindArithmetic }
func (n *ArithmeticNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.A, n.B) }
func (n *ArithmeticNode) appendPayload(b []byte) []byte      { return append(b, byte(n.Op)) }
func (n *ArithmeticNode) validate(g *Graph) error {
	if n.Op > OpDot {
		return fmt.Errorf("arithmetic node: invalid operator %s", n.Op)
	}
	return firstErr(g.checkInput("arithmetic A", n.A, true), g.checkInput("arithmetic B", n.B, true))
}

// ConditionalOp is a comparison operator.
type ConditionalOp uint8

const (
	OpGreater ConditionalOp = iota
	OpLess
)

func (op ConditionalOp) String() string {
	switch op {
	case OpGreater:
		return "greater"
	case OpLess:
		return "less"
	}
	return fmt.Sprintf("ConditionalOp(%d)", uint8(op))
}

// ConditionalNode evaluates to Output1 when Input1 Op Input2 holds
// and to Output2 otherwise.
type ConditionalNode struct {
	Input1, Input2   NodeID
	Output1, Output2 NodeID
	Op               ConditionalOp
}

func (*ConditionalNode) Kind() Kind { return KindConditional }
func (n *ConditionalNode) AppendInputs(dst []NodeID) []NodeID {
	return append(dst, n.Input1, n.Input2, n.Output1, n.Output2)
}
func (n *ConditionalNode) appendPayload(b []byte) []byte { return append(b, byte(n.Op)) }
func (n *ConditionalNode) validate(g *Graph) error {
	if n.Op > OpLess {
		return fmt.Errorf("conditional node: invalid operator %s", n.Op)
	}
	return firstErr(
		g.checkInput("conditional input1", n.Input1, true),
		g.checkInput("conditional input2", n.Input2, true),
		g.checkInput("conditional output1", n.Output1, true),
		g.checkInput("conditional output2", n.Output2, true),
	)
}

// CompositeNode picks, per fragment, the colour whose depth is nearest.
type CompositeNode struct {
	Colour1, Colour2 NodeID
	Depth1, Depth2   NodeID
}

func (*CompositeNode) Kind() Kind { return KindComposite }
func (n *CompositeNode) AppendInputs(dst []NodeID) []NodeID {
	return append(dst, n.Colour1, n.Colour2, n.Depth1, n.Depth2)
}
func (*CompositeNode) appendPayload(b []byte) []byte { return b }
func (n *CompositeNode) validate(g *Graph) error {
	return firstErr(
		g.checkInput("composite colour1", n.Colour1, true),
		g.checkInput("composite colour2", n.Colour2, true),
		g.checkInput("composite depth1", n.Depth1, true),
		g.checkInput("composite depth2", n.Depth2, true),
	)
}

// BlurNode blurs the texture sampled by the [TextureNode] Input.
type BlurNode struct {
	Input NodeID
}

func (*BlurNode) Kind() Kind                           { return KindBlur }
func (n *BlurNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.Input) }
func (*BlurNode) appendPayload(b []byte) []byte        { return b }
func (n *BlurNode) validate(g *Graph) error            { return g.checkTexture("blur input", n.Input, true) }

// InvertNode evaluates to one minus Input.
type InvertNode struct {
	Input NodeID
}

func (*InvertNode) Kind() Kind                           { return KindInvert }
func (n *InvertNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.Input) }
func (*InvertNode) appendPayload(b []byte) []byte        { return b }
func (n *InvertNode) validate(g *Graph) error            { return g.checkInput("invert input", n.Input, true) }

// ComponentNode swizzles Input, i.e: "x", "xy", "rgb".
type ComponentNode struct {
	Input     NodeID
	Component string
}

func (*ComponentNode) Kind() Kind                           { return KindComponent }
func (n *ComponentNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.Input) }
func (n *ComponentNode) appendPayload(b []byte) []byte      { return appendString(b, n.Component) }
func (n *ComponentNode) validate(g *Graph) error {
	if err := validSwizzle(n.Component); err != nil {
		return fmt.Errorf("component node: %w", err)
	}
	return g.checkInput("component input", n.Input, true)
}

// CombineNode builds a 4 component vector from four scalars.
type CombineNode struct {
	X, Y, Z, W NodeID
}

func (*CombineNode) Kind() Kind                           { return KindCombine }
func (n *CombineNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.X, n.Y, n.Z, n.W) }
func (*CombineNode) appendPayload(b []byte) []byte        { return b }
func (n *CombineNode) validate(g *Graph) error {
	return firstErr(
		g.checkInput("combine x", n.X, true),
		g.checkInput("combine y", n.Y, true),
		g.checkInput("combine z", n.Z, true),
		g.checkInput("combine w", n.W, true),
	)
}

// SinNode evaluates to the sine of Input.
type SinNode struct {
	Input NodeID
}

func (*SinNode) Kind() Kind                           { return KindSin }
func (n *SinNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.Input) }
func (*SinNode) appendPayload(b []byte) []byte        { return b }
func (n *SinNode) validate(g *Graph) error            { return g.checkInput("sin input", n.Input, true) }

// VertexData selects an interpolated vertex attribute.
type VertexData uint8

const (
	VertexPosition VertexData = iota
	VertexNormal
	VertexUV
)

// VertexNode reads an interpolated vertex attribute, optionally swizzled.
type VertexNode struct {
	Data    VertexData
	Swizzle string
}

func (*VertexNode) Kind() Kind                         { return KindVertex }
func (*VertexNode) AppendInputs(dst []NodeID) []NodeID { return dst }
func (n *VertexNode) appendPayload(b []byte) []byte {
	b = append(b, byte(n.Data))
	return appendString(b, n.Swizzle)
}
func (n *VertexNode) validate(*Graph) error {
	if n.Data > VertexUV {
		return fmt.Errorf("vertex node: invalid vertex data %d", n.Data)
	} else if n.Swizzle != "" {
		if err := validSwizzle(n.Swizzle); err != nil {
			return fmt.Errorf("vertex node: %w", err)
		}
	}
	return nil
}

// RenderNode is the root of a surface material. Unset inputs fall back to
// the interpolated vertex colour, the mesh normal and no occlusion.
type RenderNode struct {
	Colour           NodeID
	Normal           NodeID
	AmbientOcclusion NodeID
}

func (*RenderNode) Kind() Kind { return KindRender }
func (n *RenderNode) AppendInputs(dst []NodeID) []NodeID {
	return append(dst, n.Colour, n.Normal, n.AmbientOcclusion)
}
func (*RenderNode) appendPayload(b []byte) []byte { return b }
func (n *RenderNode) validate(g *Graph) error {
	return firstErr(
		g.checkInput("render colour", n.Colour, false),
		g.checkInput("render normal", n.Normal, false),
		g.checkInput("render ambient occlusion", n.AmbientOcclusion, false),
	)
}

// SkyBoxNode is the root of a sky box material sampling CubeMap.
type SkyBoxNode struct {
	CubeMap *CubeMap
}

func (*SkyBoxNode) Kind() Kind                         { return KindSkyBox }
func (*SkyBoxNode) AppendInputs(dst []NodeID) []NodeID { return dst }
func (n *SkyBoxNode) appendPayload(b []byte) []byte {
	c := n.CubeMap
	var sampler uint32
	if c.Sampler != nil {
		sampler = c.Sampler.Index
	}
	b = appendUint(b, uint64(c.ID))
	return appendUint32s(b, c.Index, c.Size, sampler)
}
func (n *SkyBoxNode) validate(*Graph) error {
	if n.CubeMap == nil {
		return fmt.Errorf("sky box node: %w", errNilTexture)
	}
	return nil
}

// AmbientOcclusionNode is a screen space ambient occlusion post-processing root.
// Position and Normal must be [TextureNode]s holding view space G-buffer data.
type AmbientOcclusionNode struct {
	Colour      NodeID
	Position    NodeID
	Normal      NodeID
	SampleCount uint32
	Radius      float32
	Bias        float32
}

func (*AmbientOcclusionNode) Kind() Kind { return KindAmbientOcclusion }
func (n *AmbientOcclusionNode) AppendInputs(dst []NodeID) []NodeID {
	return append(dst, n.Colour, n.Position, n.Normal)
}
func (n *AmbientOcclusionNode) appendPayload(b []byte) []byte {
	b = appendUint(b, uint64(n.SampleCount))
	return appendFloats(b, n.Radius, n.Bias)
}
func (n *AmbientOcclusionNode) validate(g *Graph) error {
	if n.SampleCount == 0 {
		return fmt.Errorf("ambient occlusion node: sample count must be positive")
	} else if !(n.Radius > 0) || math32.IsInf(n.Radius, 1) {
		return fmt.Errorf("ambient occlusion node: radius must be positive and finite, got %g", n.Radius)
	} else if err := checkFinite("ambient occlusion node", n.Bias); err != nil {
		return err
	}
	return firstErr(
		g.checkInput("ambient occlusion colour", n.Colour, false),
		g.checkTexture("ambient occlusion position", n.Position, true),
		g.checkTexture("ambient occlusion normal", n.Normal, true),
	)
}

// ToneMapCurve selects the tone mapping operator of a [ColourAdjustNode].
type ToneMapCurve uint8

const (
	ToneMapNone ToneMapCurve = iota
	ToneMapReinhard
	ToneMapACES
)

// ColourAdjustNode applies tone mapping followed by gamma correction.
type ColourAdjustNode struct {
	Colour  NodeID
	Gamma   float32
	ToneMap ToneMapCurve
}

func (*ColourAdjustNode) Kind() Kind                           { return KindColourAdjust }
func (n *ColourAdjustNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.Colour) }
func (n *ColourAdjustNode) appendPayload(b []byte) []byte {
	b = appendFloats(b, n.Gamma)
	return append(b, byte(n.ToneMap))
}
func (n *ColourAdjustNode) validate(g *Graph) error {
	if !(n.Gamma > 0) || math32.IsInf(n.Gamma, 1) {
		return fmt.Errorf("colour adjust node: gamma must be positive and finite, got %g", n.Gamma)
	} else if n.ToneMap > ToneMapACES {
		return fmt.Errorf("colour adjust node: invalid tone map curve %d", n.ToneMap)
	}
	return g.checkInput("colour adjust colour", n.Colour, false)
}

// AntiAliasingNode is a fast approximate anti-aliasing root over the
// texture sampled by Input, which must be a [TextureNode].
type AntiAliasingNode struct {
	Input NodeID
}

func (*AntiAliasingNode) Kind() Kind                           { return KindAntiAliasing }
func (n *AntiAliasingNode) AppendInputs(dst []NodeID) []NodeID { return append(dst, n.Input) }
func (*AntiAliasingNode) appendPayload(b []byte) []byte        { return b }
func (n *AntiAliasingNode) validate(g *Graph) error {
	return g.checkTexture("anti aliasing input", n.Input, true)
}

func validSwizzle(s string) error {
	if len(s) == 0 || len(s) > 4 {
		return fmt.Errorf("swizzle %q must have 1 to 4 components", s)
	}
	const xyzw, rgba = "xyzw", "rgba"
	set := xyzw
	if s[0] == 'r' || s[0] == 'g' || s[0] == 'b' || s[0] == 'a' {
		set = rgba
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != set[0] && c != set[1] && c != set[2] && c != set[3] {
			return fmt.Errorf("swizzle %q mixes or contains invalid components", s)
		}
	}
	return nil
}

// checkFinite rejects NaN and infinite literals, which have no shader source form.
func checkFinite(what string, v ...float32) error {
	for _, f := range v {
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return fmt.Errorf("%s: %w, got %g", what, errNotFinite, f)
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
