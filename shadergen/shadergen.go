// Package shadergen compiles render graphs into vertex and fragment shader
// source for GLSL, HLSL and MSL. Snippets for every node kind and language
// live in a single template table validated when the package is loaded.
package shadergen

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/shadergen/shaderlib"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported shader language")
	ErrCompilerUsed        = errors.New("compiler already used, create a new one per graph")
	ErrNotExpression       = errors.New("node kind cannot be used as an expression")
)

// Language is a target shading language.
type Language uint8

const (
	GLSL Language = iota
	HLSL
	MSL
	languageCount
)

// Languages returns all supported languages.
func Languages() []Language { return []Language{GLSL, HLSL, MSL} }

func (l Language) String() string {
	switch l {
	case GLSL:
		return "glsl"
	case HLSL:
		return "hlsl"
	case MSL:
		return "msl"
	}
	return fmt.Sprintf("Language(%d)", uint8(l))
}

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool { return l < languageCount }

// ParseLanguage parses a language name as returned by [Language.String]. Case insensitive.
func ParseLanguage(s string) (Language, error) {
	for _, l := range Languages() {
		if strings.EqualFold(l.String(), s) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

func (l Language) library() string {
	switch l {
	case GLSL:
		return shaderlib.GLSL()
	case HLSL:
		return shaderlib.HLSL()
	case MSL:
		return shaderlib.MSL()
	}
	return ""
}

// Config selects the variant of a material to compile.
type Config struct {
	Language Language
	// Light selects the lighting model of render roots. Other roots ignore it.
	Light rendergraph.LightType
	// RenderNormal adds a view space normal output to render roots.
	RenderNormal bool
	// RenderPosition adds a view space position output to render roots.
	RenderPosition bool
}

// DefaultConfig returns an ambient lit GLSL configuration with no extra outputs.
func DefaultConfig() Config {
	return Config{Language: GLSL, Light: rendergraph.LightAmbient}
}

// Source is a compiled vertex and fragment shader pair.
type Source struct {
	Vertex   string
	Fragment string
}

// Compile compiles g with a new [Compiler] configured with cfg.
func Compile(g *rendergraph.Graph, cfg Config) (Source, error) {
	c := NewCompiler(cfg)
	if err := c.Compile(g); err != nil {
		return Source{}, err
	}
	return Source{Vertex: c.VertexShader(), Fragment: c.FragmentShader()}, nil
}

// Snippet names an entry of the template table.
type Snippet uint8

const (
	SnippetPrelude Snippet = iota
	SnippetRenderVertex
	SnippetRenderFragment
	SnippetSkyBoxVertex
	SnippetSkyBoxFragment
	SnippetPostProcessVertex
	SnippetAmbientOcclusionFragment
	SnippetColourAdjustFragment
	SnippetAntiAliasingFragment
	SnippetValueFloat
	SnippetValueVector3
	SnippetValueColour
	SnippetColour
	SnippetTexture
	SnippetArithmetic
	SnippetConditional
	SnippetComposite
	SnippetBlur
	SnippetInvert
	SnippetComponent
	SnippetCombine
	SnippetSin
	SnippetVertex
	SnippetShadowFunction
	SnippetInvertFunction
	SnippetBlurFunction
	SnippetCompositeFunction
	SnippetRGBToLumaFunction
	snippetCount
)

var snippetNames = [snippetCount]string{
	SnippetPrelude:                  "prelude",
	SnippetRenderVertex:             "render_vertex",
	SnippetRenderFragment:           "render_fragment",
	SnippetSkyBoxVertex:             "sky_box_vertex",
	SnippetSkyBoxFragment:           "sky_box_fragment",
	SnippetPostProcessVertex:        "post_process_vertex",
	SnippetAmbientOcclusionFragment: "ambient_occlusion_fragment",
	SnippetColourAdjustFragment:     "colour_adjust_fragment",
	SnippetAntiAliasingFragment:     "anti_aliasing_fragment",
	SnippetValueFloat:               "value_float",
	SnippetValueVector3:             "value_vector3",
	SnippetValueColour:              "value_colour",
	SnippetColour:                   "colour",
	SnippetTexture:                  "texture",
	SnippetArithmetic:               "arithmetic",
	SnippetConditional:              "conditional",
	SnippetComposite:                "composite",
	SnippetBlur:                     "blur",
	SnippetInvert:                   "invert",
	SnippetComponent:                "component",
	SnippetCombine:                  "combine",
	SnippetSin:                      "sin",
	SnippetVertex:                   "vertex",
	SnippetShadowFunction:           "shadow_function",
	SnippetInvertFunction:           "invert_function",
	SnippetBlurFunction:             "blur_function",
	SnippetCompositeFunction:        "composite_function",
	SnippetRGBToLumaFunction:        "rgb_to_luma_function",
}

func (s Snippet) String() string {
	if s >= snippetCount {
		return fmt.Sprintf("Snippet(%d)", uint8(s))
	}
	return snippetNames[s]
}

type tableKey struct {
	snippet Snippet
	lang    Language
}

// table holds a template for every (snippet, language) pair.
var table map[tableKey]*template.Template

func init() {
	var err error
	table, err = buildTable()
	if err != nil {
		panic("shadergen: incomplete template table: " + err.Error())
	}
}

func buildTable() (map[tableKey]*template.Template, error) {
	tbl := make(map[tableKey]*template.Template, int(snippetCount)*int(languageCount))
	var errs []error
	for _, lang := range Languages() {
		lib, err := template.New(lang.String()).Option("missingkey=error").Parse(lang.library())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			continue
		}
		for s := Snippet(0); s < snippetCount; s++ {
			tmpl := lib.Lookup(s.String())
			if tmpl == nil {
				errs = append(errs, fmt.Errorf("%s: missing snippet %q", lang, s))
				continue
			}
			tbl[tableKey{snippet: s, lang: lang}] = tmpl
		}
	}
	return tbl, errors.Join(errs...)
}
