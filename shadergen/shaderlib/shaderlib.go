// Package shaderlib embeds the per-language shader snippet libraries.
// Each library is a text/template file holding one named template per
// snippet, i.e: {{define "render_fragment"}}...{{end}}.
package shaderlib

import (
	_ "embed"
)

//go:embed glsl.tmpl
var glslSrc string

//go:embed hlsl.tmpl
var hlslSrc string

//go:embed msl.tmpl
var mslSrc string

// GLSL returns the OpenGL 4.3 snippet library. Textures are accessed
// through ARB_bindless_texture handles.
func GLSL() string { return glslSrc }

// HLSL returns the Direct3D shader model 6 snippet library.
func HLSL() string { return hlslSrc }

// MSL returns the Metal shading language snippet library.
func MSL() string { return mslSrc }
