package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/shadergen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redGraph = `
nodes:
  - {id: red, kind: colour, value: [1, 0, 0, 1]}
  - {id: root, kind: render, inputs: {colour: red}}
root: root
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rgc.toml", `
graphs = ["a.yaml"]
languages = ["glsl", "msl"]
lights = ["ambient", "directional"]
render_normal = true
output = "out"
workers = 3
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml"}, cfg.Graphs)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.RenderNormal)
	variants, err := cfg.variants()
	require.NoError(t, err)
	require.Len(t, variants, 4)
	assert.Equal(t, shadergen.Config{Language: shadergen.MSL, Light: rendergraph.LightDirectional, RenderNormal: true}, variants[3])
	assert.Contains(t, cfg.String(), "workers = 3")

	bad := writeFile(t, dir, "bad.toml", "colour = 'blue'\n")
	_, err = loadConfig(bad)
	assert.Error(t, err)

	cfg = defaultConfig()
	cfg.Languages = []string{"wgsl"}
	_, err = cfg.variants()
	assert.ErrorIs(t, err, shadergen.ErrUnsupportedLanguage)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	graph := writeFile(t, dir, "red.yaml", redGraph)
	out := filepath.Join(dir, "shaders")
	err := run([]string{"-lang", "glsl,hlsl", "-light", "ambient,point", "-o", out, "-workers", "2", graph})
	require.NoError(t, err)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
	frag, err := os.ReadFile(filepath.Join(out, "red_ambient.frag"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(frag), "#version 430 core"))
	assert.Contains(t, string(frag), "vec4(1,0,0,1)")
	_, err = os.Stat(filepath.Join(out, "red_point.ps.hlsl"))
	assert.NoError(t, err)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, run(nil), "no graphs")
	assert.Error(t, run([]string{filepath.Join(dir, "missing.yaml")}))

	// Graphs without a root fail at decode time.
	noRoot := writeFile(t, dir, "noroot.yaml", "nodes:\n  - {id: c, kind: colour, value: [1, 1, 1]}\n")
	assert.Error(t, run([]string{"-o", dir, noRoot}))
}

func TestJobOutputs(t *testing.T) {
	j := job{name: "g", cfg: shadergen.Config{Language: shadergen.MSL, Light: rendergraph.LightPoint, RenderPosition: true}}
	v, f := j.outputs("dir")
	assert.Equal(t, filepath.Join("dir", "g_point_position.vertex.metal"), v)
	assert.Equal(t, filepath.Join("dir", "g_point_position.fragment.metal"), f)
}
