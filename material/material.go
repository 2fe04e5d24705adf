// Package material compiles render graphs into linked shader programs and
// caches the result per graph, light type and output variant.
package material

import (
	"errors"
	"fmt"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/shadergen"
)

// Key identifies a material variant. Graphs are keyed by identity: two
// distinct graphs with equal structure produce distinct materials.
type Key struct {
	Graph          *rendergraph.Graph
	Light          rendergraph.LightType
	RenderNormal   bool
	RenderPosition bool
}

// Program is a shader program linked by a backend.
type Program interface {
	Delete()
}

// Linker links compiled shader source into a backend program.
type Linker interface {
	Link(src shadergen.Source) (Program, error)
}

// Material is a compiled and linked render graph variant.
type Material struct {
	Key     Key
	Source  shadergen.Source
	Program Program
}

// Manager creates materials on demand and caches them.
type Manager struct {
	lang   shadergen.Language
	linker Linker
	cache  Cache[Key, *Material]
}

// NewManager returns a manager compiling to lang. If linker is nil materials
// carry shader source only.
func NewManager(lang shadergen.Language, linker Linker) *Manager {
	return &Manager{lang: lang, linker: linker}
}

// Language returns the language materials are compiled to.
func (m *Manager) Language() shadergen.Language { return m.lang }

// Create returns the material for g lit by light, compiling and linking it on first use.
func (m *Manager) Create(g *rendergraph.Graph, light rendergraph.LightType, renderNormal, renderPosition bool) (*Material, error) {
	if g == nil {
		return nil, errors.New("nil render graph")
	}
	key := Key{Graph: g, Light: light, RenderNormal: renderNormal, RenderPosition: renderPosition}
	return m.cache.GetOrCreate(key, func() (*Material, error) {
		return m.build(key)
	})
}

func (m *Manager) build(key Key) (*Material, error) {
	cfg := shadergen.Config{
		Language:       m.lang,
		Light:          key.Light,
		RenderNormal:   key.RenderNormal,
		RenderPosition: key.RenderPosition,
	}
	src, err := shadergen.Compile(key.Graph, cfg)
	if err != nil {
		return nil, fmt.Errorf("compiling %s material: %w", key.Light, err)
	}
	mat := &Material{Key: key, Source: src}
	if m.linker != nil {
		mat.Program, err = m.linker.Link(src)
		if err != nil {
			return nil, fmt.Errorf("linking %s material: %w", key.Light, err)
		}
	}
	rendergraph.Logger().Debug("material cache miss",
		"language", m.lang.String(),
		"light", key.Light.String(),
		"normal", key.RenderNormal,
		"position", key.RenderPosition,
		"cached", m.cache.Len(),
	)
	return mat, nil
}

// Clear deletes all linked programs and empties the cache. It is called when
// the render pipeline changes or the output surface is resized.
func (m *Manager) Clear() {
	m.cache.Range(func(_ Key, mat *Material) bool {
		if mat.Program != nil {
			mat.Program.Delete()
		}
		return true
	})
	m.cache.Clear()
}

// Len returns the number of cached materials.
func (m *Manager) Len() int { return m.cache.Len() }

// CacheHits returns the amount of Create calls served from the cache.
func (m *Manager) CacheHits() uint64 { return m.cache.CacheHits() }

// Lookups returns the total amount of Create calls with a non-nil graph.
func (m *Manager) Lookups() uint64 { return m.cache.Lookups() }
