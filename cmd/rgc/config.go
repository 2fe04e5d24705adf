package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/shadergen"
)

// config is the TOML configuration of a compilation run.
type config struct {
	// Graphs are YAML graph description files.
	Graphs         []string `toml:"graphs"`
	Languages      []string `toml:"languages"`
	Lights         []string `toml:"lights"`
	RenderNormal   bool     `toml:"render_normal"`
	RenderPosition bool     `toml:"render_position"`
	// Output is the directory shader files are written to.
	Output  string `toml:"output"`
	Workers int    `toml:"workers"`
}

func defaultConfig() config {
	return config{
		Languages: []string{shadergen.GLSL.String()},
		Lights:    []string{rendergraph.LightAmbient.String()},
		Output:    ".",
		Workers:   runtime.NumCPU(),
	}
}

// loadConfig decodes the TOML file at path over the defaults.
// Unknown keys are rejected.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	fp, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer fp.Close()
	dec := toml.NewDecoder(fp)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
		}
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// variants expands the configured languages and lights into compiler configurations.
func (cfg *config) variants() ([]shadergen.Config, error) {
	if len(cfg.Languages) == 0 || len(cfg.Lights) == 0 {
		return nil, errors.New("at least one language and one light type required")
	}
	var out []shadergen.Config
	for _, ls := range cfg.Languages {
		lang, err := shadergen.ParseLanguage(ls)
		if err != nil {
			return nil, err
		}
		for _, lts := range cfg.Lights {
			light, err := rendergraph.ParseLightType(lts)
			if err != nil {
				return nil, err
			}
			out = append(out, shadergen.Config{
				Language:       lang,
				Light:          light,
				RenderNormal:   cfg.RenderNormal,
				RenderPosition: cfg.RenderPosition,
			})
		}
	}
	return out, nil
}

func (cfg *config) String() string {
	var sb strings.Builder
	enc := toml.NewEncoder(&sb)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return err.Error()
	}
	return sb.String()
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
