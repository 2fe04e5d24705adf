package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/soypat/rendergraph"
	"github.com/soypat/rendergraph/graphfile"
	"github.com/soypat/rendergraph/jobs"
	"github.com/soypat/rendergraph/shadergen"
)

// job compiles one graph variant.
type job struct {
	name  string
	graph *rendergraph.Graph
	cfg   shadergen.Config
}

// outputs returns the vertex and fragment file names of the job.
func (j job) outputs(dir string) (vertex, fragment string) {
	base := fmt.Sprintf("%s_%s", j.name, j.cfg.Light)
	if j.cfg.RenderNormal {
		base += "_normal"
	}
	if j.cfg.RenderPosition {
		base += "_position"
	}
	var vext, fext string
	switch j.cfg.Language {
	case shadergen.GLSL:
		vext, fext = ".vert", ".frag"
	case shadergen.HLSL:
		vext, fext = ".vs.hlsl", ".ps.hlsl"
	case shadergen.MSL:
		vext, fext = ".vertex.metal", ".fragment.metal"
	}
	return filepath.Join(dir, base+vext), filepath.Join(dir, base+fext)
}

func (j job) run(dir string) error {
	src, err := shadergen.Compile(j.graph, j.cfg)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", j.name, j.cfg.Language, j.cfg.Light, err)
	}
	vpath, fpath := j.outputs(dir)
	if err := os.WriteFile(vpath, []byte(src.Vertex), 0o644); err != nil {
		return err
	}
	return os.WriteFile(fpath, []byte(src.Fragment), 0o644)
}

// loadJobs decodes every graph file and pairs it with every variant.
// Graphs are shared between jobs; compilation only reads them.
func loadJobs(files []string, variants []shadergen.Config) ([]job, error) {
	var ids rendergraph.ResourceIDs
	res := &graphfile.Resources{IDs: &ids}
	var out []job
	for _, file := range files {
		g, err := graphfile.Load(file, res)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		for _, v := range variants {
			out = append(out, job{name: name, graph: g, cfg: v})
		}
	}
	return out, nil
}

// compileAll runs all jobs over a pool of workers writing shaders to dir.
// Every failing job is reported.
func compileAll(dir string, workers int, todo []job) error {
	if workers < 1 {
		workers = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var q jobs.Queue[job]
	for _, j := range todo {
		q.Enqueue(j)
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		done int
	)
	log := rendergraph.Logger()
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !q.Empty() {
				j, ok := q.TryDequeue()
				if !ok {
					runtime.Gosched() // Contended or drained by another worker.
					continue
				}
				err := j.run(dir)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					done++
				}
				mu.Unlock()
				log.Debug("compiled", "graph", j.name, "language", j.cfg.Language.String(), "light", j.cfg.Light.String(), "err", err)
			}
		}()
	}
	wg.Wait()
	log.Info("compilation finished", "ok", done, "failed", len(errs), "workers", workers, "elapsed", time.Since(start))
	return errors.Join(errs...)
}
