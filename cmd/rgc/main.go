// Command rgc compiles YAML render graph descriptions into shader source files
// for every configured language and light type.
//
// Usage:
//
//	rgc [-config rgc.toml] [-lang glsl,hlsl] [-light ambient,point] [-o dir] graph.yaml...
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/soypat/rendergraph"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "rgc:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("rgc", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "TOML configuration file")
		langs      = fs.String("lang", "", "comma separated shader languages (glsl, hlsl, msl)")
		lights     = fs.String("light", "", "comma separated light types (ambient, directional, point)")
		output     = fs.String("o", "", "output directory")
		workers    = fs.Int("workers", 0, "amount of compilation workers")
		normal     = fs.Bool("normal", false, "also write view space normals")
		position   = fs.Bool("position", false, "also write view space positions")
		verbose    = fs.Bool("v", false, "verbose logging")
		dump       = fs.Bool("dump-config", false, "print the resolved configuration and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	rendergraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			return err
		}
	}
	// Flags take precedence over the configuration file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lang":
			cfg.Languages = splitList(*langs)
		case "light":
			cfg.Lights = splitList(*lights)
		case "o":
			cfg.Output = *output
		case "workers":
			cfg.Workers = *workers
		case "normal":
			cfg.RenderNormal = *normal
		case "position":
			cfg.RenderPosition = *position
		}
	})
	cfg.Graphs = append(cfg.Graphs, fs.Args()...)
	if *dump {
		fmt.Print(cfg.String())
		return nil
	}
	if len(cfg.Graphs) == 0 {
		fs.Usage()
		return fmt.Errorf("no graph files given")
	}
	variants, err := cfg.variants()
	if err != nil {
		return err
	}
	todo, err := loadJobs(cfg.Graphs, variants)
	if err != nil {
		return err
	}
	return compileAll(cfg.Output, cfg.Workers, todo)
}
