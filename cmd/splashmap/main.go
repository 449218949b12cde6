// Command splashmap estimates splashback heatmaps without the desktop UI.
//
// It loads a mesh file or a scene script, runs one estimator and writes the
// result as JSON (zstd compressed when the path ends in .zst) and as a PNG
// texture, or streams a live particle run to websocket clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/splashmap/pkg/config"
	"github.com/chazu/splashmap/pkg/engine"
	"github.com/chazu/splashmap/pkg/graph"
	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/chazu/splashmap/pkg/kernel/sdfx"
	"github.com/chazu/splashmap/pkg/meshio"
	"github.com/chazu/splashmap/pkg/splash"
	"github.com/chazu/splashmap/pkg/stream"
	"github.com/chazu/splashmap/pkg/tessellate"
	"github.com/go-gl/mathgl/mgl64"
)

type options struct {
	configPath, meshPath, scriptPath string
	outPath, texturePath             string
	strategy, source                 string
	force                            float64
	serve, exampleConfig             bool
}

func main() {
	var opt options
	flag.StringVar(&opt.configPath, "config", "", "Configuration file. Defaults are used when empty.")
	flag.StringVar(&opt.meshPath, "mesh", "", "OBJ or STL mesh to estimate.")
	flag.StringVar(&opt.scriptPath, "script", "", "Scene script to evaluate instead of a mesh file.")
	flag.StringVar(&opt.outPath, "out", "", "Write the result as JSON. A .zst suffix compresses it.")
	flag.StringVar(&opt.texturePath, "texture", "", "Write the heatmap texture as PNG.")
	flag.StringVar(&opt.strategy, "strategy", "", "Estimator: analytic or particles. Overrides the config.")
	flag.Float64Var(&opt.force, "force", 0, "Launch force in [1, 100]. Overrides the config and script.")
	flag.StringVar(&opt.source, "source", "", "Source point as x,y,z. Overrides the config and script.")
	flag.BoolVar(&opt.serve, "serve", false, "Stream a live particle run over websocket instead of writing files.")
	flag.BoolVar(&opt.exampleConfig, "example-config", false, "Print an example configuration file and exit.")
	flag.Parse()

	if opt.exampleConfig {
		fmt.Print(config.ExampleFile)
		return
	}

	if err := run(opt); err != nil {
		log.Fatal(err)
	}
}

func run(opt options) error {
	cfg := config.Default()
	if opt.configPath != "" {
		var err error
		if cfg, err = config.ReadFile(opt.configPath); err != nil {
			return err
		}
	}

	m, emitter, err := loadGeometry(cfg, opt)
	if err != nil {
		return err
	}

	p := cfg.Params()
	if emitter.Source != nil {
		p.Source = emitter.Source.Vec()
	}
	if emitter.Force != nil {
		p.Force = *emitter.Force
	}
	if opt.source != "" {
		if p.Source, err = parseVec3(opt.source); err != nil {
			return err
		}
	}
	if opt.force != 0 {
		p.Force = opt.force
	}
	if opt.strategy != "" {
		cfg.Simulation.Strategy = opt.strategy
	}
	p = p.Normalized()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opt.serve {
		return serve(ctx, cfg, m, p)
	}

	est, err := cfg.Estimator()
	if err != nil {
		return err
	}
	start := time.Now()
	r, err := splash.NewSimulator(est).Run(ctx, m, p)
	if err != nil {
		return err
	}
	printSummary(m, r, time.Since(start))
	return writeOutputs(cfg, opt, m, r)
}

// loadGeometry returns the mesh named by -mesh or built from -script, along
// with the script's emitter settings, if any.
func loadGeometry(cfg *config.Config, opt options) (*kernel.Mesh, graph.EmitterData, error) {
	switch {
	case opt.meshPath != "" && opt.scriptPath != "":
		return nil, graph.EmitterData{}, errors.New("use either -mesh or -script, not both")
	case opt.meshPath != "":
		m, err := meshio.Load(opt.meshPath)
		if err != nil {
			return nil, graph.EmitterData{}, err
		}
		return m.Weld(cfg.Simulation.WeldEpsilon), graph.EmitterData{}, nil
	case opt.scriptPath != "":
		return loadScript(cfg, opt.scriptPath)
	}
	return nil, graph.EmitterData{}, errors.New("one of -mesh or -script is required")
}

func loadScript(cfg *config.Config, path string) (*kernel.Mesh, graph.EmitterData, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, graph.EmitterData{}, err
	}
	res, err := engine.NewEngine().Check(string(src))
	if err != nil {
		return nil, graph.EmitterData{}, err
	}
	for _, w := range res.Warnings {
		log.Printf("%s: warning: %s", path, w.Message)
	}
	if !res.OK() {
		msgs := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			msgs[i] = e.Error()
		}
		return nil, graph.EmitterData{}, fmt.Errorf("%s:\n  %s", path, strings.Join(msgs, "\n  "))
	}

	k := sdfx.NewWithCells(cfg.Kernel.MeshCells)
	m, err := tessellate.World(res.Graph, k, cfg.Simulation.WeldEpsilon)
	if err != nil {
		return nil, graph.EmitterData{}, err
	}
	em, _ := res.Graph.Emitter()
	return m, em, nil
}

func parseVec3(s string) (mgl64.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("-source %q: want x,y,z", s)
	}
	var v mgl64.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return mgl64.Vec3{}, fmt.Errorf("-source %q: %w", s, err)
		}
		v[i] = f
	}
	return v, nil
}

func printSummary(m *kernel.Mesh, r *splash.Result, elapsed time.Duration) {
	fmt.Printf("mesh:      %s (%d vertices, %d faces)\n", m.Name, m.VertexCount(), m.TriangleCount())
	fmt.Printf("strategy:  %s\n", r.Strategy)
	fmt.Printf("source:    (%.2f, %.2f, %.2f), force %.0f\n",
		r.Params.Source[0], r.Params.Source[1], r.Params.Source[2], r.Params.Force)
	fmt.Printf("samples:   %d, hits %d, skipped faces %d\n", r.Samples, r.TotalHits, r.SkippedFaces)
	fmt.Printf("intensity: min %.4g, average %.4g, max %.4g\n", r.Min, r.Average, r.Max)
	fmt.Printf("elapsed:   %s\n", elapsed.Round(time.Millisecond))
}

func writeOutputs(cfg *config.Config, opt options, m *kernel.Mesh, r *splash.Result) error {
	if opt.outPath != "" {
		if err := meshio.SaveResult(opt.outPath, r); err != nil {
			return err
		}
		log.Printf("wrote %s", opt.outPath)
	}
	if opt.texturePath != "" {
		img, err := r.Texture(m, cfg.Heatmap.TextureSize)
		if err != nil {
			return err
		}
		if err := meshio.SavePNG(opt.texturePath, img); err != nil {
			return err
		}
		log.Printf("wrote %s", opt.texturePath)
	}
	return nil
}

// serve streams a particle session to websocket clients on /stream until the
// session finishes or the process is interrupted.
func serve(ctx context.Context, cfg *config.Config, m *kernel.Mesh, p splash.Params) error {
	interval, err := cfg.Server.Interval()
	if err != nil {
		return err
	}
	opts := cfg.Options()
	session, err := splash.Particles{
		Config:      opts.Particles,
		TextureSize: opts.TextureSize,
		SplatRadius: opts.SplatRadius,
	}.Start(m, p)
	if err != nil {
		return err
	}

	hub := stream.NewHub()
	mux := http.NewServeMux()
	mux.Handle("/stream", hub)
	srv := &http.Server{Addr: cfg.Server.Address, Handler: mux}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
		cancel()
	}()
	log.Printf("streaming on ws://%s/stream", cfg.Server.Address)

	start := time.Now()
	r, playErr := stream.Serve(ctx, hub, session, interval, 1)
	hub.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if playErr != nil && !errors.Is(playErr, context.Canceled) {
		return playErr
	}
	printSummary(m, r, time.Since(start))
	return nil
}
