package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/chazu/splashmap/pkg/config"
	"github.com/chazu/splashmap/pkg/engine"
	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/chazu/splashmap/pkg/kernel/sdfx"
	"github.com/chazu/splashmap/pkg/meshio"
	"github.com/chazu/splashmap/pkg/splash"
	"github.com/chazu/splashmap/pkg/stream"
	"github.com/chazu/splashmap/pkg/tessellate"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Events emitted to the frontend while a live particle run plays.
const (
	EventFrame = "splash:frame"
	EventDone  = "splash:done"
)

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	cfg    *config.Config
	engine *engine.Engine
	kernel kernel.Kernel
	sim    *splash.Simulator

	mu     sync.Mutex
	mesh   *kernel.Mesh
	params splash.Params
	live   *liveRun
	runs   sync.WaitGroup

	// Emit delivers live events. startup points it at the Wails runtime.
	Emit func(event string, data ...any)
}

type liveRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Name     string    `json:"name"`
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	UVs      []float32 `json:"uvs"`
	Indices  []uint32  `json:"indices"`
	Faces    int       `json:"faces"`
}

// ErrorData is a JSON-serializable error or warning for the frontend.
type ErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// LoadData is returned when a script or mesh file replaces the geometry.
type LoadData struct {
	Mesh     *MeshData   `json:"mesh"`
	Source   [3]float64  `json:"source"`
	Force    float64     `json:"force"`
	Errors   []ErrorData `json:"errors"`
	Warnings []ErrorData `json:"warnings"`
}

// SimulationData is one heatmap result as the frontend consumes it.
type SimulationData struct {
	Version         uint64      `json:"version"`
	Strategy        string      `json:"strategy"`
	FaceIntensities []float64   `json:"faceIntensities"`
	VertexColors    []float32   `json:"vertexColors"`
	Min             float64     `json:"min"`
	Max             float64     `json:"max"`
	Average         float64     `json:"average"`
	Samples         int         `json:"samples"`
	TotalHits       int         `json:"totalHits"`
	SkippedFaces    int         `json:"skippedFaces"`
	Errors          []ErrorData `json:"errors"`
}

// NewApp creates an App from cfg, or from the defaults when cfg is nil.
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	est, err := cfg.Estimator()
	if err != nil {
		log.Printf("NewApp: %v, using analytic strategy", err)
		est = splash.Analytic{Workers: cfg.Simulation.Workers}
	}
	return &App{
		cfg:    cfg,
		engine: engine.NewEngine(),
		kernel: sdfx.NewWithCells(cfg.Kernel.MeshCells),
		sim:    splash.NewSimulator(est),
		params: cfg.Params(),
		Emit:   func(string, ...any) {},
	}
}

// startup is called by Wails on app startup. The context is saved so live
// runs can emit events through the Wails runtime.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.Emit = func(event string, data ...any) {
		runtime.EventsEmit(ctx, event, data...)
	}
}

// shutdown is called by Wails before the window closes.
func (a *App) shutdown(context.Context) {
	a.StopLive()
	a.runs.Wait()
}

func (a *App) context() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// LoadScript evaluates a scene script and makes its merged geometry the
// current mesh. A (source ...) or (force ...) form in the script replaces the
// current emitter settings.
func (a *App) LoadScript(source string) LoadData {
	result := a.newLoadData()

	res, err := a.engine.Check(source)
	if err != nil {
		// Fatal error (panic, timeout, superseded)
		log.Printf("LoadScript fatal error: %v", err)
		result.Errors = append(result.Errors, ErrorData{Message: err.Error()})
		return result
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, ErrorData{Line: w.Line, Col: w.Col, Message: w.Message})
	}
	if !res.OK() {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, ErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	world, err := tessellate.World(res.Graph, a.kernel, a.cfg.Simulation.WeldEpsilon)
	if err != nil {
		log.Printf("LoadScript tessellate error: %v", err)
		result.Errors = append(result.Errors, ErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}

	a.StopLive()
	a.mu.Lock()
	a.mesh = world
	if em, ok := res.Graph.Emitter(); ok {
		if em.Source != nil {
			a.params.Source = splash.ClampSource(em.Source.Vec())
		}
		if em.Force != nil {
			a.params.Force = splash.ClampForce(*em.Force)
		}
	}
	a.mu.Unlock()

	return a.fillLoadData(result, world)
}

// LoadMesh parses an uploaded OBJ or STL file and makes it the current mesh.
// The file format is taken from name's extension.
func (a *App) LoadMesh(name string, contents []byte) LoadData {
	result := a.newLoadData()

	m, err := meshio.Decode(name, contents)
	if err != nil {
		log.Printf("LoadMesh %s: %v", name, err)
		result.Errors = append(result.Errors, ErrorData{Message: err.Error()})
		return result
	}
	m = m.Weld(a.cfg.Simulation.WeldEpsilon)

	a.StopLive()
	a.mu.Lock()
	a.mesh = m
	a.mu.Unlock()

	return a.fillLoadData(result, m)
}

func (a *App) newLoadData() LoadData {
	a.mu.Lock()
	p := a.params
	a.mu.Unlock()
	return LoadData{
		Source:   p.Source,
		Force:    p.Force,
		Errors:   []ErrorData{},
		Warnings: []ErrorData{},
	}
}

func (a *App) fillLoadData(result LoadData, m *kernel.Mesh) LoadData {
	a.mu.Lock()
	result.Source, result.Force = a.params.Source, a.params.Force
	a.mu.Unlock()
	result.Mesh = meshData(m)
	return result
}

func meshData(m *kernel.Mesh) *MeshData {
	md := &MeshData{
		Name:     m.Name,
		Vertices: m.Vertices,
		Normals:  m.Normals,
		UVs:      m.UVs,
		Indices:  m.Indices,
		Faces:    m.TriangleCount(),
	}
	if md.UVs == nil {
		md.UVs = []float32{}
	}
	if md.Indices == nil {
		md.Indices = []uint32{}
	}
	return md
}

// SetSource moves the splash source and returns the clamped position.
func (a *App) SetSource(x, y, z float64) [3]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.params.Source = splash.ClampSource(mgl64.Vec3{x, y, z})
	return a.params.Source
}

// SetForce sets the launch force and returns the clamped value.
func (a *App) SetForce(force float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.params.Force = splash.ClampForce(force)
	return a.params.Force
}

// SetStrategy selects the estimator used by Simulate.
func (a *App) SetStrategy(name string) []ErrorData {
	est, err := splash.NewEstimator(name, a.cfg.Options())
	if err != nil {
		log.Printf("SetStrategy: %v", err)
		return []ErrorData{{Message: err.Error()}}
	}
	a.sim.SetEstimator(est)
	return []ErrorData{}
}

// Simulate runs the current strategy on the current mesh. Any live run is
// stopped first.
func (a *App) Simulate() SimulationData {
	a.StopLive()

	m, p := a.snapshot()
	if m == nil {
		return SimulationData{Errors: []ErrorData{{Message: "no mesh loaded"}}}
	}

	r, err := a.sim.Run(a.context(), m, p)
	if err != nil {
		log.Printf("Simulate: %v", err)
		return SimulationData{Errors: []ErrorData{{Message: err.Error()}}}
	}
	return simulationData(r)
}

func (a *App) snapshot() (*kernel.Mesh, splash.Params) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mesh, a.params
}

func simulationData(r *splash.Result) SimulationData {
	return SimulationData{
		Version:         r.Version,
		Strategy:        r.Strategy,
		FaceIntensities: r.FaceIntensities,
		VertexColors:    r.VertexColors,
		Min:             r.Min,
		Max:             r.Max,
		Average:         r.Average,
		Samples:         r.Samples,
		TotalHits:       r.TotalHits,
		SkippedFaces:    r.SkippedFaces,
		Errors:          []ErrorData{},
	}
}

// StartLive starts a particle run on the current mesh and returns the version
// its frames carry. Frames are emitted as EventFrame; the final result is
// emitted as EventDone unless the run is stopped or superseded.
func (a *App) StartLive() SimulationData {
	a.StopLive()

	m, p := a.snapshot()
	if m == nil {
		return SimulationData{Errors: []ErrorData{{Message: "no mesh loaded"}}}
	}
	interval, err := a.cfg.Server.Interval()
	if err != nil {
		return SimulationData{Errors: []ErrorData{{Message: err.Error()}}}
	}

	opts := a.cfg.Options()
	est := splash.Particles{Config: opts.Particles, TextureSize: opts.TextureSize, SplatRadius: opts.SplatRadius}
	session, err := est.Start(m, p)
	if err != nil {
		log.Printf("StartLive: %v", err)
		return SimulationData{Errors: []ErrorData{{Message: err.Error()}}}
	}

	version := a.sim.Next()
	ctx, cancel := context.WithCancel(a.context())
	run := &liveRun{cancel: cancel, done: make(chan struct{})}
	a.mu.Lock()
	prev := a.live
	a.live = run
	a.mu.Unlock()
	// A concurrent StartLive may have stored its run after ours was stopped.
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	a.runs.Add(1)
	go func() {
		defer a.runs.Done()
		defer close(run.done)
		defer cancel()
		r, err := stream.Play(ctx, session, interval, version, func(f stream.Frame) {
			if a.sim.IsCurrent(version) {
				a.Emit(EventFrame, f)
			}
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("live run %d: %v", version, err)
			}
			return
		}
		if a.sim.IsCurrent(version) {
			a.Emit(EventDone, simulationData(r))
		}
	}()

	return SimulationData{
		Version:         version,
		Strategy:        est.Name(),
		FaceIntensities: []float64{},
		VertexColors:    []float32{},
		Samples:         session.Config().Count,
		Errors:          []ErrorData{},
	}
}

// StopLive cancels the live run, if any, and waits for it to finish.
func (a *App) StopLive() {
	a.mu.Lock()
	run := a.live
	a.live = nil
	a.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	<-run.done
}

// Status describes the current mesh and emitter for the frontend header.
func (a *App) Status() string {
	m, p := a.snapshot()
	name, faces := "none", 0
	if m != nil {
		name, faces = m.Name, m.TriangleCount()
	}
	return fmt.Sprintf("mesh %s (%d faces), source (%.2f, %.2f, %.2f), force %.0f, %s",
		name, faces, p.Source[0], p.Source[1], p.Source[2], p.Force, a.sim.Estimator().Name())
}
