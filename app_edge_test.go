package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/splashmap/pkg/config"
	"github.com/chazu/splashmap/pkg/splash"
)

// ---------------------------------------------------------------------------
// Script loading
// ---------------------------------------------------------------------------

func TestE2EEmptySource(t *testing.T) {
	app := NewApp(testConfig())
	result := app.LoadScript("")

	if len(result.Errors) != 1 {
		t.Fatalf("expected a single no-geometry error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Message, "no geometry") {
		t.Errorf("unexpected message %q", result.Errors[0].Message)
	}
	if result.Mesh != nil {
		t.Error("expected no mesh for empty source")
	}
	// Ensure slices are non-nil (JSON should serialize as [] not null).
	if result.Warnings == nil {
		t.Error("Warnings should be non-nil empty slice, got nil")
	}
}

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := NewApp(testConfig())

	// Valid code on line 1, broken code on line 2 so line info is meaningful.
	result := app.LoadScript("(+ 1 2)\n(defpart \"test\"")

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error for unmatched parens")
	}
	if result.Mesh != nil {
		t.Error("expected no mesh on syntax error")
	}
	if result.Errors[0].Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
}

func TestE2EUndefinedPartReference(t *testing.T) {
	app := NewApp(testConfig())
	result := app.LoadScript(`(assembly "room" (place (part "ghost")))`)

	if len(result.Errors) == 0 {
		t.Fatal("expected an error for an undefined part")
	}
	if !strings.Contains(result.Errors[0].Message, "ghost") {
		t.Errorf("error should name the missing part, got %q", result.Errors[0].Message)
	}
}

func TestE2EZeroDimensionBox(t *testing.T) {
	app := NewApp(testConfig())
	result := app.LoadScript(`(defpart "flat" (box :size (vec3 0 1 1)))`)

	if len(result.Errors) == 0 {
		t.Fatal("expected a validation error for a zero dimension")
	}
	if !strings.Contains(result.Errors[0].Message, "must be positive") {
		t.Errorf("unexpected message %q", result.Errors[0].Message)
	}
	if result.Mesh != nil {
		t.Error("expected no mesh for an invalid scene")
	}
}

func TestE2EEmitterOutOfRangeWarns(t *testing.T) {
	app := NewApp(testConfig())
	result := app.LoadScript(`
(defpart "floor" (panel :width 2 :depth 2))
(source (vec3 0 9 0))
(force 250)
`)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected source and force warnings, got %v", result.Warnings)
	}
	for _, w := range result.Warnings {
		if !strings.Contains(w.Message, "will be clamped") {
			t.Errorf("unexpected warning %q", w.Message)
		}
	}
	if result.Source != [3]float64{0, splash.SourceLimit, 0} {
		t.Errorf("source should be clamped, got %v", result.Source)
	}
	if result.Force != splash.MaxForce {
		t.Errorf("force should be clamped, got %v", result.Force)
	}
}

func TestE2EScriptWithoutEmitterKeepsSettings(t *testing.T) {
	app := NewApp(testConfig())
	app.SetSource(1, 2, 3)
	app.SetForce(20)

	result := app.LoadScript(`(defpart "floor" (panel))`)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Source != [3]float64{1, 2, 3} || result.Force != 20 {
		t.Errorf("settings changed without an emitter: %v, %v", result.Source, result.Force)
	}
}

func TestE2EFailedLoadKeepsMesh(t *testing.T) {
	app := NewApp(testConfig())
	if r := app.LoadScript(floorScript); len(r.Errors) > 0 {
		t.Fatalf("load errors: %v", r.Errors)
	}
	if r := app.LoadScript(`(defpart "broken"`); len(r.Errors) == 0 {
		t.Fatal("expected an error")
	}

	sim := app.Simulate()
	if len(sim.Errors) > 0 {
		t.Fatalf("the previous mesh should still simulate: %v", sim.Errors)
	}
	if len(sim.FaceIntensities) != 2 {
		t.Errorf("expected the floor's 2 faces, got %d", len(sim.FaceIntensities))
	}
}

func TestE2ERapidLoading(t *testing.T) {
	// Sequential rapid calls exercise the engine generation counter. The
	// last successful script wins.
	app := NewApp(testConfig())

	sources := []string{
		`(defpart "a" (panel :width 1 :depth 1))`,
		`(+ 1 2)`,
		``,
		`(defpart "b"`,
		`(defpart "c" (sphere :radius 0.3))`,
		floorScript,
	}
	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			_ = app.LoadScript(source)
		}()
	}

	if sim := app.Simulate(); len(sim.FaceIntensities) != 2 {
		t.Errorf("expected the floor to be current, got %d faces", len(sim.FaceIntensities))
	}
}

// ---------------------------------------------------------------------------
// Mesh files
// ---------------------------------------------------------------------------

func TestE2ELoadMeshErrors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		contents string
		expect   string
	}{
		{"unsupported extension", "scene.gltf", "{}", "unsupported"},
		{"no faces", "empty.obj", "v 0 0 0\n", ""},
		{"garbage stl", "junk.stl", "hello world\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp(testConfig())
			result := app.LoadMesh(tt.file, []byte(tt.contents))
			if len(result.Errors) == 0 {
				t.Fatal("expected an error")
			}
			if result.Mesh != nil {
				t.Error("expected no mesh")
			}
			if tt.expect != "" && !strings.Contains(result.Errors[0].Message, tt.expect) {
				t.Errorf("expected %q in %q", tt.expect, result.Errors[0].Message)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Emitter controls
// ---------------------------------------------------------------------------

func TestE2ESetSourceClamps(t *testing.T) {
	app := NewApp(testConfig())
	got := app.SetSource(9, -7, 1.5)
	if got != [3]float64{5, -5, 1.5} {
		t.Errorf("expected clamped source, got %v", got)
	}
}

func TestE2ESetForceClamps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{50, 50},
		{42.6, 43},
		{250, 100},
		{0.2, 1},
		{-10, 1},
	}
	app := NewApp(testConfig())
	for _, tt := range tests {
		if got := app.SetForce(tt.in); got != tt.want {
			t.Errorf("SetForce(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestE2ESetStrategy(t *testing.T) {
	app := NewApp(testConfig())

	errs := app.SetStrategy("fluid")
	if len(errs) != 1 {
		t.Fatalf("expected an error for an unknown strategy, got %v", errs)
	}
	if !strings.Contains(app.Status(), splash.StrategyAnalytic) {
		t.Errorf("a failed switch should keep the analytic strategy: %s", app.Status())
	}

	if errs := app.SetStrategy(splash.StrategyParticles); errs == nil || len(errs) != 0 {
		t.Fatalf("expected an empty error slice, got %v", errs)
	}
	if !strings.Contains(app.Status(), splash.StrategyParticles) {
		t.Errorf("status should name the particle strategy: %s", app.Status())
	}
}

func TestE2ENewAppWithBadStrategyFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.Strategy = "fluid"
	app := NewApp(cfg)
	if !strings.Contains(app.Status(), splash.StrategyAnalytic) {
		t.Errorf("expected analytic fallback: %s", app.Status())
	}
	if NewApp(nil).cfg == nil {
		t.Error("nil config should fall back to defaults")
	}
}

// ---------------------------------------------------------------------------
// Simulation
// ---------------------------------------------------------------------------

func TestE2ESimulateWithoutMesh(t *testing.T) {
	app := NewApp(testConfig())
	if sim := app.Simulate(); len(sim.Errors) != 1 {
		t.Errorf("expected a no-mesh error, got %v", sim.Errors)
	}
	if live := app.StartLive(); len(live.Errors) != 1 {
		t.Errorf("expected a no-mesh error, got %v", live.Errors)
	}
}

func TestE2ESimulateVersionsIncrease(t *testing.T) {
	app := NewApp(testConfig())
	if r := app.LoadScript(floorScript); len(r.Errors) > 0 {
		t.Fatalf("load errors: %v", r.Errors)
	}
	first, second := app.Simulate(), app.Simulate()
	if second.Version <= first.Version {
		t.Errorf("versions should increase: %d then %d", first.Version, second.Version)
	}
}

func TestE2EForceChangesResult(t *testing.T) {
	app := NewApp(testConfig())
	if r := app.LoadScript(floorScript); len(r.Errors) > 0 {
		t.Fatalf("load errors: %v", r.Errors)
	}
	near := app.Simulate()

	// The weakest launch never climbs half a unit.
	app.SetForce(1)
	weak := app.Simulate()

	if weak.TotalHits >= near.TotalHits {
		t.Errorf("expected fewer hits from a weak launch: default %d, weak %d", near.TotalHits, weak.TotalHits)
	}
}

// ---------------------------------------------------------------------------
// Live runs
// ---------------------------------------------------------------------------

func TestE2EStopLive(t *testing.T) {
	cfg := testConfig()
	cfg.Particles.Count = 1000000
	cfg.Particles.Rate = 100
	app := NewApp(cfg)
	rec := newRecorder(app)
	if r := app.LoadScript(floorScript); len(r.Errors) > 0 {
		t.Fatalf("load errors: %v", r.Errors)
	}

	if live := app.StartLive(); len(live.Errors) > 0 {
		t.Fatalf("StartLive: %v", live.Errors)
	}
	deadline := time.Now().Add(5 * time.Second)
	for rec.frameCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if rec.frameCount() == 0 {
		t.Fatal("expected frames from the live run")
	}

	app.StopLive()
	stopped := rec.frameCount()
	time.Sleep(20 * time.Millisecond)
	if rec.frameCount() != stopped {
		t.Error("frames emitted after StopLive")
	}
	select {
	case <-rec.done:
		t.Error("a stopped run should not report done")
	default:
	}

	// Stopping twice is harmless.
	app.StopLive()
}

func TestE2EOverlappingStartLive(t *testing.T) {
	cfg := testConfig()
	cfg.Particles.Count = 1000000
	cfg.Particles.Rate = 100
	app := NewApp(cfg)
	if r := app.LoadScript(floorScript); len(r.Errors) > 0 {
		t.Fatalf("load errors: %v", r.Errors)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if live := app.StartLive(); len(live.Errors) > 0 {
				t.Errorf("StartLive: %v", live.Errors)
			}
		}()
	}
	wg.Wait()

	// Only the stored run is left; stopping it must leave nothing running.
	stopped := make(chan struct{})
	go func() {
		app.shutdown(context.Background())
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("a superseded live run kept running")
	}
}

func TestE2ESimulateSupersedesLive(t *testing.T) {
	cfg := testConfig()
	cfg.Particles.Count = 1000000
	cfg.Particles.Rate = 100
	app := NewApp(cfg)
	rec := newRecorder(app)
	if r := app.LoadScript(floorScript); len(r.Errors) > 0 {
		t.Fatalf("load errors: %v", r.Errors)
	}

	live := app.StartLive()
	sim := app.Simulate()
	if sim.Version <= live.Version {
		t.Errorf("simulation %d should supersede live run %d", sim.Version, live.Version)
	}
	n := rec.frameCount()
	time.Sleep(20 * time.Millisecond)
	if rec.frameCount() != n {
		t.Error("live run kept emitting after Simulate")
	}
}
