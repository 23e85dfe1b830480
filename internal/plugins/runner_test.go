package plugins_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"terrapipe/internal/config"
	"terrapipe/internal/plugins"
	"terrapipe/internal/testsupport"
)

type fakeAnalysis struct {
	name   string
	result plugins.Result
	err    error
	panics bool
	runs   int
}

func (f *fakeAnalysis) Name() string                         { return f.name }
func (f *fakeAnalysis) Configure(params map[string]any) error { return nil }

func (f *fakeAnalysis) Run(ctx context.Context, req plugins.Request) (plugins.Result, error) {
	f.runs++
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func TestRunPersistsCompletedRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 1)

	runner := plugins.NewRunner(store, cfg.Sensor, nil)
	analysis := &fakeAnalysis{
		name:   "fake",
		result: plugins.Result{Success: true, Outputs: true, Info: map[string]any{"k": "v"}},
	}

	rec, err := runner.Run(context.Background(), analysis, seeded[0])
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.Completed || !rec.Success || !rec.Outputs {
		t.Fatalf("record flags = %+v", rec)
	}
	if rec.Start == nil || rec.End == nil {
		t.Fatal("run timestamps not recorded")
	}
	if rec.ExtendedInfo["k"] != "v" {
		t.Fatalf("extended info = %v", rec.ExtendedInfo)
	}

	stored, err := store.PluginRecord(context.Background(), seeded[0].PID, "fake")
	if err != nil {
		t.Fatalf("PluginRecord: %v", err)
	}
	if stored == nil || !stored.Completed {
		t.Fatalf("stored record = %+v", stored)
	}
}

func TestRunSkipsCompletedScene(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 1)

	runner := plugins.NewRunner(store, cfg.Sensor, nil)
	analysis := &fakeAnalysis{name: "fake", result: plugins.Result{Success: true}}

	for i := 0; i < 2; i++ {
		if _, err := runner.Run(context.Background(), analysis, seeded[0]); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	if analysis.runs != 1 {
		t.Fatalf("runs = %d, want 1", analysis.runs)
	}
}

func TestRunRecordsFailureWithoutPropagating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 1)

	runner := plugins.NewRunner(store, cfg.Sensor, nil)
	analysis := &fakeAnalysis{name: "fake", err: errors.New("no cloud mask")}

	rec, err := runner.Run(context.Background(), analysis, seeded[0])
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.Completed || rec.Success {
		t.Fatalf("record flags = %+v", rec)
	}
	if !strings.Contains(rec.Error, "no cloud mask") {
		t.Fatalf("error = %q", rec.Error)
	}
	msg, ok := rec.ExtendedInfo["error"].(string)
	if !ok || !strings.Contains(msg, "no cloud mask") {
		t.Fatalf("info error = %v, want the run error mirrored", rec.ExtendedInfo["error"])
	}
}

func TestRunCapturesPanicWithStack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 1)

	runner := plugins.NewRunner(store, cfg.Sensor, nil)
	analysis := &fakeAnalysis{name: "fake", panics: true}

	rec, err := runner.Run(context.Background(), analysis, seeded[0])
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Success {
		t.Fatal("panicking plugin reported success")
	}
	if !strings.Contains(rec.Error, "boom") {
		t.Fatalf("error = %q", rec.Error)
	}
	stack, _ := rec.ExtendedInfo["stack"].(string)
	if !strings.Contains(stack, "goroutine") {
		t.Fatalf("stack not captured: %q", stack)
	}
}

func TestRunAllIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 1)

	runner := plugins.NewRunner(store, cfg.Sensor, nil)
	failing := &fakeAnalysis{name: "failing", err: errors.New("nope")}
	healthy := &fakeAnalysis{name: "healthy", result: plugins.Result{Success: true}}

	records, err := runner.RunAll(context.Background(), []plugins.Analysis{failing, healthy}, seeded[0])
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].Success || !records[1].Success {
		t.Fatalf("outcomes = %v %v", records[0].Success, records[1].Success)
	}
	if healthy.runs != 1 {
		t.Fatalf("healthy plugin runs = %d", healthy.runs)
	}
}

func TestResolveConfiguresBuiltins(t *testing.T) {
	registry := plugins.NewRegistry()

	resolved, err := registry.Resolve([]config.Plugin{
		{Name: "scene-extent", Params: map[string]any{"precision": int64(2)}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 || resolved[0].Name() != "scene-extent" {
		t.Fatalf("resolved = %v", resolved)
	}

	if _, err := registry.Resolve([]config.Plugin{{Name: "missing"}}); err == nil {
		t.Fatal("unknown plugin resolved")
	}
}

func TestSceneExtentComputesFootprint(t *testing.T) {
	registry := plugins.NewRegistry()
	resolved, err := registry.Resolve([]config.Plugin{{Name: "scene-extent"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	scene := testsupport.NewScene(1)
	result, err := resolved[0].Run(context.Background(), plugins.Request{Scene: scene})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatal("extent run failed")
	}
	width, _ := result.Info["width_deg"].(float64)
	if width != scene.EastLon-scene.WestLon {
		t.Fatalf("width = %v", width)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	registry := plugins.NewRegistry()
	factory := func() plugins.Analysis { return &fakeAnalysis{name: "dup"} }
	if err := registry.Register("dup", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register("dup", factory); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}
