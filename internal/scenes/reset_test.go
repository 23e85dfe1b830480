package scenes_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"terrapipe/internal/scenes"
	"terrapipe/internal/services"
	"terrapipe/internal/testsupport"
)

func fullyProcessedScene(t *testing.T, store *scenes.Store) *scenes.Scene {
	t.Helper()
	ctx := context.Background()
	scene := testsupport.SeedScenes(t, store, 1)[0]
	now := time.Now().UTC()
	scene.Downloaded = true
	scene.DownloadStart = &now
	scene.DownloadEnd = &now
	scene.DownloadPath = "/data/downloads/scene"
	scene.ARDDone = true
	scene.ARDStart = &now
	scene.ARDEnd = &now
	scene.ARDPath = "/data/ard/scene"
	scene.DCLoaded = true
	scene.DCLoadStart = &now
	scene.DCLoadEnd = &now
	scene.EnsureExtendedInfo().Quicklook = &scenes.QuicklookInfo{Path: "/data/ql"}
	if err := store.Update(ctx, scene); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.SavePluginRecord(ctx, &scenes.PluginRecord{
		ScenePID: scene.PID, PluginName: "scene-extent", Completed: true, Success: true,
	}); err != nil {
		t.Fatalf("SavePluginRecord: %v", err)
	}
	return scene
}

func TestResetSceneKeepsDownloadByDefault(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	scene := fullyProcessedScene(t, store)

	prior, err := store.ResetScene(ctx, scene.PID, scenes.ResetOptions{})
	if err != nil {
		t.Fatalf("ResetScene: %v", err)
	}
	if prior.ARDPath != "/data/ard/scene" {
		t.Fatalf("prior record missing ard path: %+v", prior)
	}

	got, err := store.SceneByPID(ctx, scene.PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if !got.Downloaded || got.DownloadPath == "" {
		t.Fatal("download state must survive a default reset")
	}
	if got.ARDDone || got.ARDPath != "" || got.ARDStart != nil {
		t.Fatalf("ard state not cleared: %+v", got)
	}
	if got.DCLoaded || got.DCLoadStart != nil {
		t.Fatalf("datacube state not cleared: %+v", got)
	}
	if got.ExtendedInfo != nil {
		t.Fatalf("extended info not cleared: %+v", got.ExtendedInfo)
	}

	rec, err := store.PluginRecord(ctx, scene.PID, "scene-extent")
	if err != nil {
		t.Fatalf("PluginRecord: %v", err)
	}
	if rec != nil {
		t.Fatalf("plugin record must be cleared on reset, got %+v", rec)
	}
}

func TestResetSceneWithDownload(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	scene := fullyProcessedScene(t, store)

	if _, err := store.ResetScene(ctx, scene.PID, scenes.ResetOptions{Download: true}); err != nil {
		t.Fatalf("ResetScene: %v", err)
	}
	got, err := store.SceneByPID(ctx, scene.PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if got.Downloaded || got.DownloadPath != "" || got.DownloadStart != nil {
		t.Fatalf("download state not cleared: %+v", got)
	}
}

func TestResetSceneInvalidFlagIsSticky(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	scene := fullyProcessedScene(t, store)
	scene.Invalid = true
	if err := store.Update(ctx, scene); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := store.ResetScene(ctx, scene.PID, scenes.ResetOptions{}); err != nil {
		t.Fatalf("ResetScene: %v", err)
	}
	got, err := store.SceneByPID(ctx, scene.PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if !got.Invalid {
		t.Fatal("invalid flag must survive a default reset")
	}

	if _, err := store.ResetScene(ctx, scene.PID, scenes.ResetOptions{Invalid: true}); err != nil {
		t.Fatalf("ResetScene: %v", err)
	}
	got, err = store.SceneByPID(ctx, scene.PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if got.Invalid {
		t.Fatal("invalid flag must clear when asked for")
	}
}

func TestResetSceneUnknownPID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := store.ResetScene(context.Background(), 404, scenes.ResetOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestResetDatacubeLoad(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	scene := fullyProcessedScene(t, store)

	if err := store.ResetDatacubeLoad(ctx, scene.PID); err != nil {
		t.Fatalf("ResetDatacubeLoad: %v", err)
	}
	got, err := store.SceneByPID(ctx, scene.PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if got.DCLoaded || got.DCLoadStart != nil || got.DCLoadEnd != nil {
		t.Fatalf("datacube state not cleared: %+v", got)
	}
	if !got.ARDDone || !got.Downloaded {
		t.Fatal("other stage state must survive a datacube reset")
	}
}
