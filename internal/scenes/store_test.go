package scenes_test

import (
	"context"
	"testing"
	"time"

	"terrapipe/internal/scenes"
	"terrapipe/internal/testsupport"
)

func TestInsertScenesAssignsMonotonicPIDs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.SeedScenes(t, store, 3)
	for i, scene := range first {
		if scene.PID != int64(i+1) {
			t.Fatalf("scene %d: pid = %d, want %d", i, scene.PID, i+1)
		}
	}

	// Removing the newest record must not allow PID reuse.
	if _, err := store.Remove(ctx, 3); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	next := testsupport.NewScene(10)
	if err := store.InsertScenes(ctx, []*scenes.Scene{next}); err != nil {
		t.Fatalf("InsertScenes: %v", err)
	}
	if next.PID != 4 {
		// PID 3 was issued once and its holder deleted; it must never be
		// handed out again.
		t.Fatalf("pid = %d, want 4", next.PID)
	}
}

func TestSceneRoundTripPreservesFields(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seed := testsupport.SeedScenes(t, store, 1)[0]

	start := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(42 * time.Second)
	seed.DownloadStart = &start
	seed.DownloadEnd = &end
	seed.Downloaded = true
	seed.DownloadPath = "/data/downloads/2025-03-01/scene"
	seed.TotalSize = 123456
	seed.EnsureExtendedInfo().Quicklook = &scenes.QuicklookInfo{
		Path:   "/data/quicklooks/scene",
		Images: []string{"/data/quicklooks/scene/ql.png"},
	}
	if err := store.Update(ctx, seed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.SceneByPID(ctx, seed.PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if got == nil {
		t.Fatal("expected scene")
	}
	if !got.Downloaded || got.DownloadPath != seed.DownloadPath {
		t.Fatalf("download state lost: %+v", got)
	}
	if got.DownloadStart == nil || !got.DownloadStart.Equal(start) {
		t.Fatalf("download start = %v, want %v", got.DownloadStart, start)
	}
	dur, ok := got.DownloadDuration()
	if !ok || dur != 42*time.Second {
		t.Fatalf("download duration = %v ok=%v", dur, ok)
	}
	if !got.HasQuicklook() {
		t.Fatal("expected quicklook info to survive round trip")
	}
	if got.ExtendedInfo.Quicklook.Images[0] != "/data/quicklooks/scene/ql.png" {
		t.Fatalf("quicklook images = %v", got.ExtendedInfo.Quicklook.Images)
	}
	if got.HasTilecache() {
		t.Fatal("tilecache must stay unset")
	}
}

func TestSceneByPIDUnknownReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	scene, err := store.SceneByPID(context.Background(), 99)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if scene != nil {
		t.Fatalf("expected nil scene, got %+v", scene)
	}
}

func TestUpdateUnknownPIDFails(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	ghost := testsupport.NewScene(0)
	ghost.PID = 42
	if err := store.Update(context.Background(), ghost); err == nil {
		t.Fatal("expected error updating unknown pid")
	}
}

func TestLatestAcquired(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, ok, err := store.LatestAcquired(ctx); err != nil || ok {
		t.Fatalf("empty db: ok=%v err=%v", ok, err)
	}

	seeded := testsupport.SeedScenes(t, store, 3)
	latest, ok, err := store.LatestAcquired(ctx)
	if err != nil {
		t.Fatalf("LatestAcquired: %v", err)
	}
	if !ok {
		t.Fatal("expected latest acquisition")
	}
	want := seeded[2].AcquiredAt
	if !latest.Equal(want) {
		t.Fatalf("latest = %v, want %v", latest, want)
	}
}

func TestRemoveDeletesPluginRecords(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seed := testsupport.SeedScenes(t, store, 1)[0]
	rec := &scenes.PluginRecord{ScenePID: seed.PID, PluginName: "scene-extent", Completed: true, Success: true}
	if err := store.SavePluginRecord(ctx, rec); err != nil {
		t.Fatalf("SavePluginRecord: %v", err)
	}

	removed, err := store.Remove(ctx, seed.PID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}
	leftover, err := store.PluginRecord(ctx, seed.PID, "scene-extent")
	if err != nil {
		t.Fatalf("PluginRecord: %v", err)
	}
	if leftover != nil {
		t.Fatalf("expected plugin record removed with scene, got %+v", leftover)
	}
}

func TestSavePluginRecordUpserts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seed := testsupport.SeedScenes(t, store, 1)[0]
	start := time.Now().UTC().Truncate(time.Second)
	rec := &scenes.PluginRecord{ScenePID: seed.PID, PluginName: "scene-extent", Start: &start}
	if err := store.SavePluginRecord(ctx, rec); err != nil {
		t.Fatalf("SavePluginRecord: %v", err)
	}

	end := start.Add(5 * time.Second)
	rec.End = &end
	rec.Completed = true
	rec.Success = true
	rec.Outputs = true
	rec.ExtendedInfo = map[string]any{"area_km2": 123.0}
	if err := store.SavePluginRecord(ctx, rec); err != nil {
		t.Fatalf("SavePluginRecord update: %v", err)
	}

	got, err := store.PluginRecord(ctx, seed.PID, "scene-extent")
	if err != nil {
		t.Fatalf("PluginRecord: %v", err)
	}
	if got == nil || !got.Completed || !got.Success || !got.Outputs {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.ExtendedInfo["area_km2"] != 123.0 {
		t.Fatalf("extended info = %v", got.ExtendedInfo)
	}
	if d, ok := got.Duration(); !ok || d != 5*time.Second {
		t.Fatalf("duration = %v ok=%v", d, ok)
	}
}

func TestMarkDownloadsArchived(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded := testsupport.SeedScenes(t, store, 2)
	seeded[0].Downloaded = true
	seeded[0].DownloadPath = "/data/downloads/20250301/LC820302400000"
	if err := store.Update(ctx, seeded[0]); err != nil {
		t.Fatalf("Update: %v", err)
	}

	replace := map[string]string{"/data/downloads": "/archive/downloads"}
	n, err := store.MarkDownloadsArchived(ctx, replace, seeded[0].PID, seeded[1].PID)
	if err != nil {
		t.Fatalf("MarkDownloadsArchived: %v", err)
	}
	if n != 1 {
		t.Fatalf("archived %d scenes, want 1 (undownloaded scenes are skipped)", n)
	}
	got, err := store.SceneByPID(ctx, seeded[0].PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if !got.Archived {
		t.Fatal("expected archived flag set")
	}
	if got.DownloadPath != "/archive/downloads/20250301/LC820302400000" {
		t.Fatalf("download path = %q, want archive prefix", got.DownloadPath)
	}
}

func TestScenesIntersecting(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	inside := testsupport.NewScene(0)
	outside := testsupport.NewScene(1)
	outside.NorthLat, outside.SouthLat = -10, -12
	outside.EastLon, outside.WestLon = 30, 28
	if err := store.InsertScenes(ctx, []*scenes.Scene{inside, outside}); err != nil {
		t.Fatalf("InsertScenes: %v", err)
	}

	got, err := store.ScenesIntersecting(ctx, -6, 50, -2, 54)
	if err != nil {
		t.Fatalf("ScenesIntersecting: %v", err)
	}
	if len(got) != 1 || got[0].PID != inside.PID {
		t.Fatalf("unexpected result: %+v", got)
	}
}
