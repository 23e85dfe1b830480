package scenes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"terrapipe/internal/scenes"
	"terrapipe/internal/testsupport"
)

func TestExportImportRoundTripWithPathReplacement(t *testing.T) {
	src := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded := testsupport.SeedScenes(t, src, 2)
	start := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	scene := seeded[0]
	scene.Downloaded = true
	scene.DownloadStart = &start
	scene.DownloadEnd = &end
	scene.DownloadPath = "/old/downloads/scene-a"
	scene.ARDDone = true
	scene.ARDPath = "/old/ard/scene-a"
	scene.EnsureExtendedInfo().Tilecache = &scenes.TilecacheInfo{
		VisGTIFF: "/old/tilecache/scene-a/vis.tif",
		Path:     "/old/tilecache/scene-a",
	}
	if err := src.Update(ctx, scene); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := src.SavePluginRecord(ctx, &scenes.PluginRecord{
		ScenePID:     scene.PID,
		PluginName:   "scene-extent",
		Start:        &start,
		End:          &end,
		Completed:    true,
		Success:      true,
		Outputs:      true,
		ExtendedInfo: map[string]any{"area_km2": 99.5},
	}); err != nil {
		t.Fatalf("SavePluginRecord: %v", err)
	}

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	// The snapshot uses the documented top-level keys.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if _, ok := raw["scn_db"]; !ok {
		t.Fatal("snapshot missing scn_db")
	}
	if _, ok := raw["plgin_db"]; !ok {
		t.Fatal("snapshot missing plgin_db")
	}

	dst := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	err := dst.Import(ctx, bytes.NewReader(buf.Bytes()), map[string]string{"/old": "/new"})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	got, err := dst.SceneByPID(ctx, scene.PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if got == nil {
		t.Fatal("expected imported scene under original pid")
	}
	if got.SceneID != scene.SceneID || !got.Downloaded || !got.ARDDone {
		t.Fatalf("imported scene mismatch: %+v", got)
	}
	if got.DownloadPath != "/new/downloads/scene-a" {
		t.Fatalf("download path = %q, want prefix replaced", got.DownloadPath)
	}
	if got.ARDPath != "/new/ard/scene-a" {
		t.Fatalf("ard path = %q, want prefix replaced", got.ARDPath)
	}
	if got.ExtendedInfo == nil || got.ExtendedInfo.Tilecache == nil {
		t.Fatal("tilecache info lost")
	}
	if got.ExtendedInfo.Tilecache.Path != "/new/tilecache/scene-a" {
		t.Fatalf("tilecache path = %q", got.ExtendedInfo.Tilecache.Path)
	}
	if got.DownloadStart == nil || !got.DownloadStart.Equal(start) {
		t.Fatalf("download start = %v, want %v", got.DownloadStart, start)
	}

	rec, err := dst.PluginRecord(ctx, scene.PID, "scene-extent")
	if err != nil {
		t.Fatalf("PluginRecord: %v", err)
	}
	if rec == nil || !rec.Completed || !rec.Success {
		t.Fatalf("imported plugin record mismatch: %+v", rec)
	}
	if rec.ExtendedInfo["area_km2"] != 99.5 {
		t.Fatalf("plugin extended info = %v", rec.ExtendedInfo)
	}

	// The untouched second scene also made the trip.
	other, err := dst.SceneByPID(ctx, seeded[1].PID)
	if err != nil {
		t.Fatalf("SceneByPID: %v", err)
	}
	if other == nil || other.SceneID != seeded[1].SceneID {
		t.Fatalf("second scene mismatch: %+v", other)
	}
}

func TestImportRejectsDuplicatePID(t *testing.T) {
	src := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedScenes(t, src, 1)

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Importing into a database that already holds the PID must fail and
	// leave nothing behind.
	if err := src.Import(ctx, bytes.NewReader(buf.Bytes()), nil); err == nil {
		t.Fatal("expected duplicate pid import to fail")
	}
	list, err := src.Scenes(ctx)
	if err != nil {
		t.Fatalf("Scenes: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected single scene after failed import, got %d", len(list))
	}
}
