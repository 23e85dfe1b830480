package scenes_test

import (
	"context"
	"testing"

	"terrapipe/internal/scenes"
	"terrapipe/internal/testsupport"
)

func pids(list []*scenes.Scene) []int64 {
	out := make([]int64, 0, len(list))
	for _, s := range list {
		out = append(out, s.PID)
	}
	return out
}

func TestStageEligibilityFollowsLifecycle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded := testsupport.SeedScenes(t, store, 4)
	fresh, downloaded, converted, invalid := seeded[0], seeded[1], seeded[2], seeded[3]

	downloaded.Downloaded = true
	converted.Downloaded = true
	converted.ARDDone = true
	converted.ARDPath = "/data/ard/scene"
	invalid.Downloaded = true
	invalid.Invalid = true
	for _, s := range []*scenes.Scene{downloaded, converted, invalid} {
		if err := store.Update(ctx, s); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	toDownload, err := store.ScenesToDownload(ctx)
	if err != nil {
		t.Fatalf("ScenesToDownload: %v", err)
	}
	if got := pids(toDownload); len(got) != 1 || got[0] != fresh.PID {
		t.Fatalf("download candidates = %v, want [%d]", got, fresh.PID)
	}

	toARD, err := store.ScenesToARD(ctx)
	if err != nil {
		t.Fatalf("ScenesToARD: %v", err)
	}
	if got := pids(toARD); len(got) != 1 || got[0] != downloaded.PID {
		t.Fatalf("ard candidates = %v, want [%d]", got, downloaded.PID)
	}

	toDC, err := store.ScenesToDatacube(ctx)
	if err != nil {
		t.Fatalf("ScenesToDatacube: %v", err)
	}
	if got := pids(toDC); len(got) != 1 || got[0] != converted.PID {
		t.Fatalf("datacube candidates = %v, want [%d]", got, converted.PID)
	}

	quarantined, err := store.InvalidScenes(ctx)
	if err != nil {
		t.Fatalf("InvalidScenes: %v", err)
	}
	if got := pids(quarantined); len(got) != 1 || got[0] != invalid.PID {
		t.Fatalf("invalid scenes = %v, want [%d]", got, invalid.PID)
	}
}

func TestVisualEligibilityReadsExtendedInfo(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded := testsupport.SeedScenes(t, store, 2)
	for _, s := range seeded {
		s.Downloaded = true
		s.ARDDone = true
	}
	seeded[0].EnsureExtendedInfo().Quicklook = &scenes.QuicklookInfo{Path: "/data/ql"}
	seeded[0].EnsureExtendedInfo().Tilecache = &scenes.TilecacheInfo{Path: "/data/tc", VisGTIFF: "/data/tc/vis.tif"}
	for _, s := range seeded {
		if err := store.Update(ctx, s); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	needQL, err := store.ScenesNeedingQuicklook(ctx)
	if err != nil {
		t.Fatalf("ScenesNeedingQuicklook: %v", err)
	}
	if got := pids(needQL); len(got) != 1 || got[0] != seeded[1].PID {
		t.Fatalf("quicklook candidates = %v, want [%d]", got, seeded[1].PID)
	}

	needTC, err := store.ScenesNeedingTilecache(ctx)
	if err != nil {
		t.Fatalf("ScenesNeedingTilecache: %v", err)
	}
	if got := pids(needTC); len(got) != 1 || got[0] != seeded[1].PID {
		t.Fatalf("tilecache candidates = %v, want [%d]", got, seeded[1].PID)
	}
}

func TestScenesForAnalysisSkipsCompleted(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded := testsupport.SeedScenes(t, store, 3)
	done, pending := seeded[0], seeded[1]
	for _, s := range []*scenes.Scene{done, pending} {
		s.Downloaded = true
		s.ARDDone = true
		if err := store.Update(ctx, s); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	// seeded[2] never converted, so it is not analysis-eligible.

	if err := store.SavePluginRecord(ctx, &scenes.PluginRecord{
		ScenePID: done.PID, PluginName: "scene-extent", Completed: true, Success: true,
	}); err != nil {
		t.Fatalf("SavePluginRecord: %v", err)
	}
	// An interrupted run (record exists, not completed) stays eligible.
	if err := store.SavePluginRecord(ctx, &scenes.PluginRecord{
		ScenePID: pending.PID, PluginName: "scene-extent",
	}); err != nil {
		t.Fatalf("SavePluginRecord: %v", err)
	}

	eligible, err := store.ScenesForAnalysis(ctx, "scene-extent")
	if err != nil {
		t.Fatalf("ScenesForAnalysis: %v", err)
	}
	if got := pids(eligible); len(got) != 1 || got[0] != pending.PID {
		t.Fatalf("analysis candidates = %v, want [%d]", got, pending.PID)
	}

	// Other plugins see both converted scenes.
	other, err := store.ScenesForAnalysis(ctx, "another-plugin")
	if err != nil {
		t.Fatalf("ScenesForAnalysis: %v", err)
	}
	if got := pids(other); len(got) != 2 {
		t.Fatalf("other plugin candidates = %v, want two", got)
	}
}

func TestCountsAggregatesFlags(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded := testsupport.SeedScenes(t, store, 3)
	seeded[0].Downloaded = true
	seeded[1].Downloaded = true
	seeded[1].ARDDone = true
	seeded[2].Invalid = true
	for _, s := range seeded {
		if err := store.Update(ctx, s); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := scenes.Counts{Total: 3, Downloaded: 2, ARDDone: 1, Invalid: 1}
	if counts != want {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}
}

func TestPluginCountsByName(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded := testsupport.SeedScenes(t, store, 3)
	records := []*scenes.PluginRecord{
		{ScenePID: seeded[0].PID, PluginName: "scene-extent", Completed: true, Success: true, Outputs: true},
		{ScenePID: seeded[1].PID, PluginName: "scene-extent", Completed: true, Success: false, Error: "boom"},
		{ScenePID: seeded[2].PID, PluginName: "scene-extent"},
		{ScenePID: seeded[0].PID, PluginName: "cloud-stats", Completed: true, Success: true},
	}
	for _, rec := range records {
		if err := store.SavePluginRecord(ctx, rec); err != nil {
			t.Fatalf("SavePluginRecord: %v", err)
		}
	}

	counts, err := store.PluginCountsByName(ctx)
	if err != nil {
		t.Fatalf("PluginCountsByName: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts = %+v, want two plugins", counts)
	}
	// Ordered by plugin name: cloud-stats first.
	if counts[0].PluginName != "cloud-stats" || counts[0].Completed != 1 {
		t.Fatalf("cloud-stats counts = %+v", counts[0])
	}
	extent := counts[1]
	if extent.Completed != 2 || extent.Success != 1 || extent.Errored != 1 || extent.Outputs != 1 {
		t.Fatalf("scene-extent counts = %+v", extent)
	}

	errored, err := store.ErroredPluginRecords(ctx)
	if err != nil {
		t.Fatalf("ErroredPluginRecords: %v", err)
	}
	if len(errored) != 1 || errored[0].Error != "boom" {
		t.Fatalf("errored = %+v", errored)
	}
}
