package report_test

import (
	"context"
	"math"
	"testing"
	"time"

	"terrapipe/internal/report"
	"terrapipe/internal/scenes"
	"terrapipe/internal/testsupport"
)

func TestDescribe(t *testing.T) {
	d := report.Describe([]float64{4, 1, 3, 2})
	if d.Count != 4 || d.Min != 1 || d.Max != 4 {
		t.Fatalf("distribution = %+v", d)
	}
	if d.Mean != 2.5 || d.Median != 2.5 {
		t.Fatalf("mean/median = %v/%v", d.Mean, d.Median)
	}
	want := math.Sqrt(1.25)
	if math.Abs(d.StdDev-want) > 1e-9 {
		t.Fatalf("stddev = %v, want %v", d.StdDev, want)
	}
}

func TestDescribeEmpty(t *testing.T) {
	if d := report.Describe(nil); d.Count != 0 || d.Mean != 0 {
		t.Fatalf("empty distribution = %+v", d)
	}
}

func TestDescribeOddMedian(t *testing.T) {
	if d := report.Describe([]float64{9, 1, 5}); d.Median != 5 {
		t.Fatalf("median = %v", d.Median)
	}
}

func TestBuildSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 3)

	ctx := context.Background()
	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	// Two scenes fully downloaded and converted, one quarantined.
	for i, scene := range seeded[:2] {
		start := base.Add(time.Duration(i) * time.Hour)
		dlEnd := start.Add(time.Duration(i+1) * time.Minute)
		ardEnd := dlEnd.Add(time.Duration(i+1) * 10 * time.Minute)
		scene.DownloadStart = &start
		scene.DownloadEnd = &dlEnd
		scene.Downloaded = true
		scene.ARDStart = &dlEnd
		scene.ARDEnd = &ardEnd
		scene.ARDDone = true
		if i == 0 {
			scene.EnsureExtendedInfo().Quicklook = &scenes.QuicklookInfo{Path: "/ql", Images: []string{"/ql/a.png"}}
		}
		if err := store.Update(ctx, scene); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	seeded[2].Invalid = true
	if err := store.Update(ctx, seeded[2]); err != nil {
		t.Fatalf("Update: %v", err)
	}

	start := base
	end := base.Add(30 * time.Second)
	if err := store.SavePluginRecord(ctx, &scenes.PluginRecord{
		ScenePID:   seeded[0].PID,
		PluginName: "scene-extent",
		Start:      &start,
		End:        &end,
		Completed:  true,
		Success:    true,
	}); err != nil {
		t.Fatalf("SavePluginRecord: %v", err)
	}

	summary, err := report.Build(ctx, store, cfg.Sensor.Name)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if summary.Sensor != "testsensor" {
		t.Fatalf("sensor = %q", summary.Sensor)
	}
	if len(summary.Platforms) != 1 || summary.Platforms[0] != "LANDSAT_8" {
		t.Fatalf("platforms = %v", summary.Platforms)
	}
	c := summary.Counts
	if c.Total != 3 || c.Downloaded != 2 || c.ARDDone != 2 || c.Invalid != 1 {
		t.Fatalf("counts = %+v", c)
	}
	if c.Quicklook != 1 || c.Tilecache != 0 {
		t.Fatalf("visual counts = %+v", c)
	}
	if summary.DownloadTime.Count != 2 {
		t.Fatalf("download samples = %d", summary.DownloadTime.Count)
	}
	if summary.DownloadTime.Min != 60 || summary.DownloadTime.Max != 120 {
		t.Fatalf("download seconds = %+v", summary.DownloadTime)
	}
	if summary.SceneSize.Count != 3 {
		t.Fatalf("size samples = %d", summary.SceneSize.Count)
	}
	if len(summary.Plugins) != 1 {
		t.Fatalf("plugins = %v", summary.Plugins)
	}
	pl := summary.Plugins[0]
	if pl.Name != "scene-extent" || pl.Completed != 1 || pl.Success != 1 || pl.Errored != 0 {
		t.Fatalf("plugin summary = %+v", pl)
	}
	if pl.RunTime.Mean != 30 {
		t.Fatalf("plugin run time = %+v", pl.RunTime)
	}
}
