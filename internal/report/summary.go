package report

import (
	"context"
	"time"

	"terrapipe/internal/scenes"
)

// StageCounts mirrors the lifecycle flag totals for the report document.
type StageCounts struct {
	Total      int `json:"total"`
	Downloaded int `json:"downloaded"`
	ARDDone    int `json:"ard_done"`
	DCLoaded   int `json:"dc_loaded"`
	Quicklook  int `json:"quicklook"`
	Tilecache  int `json:"tilecache"`
	Invalid    int `json:"invalid"`
	Archived   int `json:"archived"`
}

// PluginSummary is one plugin's outcome totals and run-time distribution.
type PluginSummary struct {
	Name      string       `json:"name"`
	Completed int          `json:"completed"`
	Success   int          `json:"success"`
	Outputs   int          `json:"outputs"`
	Errored   int          `json:"errored"`
	RunTime   Distribution `json:"run_time_seconds"`
}

// Summary is the full sensor report, serialized as JSON by the CLI.
type Summary struct {
	Sensor      string    `json:"sensor"`
	GeneratedAt time.Time `json:"generated_at"`
	Platforms   []string  `json:"platforms,omitempty"`

	Counts StageCounts `json:"counts"`

	DownloadTime Distribution `json:"download_time_seconds"`
	ARDTime      Distribution `json:"ard_time_seconds"`
	SceneSize    Distribution `json:"scene_size_bytes"`

	Plugins []PluginSummary `json:"plugins,omitempty"`
}

// Build assembles the summary from the store. One full scan collects the
// per-scene series the aggregate queries cannot provide.
func Build(ctx context.Context, store *scenes.Store, sensor string) (*Summary, error) {
	counts, err := store.Counts(ctx)
	if err != nil {
		return nil, err
	}

	platforms, err := store.Platforms(ctx)
	if err != nil {
		return nil, err
	}

	all, err := store.Scenes(ctx)
	if err != nil {
		return nil, err
	}

	var (
		downloadTimes []time.Duration
		ardTimes      []time.Duration
		sizes         []float64
		quicklooks    int
		tilecaches    int
	)
	for _, scene := range all {
		if d, ok := scene.DownloadDuration(); ok {
			downloadTimes = append(downloadTimes, d)
		}
		if d, ok := scene.ARDDuration(); ok {
			ardTimes = append(ardTimes, d)
		}
		if scene.TotalSize > 0 {
			sizes = append(sizes, float64(scene.TotalSize))
		}
		if scene.HasQuicklook() {
			quicklooks++
		}
		if scene.HasTilecache() {
			tilecaches++
		}
	}

	summary := &Summary{
		Sensor:      sensor,
		GeneratedAt: time.Now().UTC(),
		Platforms:   platforms,
		Counts: StageCounts{
			Total:      counts.Total,
			Downloaded: counts.Downloaded,
			ARDDone:    counts.ARDDone,
			DCLoaded:   counts.DCLoaded,
			Quicklook:  quicklooks,
			Tilecache:  tilecaches,
			Invalid:    counts.Invalid,
			Archived:   counts.Archived,
		},
		DownloadTime: DescribeDurations(downloadTimes),
		ARDTime:      DescribeDurations(ardTimes),
		SceneSize:    Describe(sizes),
	}

	pluginCounts, err := store.PluginCountsByName(ctx)
	if err != nil {
		return nil, err
	}
	for _, pc := range pluginCounts {
		records, err := store.PluginRecordsByPlugin(ctx, pc.PluginName)
		if err != nil {
			return nil, err
		}
		var runTimes []time.Duration
		for _, rec := range records {
			if d, ok := rec.Duration(); ok {
				runTimes = append(runTimes, d)
			}
		}
		summary.Plugins = append(summary.Plugins, PluginSummary{
			Name:      pc.PluginName,
			Completed: pc.Completed,
			Success:   pc.Success,
			Outputs:   pc.Outputs,
			Errored:   pc.Errored,
			RunTime:   DescribeDurations(runTimes),
		})
	}
	return summary, nil
}
