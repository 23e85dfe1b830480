package scenes

import (
	"context"
	"fmt"
)

// ScenesToDownload returns scenes not yet downloaded, oldest acquisition
// first. Invalid scenes are never offered to a stage.
func (s *Store) ScenesToDownload(ctx context.Context) ([]*Scene, error) {
	return s.queryScenes(ctx, `downloaded = 0 AND invalid = 0`)
}

// ScenesToARD returns downloaded scenes awaiting ARD conversion.
func (s *Store) ScenesToARD(ctx context.Context) ([]*Scene, error) {
	return s.queryScenes(ctx, `downloaded = 1 AND ard_done = 0 AND invalid = 0`)
}

// ScenesToDatacube returns converted scenes awaiting a datacube load.
func (s *Store) ScenesToDatacube(ctx context.Context) ([]*Scene, error) {
	return s.queryScenes(ctx, `ard_done = 1 AND dc_loaded = 0 AND invalid = 0`)
}

// ScenesNeedingQuicklook returns converted scenes without a quicklook.
// Quicklook presence lives inside the extended info JSON, so candidates
// are filtered after the scan.
func (s *Store) ScenesNeedingQuicklook(ctx context.Context) ([]*Scene, error) {
	candidates, err := s.queryScenes(ctx, `ard_done = 1 AND invalid = 0`)
	if err != nil {
		return nil, err
	}
	var out []*Scene
	for _, scene := range candidates {
		if !scene.HasQuicklook() {
			out = append(out, scene)
		}
	}
	return out, nil
}

// ScenesNeedingTilecache returns converted scenes without a tile cache.
func (s *Store) ScenesNeedingTilecache(ctx context.Context) ([]*Scene, error) {
	candidates, err := s.queryScenes(ctx, `ard_done = 1 AND invalid = 0`)
	if err != nil {
		return nil, err
	}
	var out []*Scene
	for _, scene := range candidates {
		if !scene.HasTilecache() {
			out = append(out, scene)
		}
	}
	return out, nil
}

// ScenesForAnalysis returns converted scenes the named plugin has not yet
// completed. A record that exists but is not completed is offered again so
// interrupted runs resume.
func (s *Store) ScenesForAnalysis(ctx context.Context, pluginName string) ([]*Scene, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+sceneColumns+` FROM scenes
         WHERE ard_done = 1 AND invalid = 0
           AND pid NOT IN (
             SELECT scene_pid FROM scene_plugins WHERE plugin_name = ? AND completed = 1
           )
         ORDER BY acquired_at, pid`,
		pluginName,
	)
	if err != nil {
		return nil, fmt.Errorf("query scenes for analysis: %w", err)
	}
	defer rows.Close()
	return collectScenes(rows)
}

// CompletedScenes returns scenes that finished the core lifecycle
// (download, ARD, datacube load).
func (s *Store) CompletedScenes(ctx context.Context) ([]*Scene, error) {
	return s.queryScenes(ctx, `downloaded = 1 AND ard_done = 1 AND dc_loaded = 1 AND invalid = 0`)
}

// InvalidScenes returns scenes quarantined by a failed ARD conversion.
func (s *Store) InvalidScenes(ctx context.Context) ([]*Scene, error) {
	return s.queryScenes(ctx, `invalid = 1`)
}

func (s *Store) queryScenes(ctx context.Context, where string) ([]*Scene, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE `+where+` ORDER BY acquired_at, pid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()
	return collectScenes(rows)
}
