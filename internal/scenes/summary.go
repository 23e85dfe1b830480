package scenes

import (
	"context"
	"fmt"
)

// Counts aggregates lifecycle flag totals across the database.
type Counts struct {
	Total      int
	Downloaded int
	ARDDone    int
	DCLoaded   int
	Invalid    int
	Archived   int
}

// Counts returns flag totals in one aggregate query.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(downloaded), 0),
                COALESCE(SUM(ard_done), 0),
                COALESCE(SUM(dc_loaded), 0),
                COALESCE(SUM(invalid), 0),
                COALESCE(SUM(archived), 0)
         FROM scenes`,
	).Scan(&c.Total, &c.Downloaded, &c.ARDDone, &c.DCLoaded, &c.Invalid, &c.Archived)
	if err != nil {
		return Counts{}, fmt.Errorf("scene counts: %w", err)
	}
	return c, nil
}

// Platforms returns the distinct platform names seen across all scenes,
// sorted. Scenes with no platform recorded are skipped.
func (s *Store) Platforms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT DISTINCT platform FROM scenes
         WHERE platform IS NOT NULL AND platform != ''
         ORDER BY platform`,
	)
	if err != nil {
		return nil, fmt.Errorf("query platforms: %w", err)
	}
	defer rows.Close()

	var platforms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan platform: %w", err)
		}
		platforms = append(platforms, name)
	}
	return platforms, rows.Err()
}

// PluginCounts aggregates one plugin's record totals.
type PluginCounts struct {
	PluginName string
	Completed  int
	Success    int
	Outputs    int
	Errored    int
}

// PluginCountsByName returns per-plugin totals for every plugin holding
// records, ordered by plugin name. A record counts as errored when it
// completed without success.
func (s *Store) PluginCountsByName(ctx context.Context) ([]PluginCounts, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT plugin_name,
                COALESCE(SUM(completed), 0),
                COALESCE(SUM(success), 0),
                COALESCE(SUM(outputs), 0),
                COALESCE(SUM(CASE WHEN completed = 1 AND success = 0 THEN 1 ELSE 0 END), 0)
         FROM scene_plugins
         GROUP BY plugin_name
         ORDER BY plugin_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("plugin counts: %w", err)
	}
	defer rows.Close()

	var out []PluginCounts
	for rows.Next() {
		var c PluginCounts
		if err := rows.Scan(&c.PluginName, &c.Completed, &c.Success, &c.Outputs, &c.Errored); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ErroredPluginRecords returns every completed-but-failed plugin record,
// ordered by plugin then scene.
func (s *Store) ErroredPluginRecords(ctx context.Context) ([]*PluginRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+pluginColumns+` FROM scene_plugins
         WHERE completed = 1 AND success = 0
         ORDER BY plugin_name, scene_pid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query errored plugin records: %w", err)
	}
	defer rows.Close()
	return collectPluginRecords(rows)
}
