package scenes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Snapshot is the portable JSON form of the database: every scene keyed by
// PID and every plugin record keyed by plugin name then PID. Timestamps
// are ISO 8601.
type Snapshot struct {
	Scenes  map[string]SceneExport                   `json:"scn_db"`
	Plugins map[string]map[string]PluginRecordExport `json:"plgin_db"`
}

// SceneExport mirrors Scene with JSON-friendly field encodings.
type SceneExport struct {
	PID           int64          `json:"pid"`
	SceneID       string         `json:"scene_id"`
	ProductID     string         `json:"product_id,omitempty"`
	Platform      string         `json:"platform,omitempty"`
	Instrument    string         `json:"instrument,omitempty"`
	AcquiredAt    string         `json:"acquired_at,omitempty"`
	NorthLat      float64        `json:"north_lat"`
	SouthLat      float64        `json:"south_lat"`
	EastLon       float64        `json:"east_lon"`
	WestLon       float64        `json:"west_lon"`
	CloudCover    float64        `json:"cloud_cover"`
	RemoteURL     string         `json:"remote_url,omitempty"`
	TotalSize     int64          `json:"total_size"`
	DownloadStart string         `json:"download_start,omitempty"`
	DownloadEnd   string         `json:"download_end,omitempty"`
	Downloaded    bool           `json:"downloaded"`
	DownloadPath  string         `json:"download_path,omitempty"`
	ARDStart      string         `json:"ard_start,omitempty"`
	ARDEnd        string         `json:"ard_end,omitempty"`
	ARDDone       bool           `json:"ard_done"`
	ARDPath       string         `json:"ard_path,omitempty"`
	DCLoadStart   string         `json:"dcload_start,omitempty"`
	DCLoadEnd     string         `json:"dcload_end,omitempty"`
	DCLoaded      bool           `json:"dc_loaded"`
	Invalid       bool           `json:"invalid"`
	Archived      bool           `json:"archived"`
	ExtendedInfo  *ExtendedInfo  `json:"extended_info,omitempty"`
}

// PluginRecordExport mirrors PluginRecord for the snapshot.
type PluginRecordExport struct {
	ScenePID     int64          `json:"scene_pid"`
	PluginName   string         `json:"plugin_name"`
	Start        string         `json:"start,omitempty"`
	End          string         `json:"end,omitempty"`
	Completed    bool           `json:"completed"`
	Success      bool           `json:"success"`
	Outputs      bool           `json:"outputs"`
	Error        string         `json:"error,omitempty"`
	ExtendedInfo map[string]any `json:"extended_info,omitempty"`
}

// Export writes the full database as a JSON snapshot.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	snapshot := Snapshot{
		Scenes:  make(map[string]SceneExport),
		Plugins: make(map[string]map[string]PluginRecordExport),
	}

	list, err := s.Scenes(ctx)
	if err != nil {
		return err
	}
	for _, scene := range list {
		snapshot.Scenes[strconv.FormatInt(scene.PID, 10)] = exportScene(scene)
	}

	names, err := s.PluginNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		records, err := s.PluginRecordsByPlugin(ctx, name)
		if err != nil {
			return err
		}
		byPID := make(map[string]PluginRecordExport, len(records))
		for _, rec := range records {
			byPID[strconv.FormatInt(rec.ScenePID, 10)] = exportPluginRecord(rec)
		}
		snapshot.Plugins[name] = byPID
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Import loads a snapshot into the database, preserving PIDs. Existing
// records are left alone; a snapshot PID that already exists is an error.
// pathReplacements rewrites artifact path prefixes (old -> new) so a
// snapshot can move between hosts with different storage layouts.
func (s *Store) Import(ctx context.Context, r io.Reader, pathReplacements map[string]string) error {
	var snapshot Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	// Insert in PID order so the snapshot round-trips deterministically.
	keys := make([]string, 0, len(snapshot.Scenes))
	for key := range snapshot.Scenes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.ParseInt(keys[i], 10, 64)
		b, _ := strconv.ParseInt(keys[j], 10, 64)
		return a < b
	})

	for _, key := range keys {
		entry := snapshot.Scenes[key]
		scene, err := importScene(entry, pathReplacements)
		if err != nil {
			return err
		}
		if err := insertScene(ctx, tx, scene, timestamp); err != nil {
			return err
		}
	}

	for pluginName, byPID := range snapshot.Plugins {
		for _, entry := range byPID {
			rec, err := importPluginRecord(pluginName, entry)
			if err != nil {
				return err
			}
			info, err := marshalPluginInfo(rec.ExtendedInfo)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO scene_plugins (
                    scene_pid, plugin_name, start_at, end_at,
                    completed, success, outputs, error_message, extended_info, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ScenePID,
				rec.PluginName,
				nullableTime(rec.Start),
				nullableTime(rec.End),
				boolToInt(rec.Completed),
				boolToInt(rec.Success),
				boolToInt(rec.Outputs),
				nullableString(rec.Error),
				info,
				timestamp,
			)
			if err != nil {
				return fmt.Errorf("import plugin record %s/%d: %w", pluginName, rec.ScenePID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func exportScene(scene *Scene) SceneExport {
	return SceneExport{
		PID:           scene.PID,
		SceneID:       scene.SceneID,
		ProductID:     scene.ProductID,
		Platform:      scene.Platform,
		Instrument:    scene.Instrument,
		AcquiredAt:    formatExportTime(&scene.AcquiredAt),
		NorthLat:      scene.NorthLat,
		SouthLat:      scene.SouthLat,
		EastLon:       scene.EastLon,
		WestLon:       scene.WestLon,
		CloudCover:    scene.CloudCover,
		RemoteURL:     scene.RemoteURL,
		TotalSize:     scene.TotalSize,
		DownloadStart: formatExportTime(scene.DownloadStart),
		DownloadEnd:   formatExportTime(scene.DownloadEnd),
		Downloaded:    scene.Downloaded,
		DownloadPath:  scene.DownloadPath,
		ARDStart:      formatExportTime(scene.ARDStart),
		ARDEnd:        formatExportTime(scene.ARDEnd),
		ARDDone:       scene.ARDDone,
		ARDPath:       scene.ARDPath,
		DCLoadStart:   formatExportTime(scene.DCLoadStart),
		DCLoadEnd:     formatExportTime(scene.DCLoadEnd),
		DCLoaded:      scene.DCLoaded,
		Invalid:       scene.Invalid,
		Archived:      scene.Archived,
		ExtendedInfo:  scene.ExtendedInfo,
	}
}

func importScene(entry SceneExport, replacements map[string]string) (*Scene, error) {
	if entry.PID <= 0 {
		return nil, fmt.Errorf("snapshot scene %q has invalid pid %d", entry.SceneID, entry.PID)
	}
	if entry.SceneID == "" {
		return nil, fmt.Errorf("snapshot scene pid %d has empty scene id", entry.PID)
	}

	scene := &Scene{
		PID:          entry.PID,
		SceneID:      entry.SceneID,
		ProductID:    entry.ProductID,
		Platform:     entry.Platform,
		Instrument:   entry.Instrument,
		NorthLat:     entry.NorthLat,
		SouthLat:     entry.SouthLat,
		EastLon:      entry.EastLon,
		WestLon:      entry.WestLon,
		CloudCover:   entry.CloudCover,
		RemoteURL:    entry.RemoteURL,
		TotalSize:    entry.TotalSize,
		Downloaded:   entry.Downloaded,
		DownloadPath: replacePathPrefix(entry.DownloadPath, replacements),
		ARDDone:      entry.ARDDone,
		ARDPath:      replacePathPrefix(entry.ARDPath, replacements),
		DCLoaded:     entry.DCLoaded,
		Invalid:      entry.Invalid,
		Archived:     entry.Archived,
		ExtendedInfo: entry.ExtendedInfo,
	}

	var err error
	if scene.AcquiredAt, err = parseExportTime(entry.AcquiredAt); err != nil {
		return nil, fmt.Errorf("scene pid %d acquired_at: %w", entry.PID, err)
	}
	if scene.DownloadStart, err = parseExportTimePtr(entry.DownloadStart); err != nil {
		return nil, fmt.Errorf("scene pid %d download_start: %w", entry.PID, err)
	}
	if scene.DownloadEnd, err = parseExportTimePtr(entry.DownloadEnd); err != nil {
		return nil, fmt.Errorf("scene pid %d download_end: %w", entry.PID, err)
	}
	if scene.ARDStart, err = parseExportTimePtr(entry.ARDStart); err != nil {
		return nil, fmt.Errorf("scene pid %d ard_start: %w", entry.PID, err)
	}
	if scene.ARDEnd, err = parseExportTimePtr(entry.ARDEnd); err != nil {
		return nil, fmt.Errorf("scene pid %d ard_end: %w", entry.PID, err)
	}
	if scene.DCLoadStart, err = parseExportTimePtr(entry.DCLoadStart); err != nil {
		return nil, fmt.Errorf("scene pid %d dcload_start: %w", entry.PID, err)
	}
	if scene.DCLoadEnd, err = parseExportTimePtr(entry.DCLoadEnd); err != nil {
		return nil, fmt.Errorf("scene pid %d dcload_end: %w", entry.PID, err)
	}

	if scene.ExtendedInfo != nil {
		if ql := scene.ExtendedInfo.Quicklook; ql != nil {
			ql.Path = replacePathPrefix(ql.Path, replacements)
			for i, img := range ql.Images {
				ql.Images[i] = replacePathPrefix(img, replacements)
			}
		}
		if tc := scene.ExtendedInfo.Tilecache; tc != nil {
			tc.VisGTIFF = replacePathPrefix(tc.VisGTIFF, replacements)
			tc.Path = replacePathPrefix(tc.Path, replacements)
		}
	}
	return scene, nil
}

func exportPluginRecord(rec *PluginRecord) PluginRecordExport {
	return PluginRecordExport{
		ScenePID:     rec.ScenePID,
		PluginName:   rec.PluginName,
		Start:        formatExportTime(rec.Start),
		End:          formatExportTime(rec.End),
		Completed:    rec.Completed,
		Success:      rec.Success,
		Outputs:      rec.Outputs,
		Error:        rec.Error,
		ExtendedInfo: rec.ExtendedInfo,
	}
}

func importPluginRecord(pluginName string, entry PluginRecordExport) (*PluginRecord, error) {
	if entry.ScenePID <= 0 {
		return nil, fmt.Errorf("snapshot plugin %s record has invalid pid %d", pluginName, entry.ScenePID)
	}
	rec := &PluginRecord{
		ScenePID:     entry.ScenePID,
		PluginName:   pluginName,
		Completed:    entry.Completed,
		Success:      entry.Success,
		Outputs:      entry.Outputs,
		Error:        entry.Error,
		ExtendedInfo: entry.ExtendedInfo,
	}
	var err error
	if rec.Start, err = parseExportTimePtr(entry.Start); err != nil {
		return nil, fmt.Errorf("plugin %s pid %d start: %w", pluginName, entry.ScenePID, err)
	}
	if rec.End, err = parseExportTimePtr(entry.End); err != nil {
		return nil, fmt.Errorf("plugin %s pid %d end: %w", pluginName, entry.ScenePID, err)
	}
	return rec, nil
}

func formatExportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseExportTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return parseTimeString(value)
}

func parseExportTimePtr(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseTimeString(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func replacePathPrefix(path string, replacements map[string]string) string {
	if path == "" {
		return path
	}
	for oldPrefix, newPrefix := range replacements {
		if oldPrefix != "" && strings.HasPrefix(path, oldPrefix) {
			return newPrefix + strings.TrimPrefix(path, oldPrefix)
		}
	}
	return path
}
