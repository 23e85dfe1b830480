package scenes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PluginRecord fetches one plugin's record for a scene. Returns (nil, nil)
// when the plugin has never touched the scene.
func (s *Store) PluginRecord(ctx context.Context, pid int64, pluginName string) (*PluginRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+pluginColumns+` FROM scene_plugins WHERE scene_pid = ? AND plugin_name = ?`,
		pid, pluginName,
	)
	rec, err := scanPluginRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plugin record: %w", err)
	}
	return rec, nil
}

// SavePluginRecord inserts or replaces the full record for the
// (scene, plugin) pair in a single statement.
func (s *Store) SavePluginRecord(ctx context.Context, rec *PluginRecord) error {
	if rec == nil {
		return errors.New("plugin record is nil")
	}
	if rec.PluginName == "" {
		return errors.New("plugin record has empty plugin name")
	}
	rec.UpdatedAt = time.Now().UTC()

	info, err := marshalPluginInfo(rec.ExtendedInfo)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO scene_plugins (
            scene_pid, plugin_name, start_at, end_at,
            completed, success, outputs, error_message, extended_info, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (scene_pid, plugin_name) DO UPDATE SET
            start_at = excluded.start_at,
            end_at = excluded.end_at,
            completed = excluded.completed,
            success = excluded.success,
            outputs = excluded.outputs,
            error_message = excluded.error_message,
            extended_info = excluded.extended_info,
            updated_at = excluded.updated_at`,
		rec.ScenePID,
		rec.PluginName,
		nullableTime(rec.Start),
		nullableTime(rec.End),
		boolToInt(rec.Completed),
		boolToInt(rec.Success),
		boolToInt(rec.Outputs),
		nullableString(rec.Error),
		info,
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save plugin record: %w", err)
	}
	return nil
}

// PluginRecordsByPlugin returns every record a plugin holds, ordered by
// scene PID.
func (s *Store) PluginRecordsByPlugin(ctx context.Context, pluginName string) ([]*PluginRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+pluginColumns+` FROM scene_plugins WHERE plugin_name = ? ORDER BY scene_pid`,
		pluginName,
	)
	if err != nil {
		return nil, fmt.Errorf("query plugin records: %w", err)
	}
	defer rows.Close()
	return collectPluginRecords(rows)
}

// PluginRecordsByScene returns every plugin record for a scene, ordered by
// plugin name.
func (s *Store) PluginRecordsByScene(ctx context.Context, pid int64) ([]*PluginRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+pluginColumns+` FROM scene_plugins WHERE scene_pid = ? ORDER BY plugin_name`,
		pid,
	)
	if err != nil {
		return nil, fmt.Errorf("query scene plugin records: %w", err)
	}
	defer rows.Close()
	return collectPluginRecords(rows)
}

// PluginNames returns the distinct plugin names that hold records.
func (s *Store) PluginNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT plugin_name FROM scene_plugins ORDER BY plugin_name`)
	if err != nil {
		return nil, fmt.Errorf("list plugin names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeletePluginRecords removes every plugin record for a scene. Returns the
// number removed.
func (s *Store) DeletePluginRecords(ctx context.Context, pid int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scene_plugins WHERE scene_pid = ?`, pid)
	if err != nil {
		return 0, fmt.Errorf("delete plugin records: %w", err)
	}
	return res.RowsAffected()
}

// DeletePluginRecordsByName removes a plugin's records across every scene,
// forcing the plugin to run again. Returns the number removed.
func (s *Store) DeletePluginRecordsByName(ctx context.Context, pluginName string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scene_plugins WHERE plugin_name = ?`, pluginName)
	if err != nil {
		return 0, fmt.Errorf("delete plugin records by name: %w", err)
	}
	return res.RowsAffected()
}

const pluginColumns = "scene_pid, plugin_name, start_at, end_at, completed, success, outputs, error_message, extended_info, updated_at"

func collectPluginRecords(rows *sql.Rows) ([]*PluginRecord, error) {
	var list []*PluginRecord
	for rows.Next() {
		rec, err := scanPluginRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func scanPluginRecord(scanner interface{ Scan(dest ...any) error }) (*PluginRecord, error) {
	var (
		scenePID   int64
		pluginName string
		startRaw   sql.NullString
		endRaw     sql.NullString
		completed  int
		success    int
		outputs    int
		errMsg     sql.NullString
		infoRaw    sql.NullString
		updatedRaw string
	)

	if err := scanner.Scan(
		&scenePID,
		&pluginName,
		&startRaw,
		&endRaw,
		&completed,
		&success,
		&outputs,
		&errMsg,
		&infoRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &PluginRecord{
		ScenePID:   scenePID,
		PluginName: pluginName,
		Completed:  completed != 0,
		Success:    success != 0,
		Outputs:    outputs != 0,
		Error:      errMsg.String,
	}
	rec.Start = parseNullableTime(startRaw)
	rec.End = parseNullableTime(endRaw)
	if infoRaw.Valid {
		info, err := unmarshalPluginInfo(infoRaw.String)
		if err != nil {
			return nil, err
		}
		rec.ExtendedInfo = info
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}
