package scenes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages scene persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the scene database at path and applies
// the schema. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// InsertScenes persists newly discovered scenes in one transaction,
// assigning strictly increasing PIDs in input order, continuing past the
// highest PID ever issued. The PID and bookkeeping timestamps are written
// back onto the passed structs. Inserting an empty slice is a no-op.
func (s *Store) InsertScenes(ctx context.Context, list []*Scene) error {
	if len(list) == 0 {
		return nil
	}
	for i, scene := range list {
		if scene == nil {
			return fmt.Errorf("scene %d is nil", i)
		}
		if scene.SceneID == "" {
			return fmt.Errorf("scene %d has empty scene id", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// sqlite_sequence holds the highest PID ever issued, surviving
	// deletes, so a removed record's PID is never handed out again.
	var maxPID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'scenes'), 0)`,
	).Scan(&maxPID); err != nil {
		return fmt.Errorf("read pid sequence: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	for _, scene := range list {
		maxPID++
		scene.PID = maxPID
		scene.CreatedAt = now
		scene.UpdatedAt = now

		if err := insertScene(ctx, tx, scene, timestamp); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func insertScene(ctx context.Context, tx *sql.Tx, scene *Scene, timestamp string) error {
	info, err := marshalExtendedInfo(scene.ExtendedInfo)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO scenes (
            pid, scene_id, product_id, platform, instrument, acquired_at,
            north_lat, south_lat, east_lon, west_lon, cloud_cover,
            remote_url, total_size,
            download_start, download_end, downloaded, download_path,
            ard_start, ard_end, ard_done, ard_path,
            dcload_start, dcload_end, dc_loaded,
            invalid, archived, extended_info, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scene.PID,
		scene.SceneID,
		nullableString(scene.ProductID),
		nullableString(scene.Platform),
		nullableString(scene.Instrument),
		nullableTime(&scene.AcquiredAt),
		scene.NorthLat,
		scene.SouthLat,
		scene.EastLon,
		scene.WestLon,
		scene.CloudCover,
		nullableString(scene.RemoteURL),
		scene.TotalSize,
		nullableTime(scene.DownloadStart),
		nullableTime(scene.DownloadEnd),
		boolToInt(scene.Downloaded),
		nullableString(scene.DownloadPath),
		nullableTime(scene.ARDStart),
		nullableTime(scene.ARDEnd),
		boolToInt(scene.ARDDone),
		nullableString(scene.ARDPath),
		nullableTime(scene.DCLoadStart),
		nullableTime(scene.DCLoadEnd),
		boolToInt(scene.DCLoaded),
		boolToInt(scene.Invalid),
		boolToInt(scene.Archived),
		info,
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert scene %s: %w", scene.SceneID, err)
	}
	return nil
}

// SceneByPID fetches a scene by primary key. Returns (nil, nil) when the
// PID is unknown.
func (s *Store) SceneByPID(ctx context.Context, pid int64) (*Scene, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE pid = ?`, pid)
	scene, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return scene, nil
}

// ScenesBySceneID returns every record carrying the given natural scene
// identifier, ordered by PID. More than one result means the provider
// republished the scene.
func (s *Store) ScenesBySceneID(ctx context.Context, sceneID string) ([]*Scene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE scene_id = ? ORDER BY pid`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("query by scene id: %w", err)
	}
	defer rows.Close()
	return collectScenes(rows)
}

// Scenes returns every record ordered by PID.
func (s *Store) Scenes(ctx context.Context) ([]*Scene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes ORDER BY pid`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()
	return collectScenes(rows)
}

// KnownSceneIDs returns the set of natural scene identifiers already
// present, used by discovery to skip records it has seen.
func (s *Store) KnownSceneIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT scene_id FROM scenes`)
	if err != nil {
		return nil, fmt.Errorf("list scene ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// LatestAcquired returns the most recent acquisition timestamp, or
// ok=false when the database holds no scenes.
func (s *Store) LatestAcquired(ctx context.Context) (time.Time, bool, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(acquired_at) FROM scenes`).Scan(&raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest acquired: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, false, nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest acquired: %w", err)
	}
	return t, true, nil
}

// Update persists the full scene record in one statement so a stage
// commit is atomic.
func (s *Store) Update(ctx context.Context, scene *Scene) error {
	if scene == nil {
		return errors.New("scene is nil")
	}
	scene.UpdatedAt = time.Now().UTC()

	info, err := marshalExtendedInfo(scene.ExtendedInfo)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE scenes
         SET scene_id = ?, product_id = ?, platform = ?, instrument = ?, acquired_at = ?,
             north_lat = ?, south_lat = ?, east_lon = ?, west_lon = ?, cloud_cover = ?,
             remote_url = ?, total_size = ?,
             download_start = ?, download_end = ?, downloaded = ?, download_path = ?,
             ard_start = ?, ard_end = ?, ard_done = ?, ard_path = ?,
             dcload_start = ?, dcload_end = ?, dc_loaded = ?,
             invalid = ?, archived = ?, extended_info = ?, updated_at = ?
         WHERE pid = ?`,
		scene.SceneID,
		nullableString(scene.ProductID),
		nullableString(scene.Platform),
		nullableString(scene.Instrument),
		nullableTime(&scene.AcquiredAt),
		scene.NorthLat,
		scene.SouthLat,
		scene.EastLon,
		scene.WestLon,
		scene.CloudCover,
		nullableString(scene.RemoteURL),
		scene.TotalSize,
		nullableTime(scene.DownloadStart),
		nullableTime(scene.DownloadEnd),
		boolToInt(scene.Downloaded),
		nullableString(scene.DownloadPath),
		nullableTime(scene.ARDStart),
		nullableTime(scene.ARDEnd),
		boolToInt(scene.ARDDone),
		nullableString(scene.ARDPath),
		nullableTime(scene.DCLoadStart),
		nullableTime(scene.DCLoadEnd),
		boolToInt(scene.DCLoaded),
		boolToInt(scene.Invalid),
		boolToInt(scene.Archived),
		info,
		scene.UpdatedAt.Format(time.RFC3339Nano),
		scene.PID,
	)
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update scene: pid %d not found", scene.PID)
	}
	return nil
}

// Remove deletes a scene and its plugin records.
func (s *Store) Remove(ctx context.Context, pid int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin remove tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scene_plugins WHERE scene_pid = ?`, pid); err != nil {
		return false, fmt.Errorf("delete plugin records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE pid = ?`, pid)
	if err != nil {
		return false, fmt.Errorf("delete scene: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit remove: %w", err)
	}
	return affected > 0, nil
}

// MarkDownloadsArchived flags downloads as moved to offline storage,
// rewriting each recorded download path through the replacement table so
// it points at the archive location. Scenes never downloaded are skipped.
func (s *Store) MarkDownloadsArchived(ctx context.Context, pathReplacements map[string]string, pids ...int64) (int64, error) {
	var archived int64
	for _, pid := range pids {
		scene, err := s.SceneByPID(ctx, pid)
		if err != nil {
			return archived, err
		}
		if scene == nil || !scene.Downloaded {
			continue
		}
		scene.Archived = true
		scene.DownloadPath = replacePathPrefix(scene.DownloadPath, pathReplacements)
		if err := s.Update(ctx, scene); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

// ScenesAcquiredBetween returns scenes acquired in [from, to), ordered by
// acquisition time.
func (s *Store) ScenesAcquiredBetween(ctx context.Context, from, to time.Time) ([]*Scene, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE acquired_at >= ? AND acquired_at < ? ORDER BY acquired_at`,
		from.UTC().Format(time.RFC3339Nano),
		to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query by acquisition window: %w", err)
	}
	defer rows.Close()
	return collectScenes(rows)
}

// ScenesIntersecting returns scenes whose footprint overlaps the bounding
// box given as min_lon, min_lat, max_lon, max_lat.
func (s *Store) ScenesIntersecting(ctx context.Context, minLon, minLat, maxLon, maxLat float64) ([]*Scene, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+sceneColumns+` FROM scenes
         WHERE west_lon <= ? AND east_lon >= ? AND south_lat <= ? AND north_lat >= ?
         ORDER BY pid`,
		maxLon, minLon, maxLat, minLat,
	)
	if err != nil {
		return nil, fmt.Errorf("query by bounding box: %w", err)
	}
	defer rows.Close()
	return collectScenes(rows)
}

const sceneColumns = "pid, scene_id, product_id, platform, instrument, acquired_at, " +
	"north_lat, south_lat, east_lon, west_lon, cloud_cover, remote_url, total_size, " +
	"download_start, download_end, downloaded, download_path, " +
	"ard_start, ard_end, ard_done, ard_path, " +
	"dcload_start, dcload_end, dc_loaded, invalid, archived, extended_info, created_at, updated_at"

func collectScenes(rows *sql.Rows) ([]*Scene, error) {
	var list []*Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, scene)
	}
	return list, rows.Err()
}

func scanScene(scanner interface{ Scan(dest ...any) error }) (*Scene, error) {
	var (
		pid           int64
		sceneID       string
		productID     sql.NullString
		platform      sql.NullString
		instrument    sql.NullString
		acquiredRaw   sql.NullString
		northLat      float64
		southLat      float64
		eastLon       float64
		westLon       float64
		cloudCover    float64
		remoteURL     sql.NullString
		totalSize     int64
		downloadStart sql.NullString
		downloadEnd   sql.NullString
		downloaded    int
		downloadPath  sql.NullString
		ardStart      sql.NullString
		ardEnd        sql.NullString
		ardDone       int
		ardPath       sql.NullString
		dcloadStart   sql.NullString
		dcloadEnd     sql.NullString
		dcLoaded      int
		invalid       int
		archived      int
		extendedRaw   sql.NullString
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&pid,
		&sceneID,
		&productID,
		&platform,
		&instrument,
		&acquiredRaw,
		&northLat,
		&southLat,
		&eastLon,
		&westLon,
		&cloudCover,
		&remoteURL,
		&totalSize,
		&downloadStart,
		&downloadEnd,
		&downloaded,
		&downloadPath,
		&ardStart,
		&ardEnd,
		&ardDone,
		&ardPath,
		&dcloadStart,
		&dcloadEnd,
		&dcLoaded,
		&invalid,
		&archived,
		&extendedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	scene := &Scene{
		PID:          pid,
		SceneID:      sceneID,
		ProductID:    productID.String,
		Platform:     platform.String,
		Instrument:   instrument.String,
		NorthLat:     northLat,
		SouthLat:     southLat,
		EastLon:      eastLon,
		WestLon:      westLon,
		CloudCover:   cloudCover,
		RemoteURL:    remoteURL.String,
		TotalSize:    totalSize,
		Downloaded:   downloaded != 0,
		DownloadPath: downloadPath.String,
		ARDDone:      ardDone != 0,
		ARDPath:      ardPath.String,
		DCLoaded:     dcLoaded != 0,
		Invalid:      invalid != 0,
		Archived:     archived != 0,
	}

	if acquired, err := parseTimeString(acquiredRaw.String); err == nil {
		scene.AcquiredAt = acquired
	}
	scene.DownloadStart = parseNullableTime(downloadStart)
	scene.DownloadEnd = parseNullableTime(downloadEnd)
	scene.ARDStart = parseNullableTime(ardStart)
	scene.ARDEnd = parseNullableTime(ardEnd)
	scene.DCLoadStart = parseNullableTime(dcloadStart)
	scene.DCLoadEnd = parseNullableTime(dcloadEnd)

	if extendedRaw.Valid {
		info, err := unmarshalExtendedInfo(extendedRaw.String)
		if err != nil {
			return nil, err
		}
		scene.ExtendedInfo = info
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		scene.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		scene.UpdatedAt = updated
	}
	return scene, nil
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
