// Package scenes persists the scene lifecycle database backed by SQLite.
//
// Each record tracks one acquired scene through download, ARD conversion,
// datacube load, and visualization, with per-stage start/end timestamps and
// completion flags. Plugin analysis results are stored alongside in a
// companion table keyed by scene PID and plugin name. All stage completion
// writes commit the full record in a single statement so a crash never
// leaves a half-updated row.
package scenes
