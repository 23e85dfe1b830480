package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"terrapipe/internal/config"
	"terrapipe/internal/logging"
	"terrapipe/internal/scenes"
)

// Runner executes resolved plugins against scenes and persists one record
// per (scene, plugin) pair. Plugin failures become record fields; only
// store errors surface to the caller.
type Runner struct {
	store  *scenes.Store
	sensor config.Sensor
	logger *slog.Logger
}

func NewRunner(store *scenes.Store, sensor config.Sensor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{store: store, sensor: sensor, logger: logger}
}

// Run executes one plugin for one scene. A scene the plugin already
// completed is skipped and its existing record returned. A crash mid-run
// leaves no record at all, so the scene is retried on the next pass.
func (r *Runner) Run(ctx context.Context, analysis Analysis, scene *scenes.Scene) (*scenes.PluginRecord, error) {
	existing, err := r.store.PluginRecord(ctx, scene.PID, analysis.Name())
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Completed {
		r.logger.Debug("plugin already completed, skipping",
			logging.String(logging.FieldPlugin, analysis.Name()),
			logging.Int64(logging.FieldScenePID, scene.PID))
		return existing, nil
	}

	prior, err := r.store.PluginRecordsByScene(ctx, scene.PID)
	if err != nil {
		return nil, err
	}

	start := time.Now().UTC()
	result, runErr := r.invoke(ctx, analysis, Request{Scene: scene, Sensor: r.sensor, Prior: prior})
	end := time.Now().UTC()

	rec := &scenes.PluginRecord{
		ScenePID:     scene.PID,
		PluginName:   analysis.Name(),
		Start:        &start,
		End:          &end,
		Completed:    true,
		Success:      result.Success && runErr == nil,
		Outputs:      result.Outputs,
		ExtendedInfo: result.Info,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
		// Mirror the message into the info bag so exports carry the
		// failure alongside any stack recorded for a panic.
		if rec.ExtendedInfo == nil {
			rec.ExtendedInfo = make(map[string]any)
		}
		rec.ExtendedInfo["error"] = runErr.Error()
		r.logger.Warn("plugin run failed",
			logging.String(logging.FieldPlugin, analysis.Name()),
			logging.Int64(logging.FieldScenePID, scene.PID),
			logging.Error(runErr))
	} else {
		r.logger.Info("plugin run finished",
			logging.String(logging.FieldPlugin, analysis.Name()),
			logging.Int64(logging.FieldScenePID, scene.PID),
			logging.Bool("success", rec.Success),
			logging.Duration(logging.FieldDuration, end.Sub(start)))
	}

	if err := r.store.SavePluginRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RunAll executes every plugin against a scene, independently. One plugin's
// failure never prevents the next from running.
func (r *Runner) RunAll(ctx context.Context, analyses []Analysis, scene *scenes.Scene) ([]*scenes.PluginRecord, error) {
	records := make([]*scenes.PluginRecord, 0, len(analyses))
	for _, analysis := range analyses {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec, err := r.Run(ctx, analysis, scene)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// invoke shields the runner from plugin panics, turning them into run
// errors with the stack preserved in the result info.
func (r *Runner) invoke(ctx context.Context, analysis Analysis, req Request) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := string(debug.Stack())
			err = fmt.Errorf("plugin panic: %v", rec)
			if result.Info == nil {
				result.Info = make(map[string]any)
			}
			result.Info["panic"] = fmt.Sprint(rec)
			result.Info["stack"] = stack
			result.Success = false
		}
	}()
	return analysis.Run(ctx, req)
}
