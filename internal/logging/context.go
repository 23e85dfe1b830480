package logging

import (
	"context"
	"log/slog"

	"terrapipe/internal/services"
)

// Canonical field names shared by every component so records correlate
// across stages and runs.
const (
	FieldComponent     = "component"
	FieldScenePID      = "scene_pid"
	FieldSceneID       = "scene_id"
	FieldStage         = "stage"
	FieldCorrelationID = "run_id"
	FieldPlugin        = "plugin"
	FieldDuration      = "duration"
	FieldError         = "error"
)

// ContextFields extracts the standard fields carried on ctx.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var attrs []Attr
	if pid, ok := services.ScenePIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldScenePID, pid))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, id))
	}
	return attrs
}

// WithContext returns logger enriched with every standard field present on
// ctx. Callers use it at the top of stage handlers so per-scene records
// carry the PID without threading it by hand.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
