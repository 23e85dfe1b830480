package services

import "context"

type contextKey string

const (
	scenePIDKey  contextKey = "scene_pid"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithScenePID annotates context with the scene record identifier.
func WithScenePID(ctx context.Context, pid int64) context.Context {
	return context.WithValue(ctx, scenePIDKey, pid)
}

// ScenePIDFromContext extracts the scene record identifier if present.
func ScenePIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(scenePIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a batch correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
