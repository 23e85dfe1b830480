package plugins

import (
	"context"

	"terrapipe/internal/config"
	"terrapipe/internal/scenes"
)

// Request carries everything a plugin may inspect for one scene run.
type Request struct {
	Scene  *scenes.Scene
	Sensor config.Sensor

	// Prior holds the scene's records from earlier plugin runs, letting a
	// plugin build on another's output.
	Prior []*scenes.PluginRecord
}

// Result is what a plugin reports back after a run.
type Result struct {
	Success bool
	// Outputs reports whether the plugin produced artifacts on disk.
	Outputs bool
	// Info is plugin-specific structured output persisted with the record.
	Info map[string]any
}

// Analysis is the capability set every plugin implements. Configure is
// called once per process with the parameter map from configuration before
// any Run.
type Analysis interface {
	Name() string
	Configure(params map[string]any) error
	Run(ctx context.Context, req Request) (Result, error)
}
