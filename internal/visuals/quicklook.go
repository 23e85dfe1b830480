// Package visuals generates browse products from ARD scenes: quicklook
// images for catalog browsing and XYZ tile caches for web maps.
package visuals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"terrapipe/internal/services"
)

// QuicklookResult records the generated quicklook artifacts.
type QuicklookResult struct {
	Dir    string
	Images []string
}

// QuicklookGenerator renders downsampled preview images from a scene's
// visible GeoTIFF.
type QuicklookGenerator struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    services.Executor
}

// Option configures a generator.
type Option func(*generatorConfig)

type generatorConfig struct {
	exec services.Executor
}

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(cfg *generatorConfig) {
		if exec != nil {
			cfg.exec = exec
		}
	}
}

func buildConfig(opts []Option) generatorConfig {
	cfg := generatorConfig{exec: services.CommandExecutor{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewQuicklook constructs a quicklook generator around the configured
// image translation command.
func NewQuicklook(binary string, extraArgs []string, timeoutSeconds int, opts ...Option) (*QuicklookGenerator, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("quicklook binary required")
	}
	cfg := buildConfig(opts)
	return &QuicklookGenerator{
		binary:  binary,
		args:    append([]string(nil), extraArgs...),
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    cfg.exec,
	}, nil
}

// quicklook sizes in pixels along the long edge.
var quicklookSizes = []int{250, 1000}

// Generate renders one preview image per configured size into destDir.
func (g *QuicklookGenerator) Generate(ctx context.Context, sceneID, sourceGTIFF, destDir string) (QuicklookResult, error) {
	if sourceGTIFF == "" {
		return QuicklookResult{}, services.Wrap(services.ErrValidation, "quicklook", "generate", "empty source gtiff", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return QuicklookResult{}, fmt.Errorf("create quicklook directory: %w", err)
	}

	runCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result := QuicklookResult{Dir: destDir}
	for _, size := range quicklookSizes {
		out := filepath.Join(destDir, fmt.Sprintf("%s_ql_%d.png", sceneID, size))
		args := append([]string(nil), g.args...)
		args = append(args,
			"-of", "PNG",
			"-outsize", fmt.Sprintf("%d", size), "0",
			sourceGTIFF, out,
		)
		if err := g.exec.Run(runCtx, g.binary, args, nil); err != nil {
			return QuicklookResult{}, services.Wrap(services.ErrExternalTool, "quicklook", "generate", sceneID, err)
		}
		result.Images = append(result.Images, out)
	}
	return result, nil
}
