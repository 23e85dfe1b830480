package visuals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"terrapipe/internal/services"
)

// TilecacheResult records the generated tile pyramid and the GeoTIFF it
// was built from.
type TilecacheResult struct {
	VisGTIFF string
	Dir      string
}

// TilecacheGenerator renders an XYZ tile pyramid from a scene's visible
// GeoTIFF.
type TilecacheGenerator struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    services.Executor
}

// NewTilecache constructs a tile cache generator around the configured
// tiling command.
func NewTilecache(binary string, extraArgs []string, timeoutSeconds int, opts ...Option) (*TilecacheGenerator, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tilecache binary required")
	}
	cfg := buildConfig(opts)
	return &TilecacheGenerator{
		binary:  binary,
		args:    append([]string(nil), extraArgs...),
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    cfg.exec,
	}, nil
}

// zoom range rendered into the cache. Deeper levels multiply output size
// fourfold per step.
const tileZoomRange = "2-12"

// Generate renders the tile pyramid for sourceGTIFF into destDir.
func (g *TilecacheGenerator) Generate(ctx context.Context, sceneID, sourceGTIFF, destDir string) (TilecacheResult, error) {
	if sourceGTIFF == "" {
		return TilecacheResult{}, services.Wrap(services.ErrValidation, "tilecache", "generate", "empty source gtiff", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return TilecacheResult{}, fmt.Errorf("create tilecache directory: %w", err)
	}

	runCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	args := append([]string(nil), g.args...)
	args = append(args,
		"--xyz",
		"--zoom", tileZoomRange,
		sourceGTIFF, destDir,
	)
	if err := g.exec.Run(runCtx, g.binary, args, nil); err != nil {
		return TilecacheResult{}, services.Wrap(services.ErrExternalTool, "tilecache", "generate", sceneID, err)
	}
	return TilecacheResult{VisGTIFF: sourceGTIFF, Dir: destDir}, nil
}
