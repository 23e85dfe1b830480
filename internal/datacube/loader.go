// Package datacube indexes ARD products into an open data cube instance.
//
// Each load writes a YAML dataset manifest describing the product, then
// hands the manifest to the external datacube command.
package datacube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"terrapipe/internal/services"
)

// Request describes one dataset load.
type Request struct {
	SceneID     string
	ProductID   string
	Platform    string
	AcquiredAt  time.Time
	ProductPath string
	// ManifestDir receives the generated dataset manifest.
	ManifestDir string
	NorthLat    float64
	SouthLat    float64
	EastLon     float64
	WestLon     float64
}

// manifest is the dataset document the datacube command ingests.
type manifest struct {
	ID       string           `yaml:"id"`
	Product  manifestProduct  `yaml:"product"`
	Platform manifestPlatform `yaml:"platform"`
	Extent   manifestExtent   `yaml:"extent"`
	Location string           `yaml:"location"`
	Creation string           `yaml:"creation_dt"`
}

type manifestProduct struct {
	Name string `yaml:"name"`
}

type manifestPlatform struct {
	Code string `yaml:"code"`
}

type manifestExtent struct {
	AcquiredAt string         `yaml:"center_dt"`
	Coord      manifestCoords `yaml:"coord"`
}

type manifestCoords struct {
	UL manifestPoint `yaml:"ul"`
	UR manifestPoint `yaml:"ur"`
	LL manifestPoint `yaml:"ll"`
	LR manifestPoint `yaml:"lr"`
}

type manifestPoint struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Loader runs the external datacube indexing command.
type Loader struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    services.Executor
}

// Option configures the loader.
type Option func(*Loader)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(l *Loader) {
		if exec != nil {
			l.exec = exec
		}
	}
}

// New constructs a loader around the configured datacube command.
func New(binary string, extraArgs []string, timeoutSeconds int, opts ...Option) (*Loader, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("datacube binary required")
	}
	l := &Loader{
		binary:  binary,
		args:    append([]string(nil), extraArgs...),
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    services.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load writes the dataset manifest and indexes it. The manifest path is
// returned for diagnostics; it stays on disk after a successful load.
func (l *Loader) Load(ctx context.Context, req Request) (string, error) {
	if req.ProductPath == "" {
		return "", services.Wrap(services.ErrValidation, "datacube", "load", "empty product path", nil)
	}
	if req.SceneID == "" {
		return "", services.Wrap(services.ErrValidation, "datacube", "load", "empty scene id", nil)
	}

	manifestPath, err := l.writeManifest(req)
	if err != nil {
		return "", err
	}

	runCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	args := append([]string(nil), l.args...)
	args = append(args, "dataset", "add", manifestPath)
	if err := l.exec.Run(runCtx, l.binary, args, nil); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "datacube", "load", req.SceneID, err)
	}
	return manifestPath, nil
}

func (l *Loader) writeManifest(req Request) (string, error) {
	if err := os.MkdirAll(req.ManifestDir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest directory: %w", err)
	}

	doc := manifest{
		ID:       req.SceneID,
		Product:  manifestProduct{Name: req.ProductID},
		Platform: manifestPlatform{Code: req.Platform},
		Extent: manifestExtent{
			AcquiredAt: req.AcquiredAt.UTC().Format(time.RFC3339),
			Coord: manifestCoords{
				UL: manifestPoint{Lat: req.NorthLat, Lon: req.WestLon},
				UR: manifestPoint{Lat: req.NorthLat, Lon: req.EastLon},
				LL: manifestPoint{Lat: req.SouthLat, Lon: req.WestLon},
				LR: manifestPoint{Lat: req.SouthLat, Lon: req.EastLon},
			},
		},
		Location: req.ProductPath,
		Creation: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(req.ManifestDir, req.SceneID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}
