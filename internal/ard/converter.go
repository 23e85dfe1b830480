// Package ard converts downloaded scene archives into analysis ready data
// products by driving an external atmospheric correction tool.
package ard

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

// Request describes one conversion job. WorkDir receives intermediate
// files and is discarded by the caller; OutputDir receives the final
// product and must survive.
type Request struct {
	SceneID      string
	DownloadPath string
	WorkDir      string
	TmpDir       string
	OutputDir    string
}

// Outcome is the result of a conversion that ran to completion. Valid is
// false when the tool finished but judged the scene unusable (no product
// generated); the scene is then quarantined rather than retried.
type Outcome struct {
	Valid       bool
	ProductPath string
}

// Converter runs the external ARD tool.
type Converter struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    services.Executor
}

// Option configures the converter.
type Option func(*Converter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Converter) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// New constructs a converter around the configured tool command.
func New(binary string, extraArgs []string, timeoutSeconds int, opts ...Option) (*Converter, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ard binary required")
	}
	c := &Converter{
		binary:  binary,
		args:    append([]string(nil), extraArgs...),
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    services.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Convert runs the tool against a downloaded scene. A tool failure is an
// error; a clean run that leaves OutputDir empty is a completed conversion
// with Valid=false.
func (c *Converter) Convert(ctx context.Context, req Request) (Outcome, error) {
	if req.DownloadPath == "" {
		return Outcome{}, services.Wrap(services.ErrValidation, "ard", "convert", "empty download path", nil)
	}
	for _, dir := range []string{req.WorkDir, req.TmpDir, req.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Outcome{}, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append([]string(nil), c.args...)
	args = append(args,
		"--input", req.DownloadPath,
		"--workdir", req.WorkDir,
		"--tmpdir", req.TmpDir,
		"--output", req.OutputDir,
	)

	if err := c.exec.Run(runCtx, c.binary, args, nil); err != nil {
		return Outcome{}, services.Wrap(services.ErrExternalTool, "ard", "convert", req.SceneID, err)
	}

	produced, err := hasEntries(req.OutputDir)
	if err != nil {
		return Outcome{}, fmt.Errorf("inspect output: %w", err)
	}
	if !produced {
		return Outcome{Valid: false}, nil
	}
	return Outcome{Valid: true, ProductPath: req.OutputDir}, nil
}

func hasEntries(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		return true, nil
	}
	return false, nil
}

// FindVisibleGTIFF locates the first GeoTIFF under a product directory,
// used by visualization stages as their rendering source.
func FindVisibleGTIFF(productDir string) (string, error) {
	var found string
	err := filepath.WalkDir(productDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || found != "" {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext == ".tif" || ext == ".tiff" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk product directory: %w", err)
	}
	if found == "" {
		return "", services.Wrap(services.ErrNotFound, "ard", "locate gtiff", productDir, nil)
	}
	return found, nil
}
