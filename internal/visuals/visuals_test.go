package visuals_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"terrapipe/internal/services"
	"terrapipe/internal/visuals"
)

type fakeExecutor struct {
	err   error
	calls [][]string
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	f.calls = append(f.calls, args)
	return f.err
}

func TestQuicklookGeneratesOneImagePerSize(t *testing.T) {
	exec := &fakeExecutor{}
	gen, err := visuals.NewQuicklook("gdal_translate", []string{"-scale"}, 60, visuals.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewQuicklook: %v", err)
	}

	destDir := filepath.Join(t.TempDir(), "ql")
	result, err := gen.Generate(context.Background(), "LC82030240", "/data/ard/vis.tif", destDir)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Dir != destDir {
		t.Fatalf("dir = %q", result.Dir)
	}
	if len(result.Images) != 2 || len(exec.calls) != 2 {
		t.Fatalf("images = %v calls = %d", result.Images, len(exec.calls))
	}
	for _, img := range result.Images {
		if !strings.HasPrefix(filepath.Base(img), "LC82030240_ql_") {
			t.Fatalf("image name = %q", img)
		}
	}
	// The configured scale flag survives in every invocation.
	for _, call := range exec.calls {
		if call[0] != "-scale" {
			t.Fatalf("args = %v", call)
		}
	}
}

func TestQuicklookToolFailure(t *testing.T) {
	gen, err := visuals.NewQuicklook("gdal_translate", nil, 60, visuals.WithExecutor(&fakeExecutor{err: errors.New("exit 1")}))
	if err != nil {
		t.Fatalf("NewQuicklook: %v", err)
	}
	_, err = gen.Generate(context.Background(), "x", "/data/vis.tif", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
}

func TestTilecacheGenerate(t *testing.T) {
	exec := &fakeExecutor{}
	gen, err := visuals.NewTilecache("gdal2tiles", nil, 60, visuals.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewTilecache: %v", err)
	}

	destDir := filepath.Join(t.TempDir(), "tiles")
	result, err := gen.Generate(context.Background(), "LC82030240", "/data/ard/vis.tif", destDir)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.VisGTIFF != "/data/ard/vis.tif" || result.Dir != destDir {
		t.Fatalf("result = %+v", result)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("calls = %d", len(exec.calls))
	}
	args := exec.calls[0]
	if args[0] != "--xyz" {
		t.Fatalf("args = %v", args)
	}
}

func TestGeneratorsRejectEmptySource(t *testing.T) {
	ql, _ := visuals.NewQuicklook("gdal_translate", nil, 60, visuals.WithExecutor(&fakeExecutor{}))
	if _, err := ql.Generate(context.Background(), "x", "", t.TempDir()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("quicklook error = %v, want ErrValidation", err)
	}
	tc, _ := visuals.NewTilecache("gdal2tiles", nil, 60, visuals.WithExecutor(&fakeExecutor{}))
	if _, err := tc.Generate(context.Background(), "x", "", t.TempDir()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("tilecache error = %v, want ErrValidation", err)
	}
}
