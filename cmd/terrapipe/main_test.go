package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"terrapipe/internal/config"
	"terrapipe/internal/testsupport"
)

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output %q does not contain %q", out, want)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	out, err = runCLI(t, "", "config", "validate", "--config", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestSceneListAndShow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, err := runCLI(t, path, "scene", "list")
	if err != nil {
		t.Fatalf("scene list: %v", err)
	}
	requireContains(t, out, "No scenes tracked")

	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 2)
	store.Close()

	out, err = runCLI(t, path, "scene", "list")
	if err != nil {
		t.Fatalf("scene list: %v", err)
	}
	requireContains(t, out, seeded[0].SceneID)
	requireContains(t, out, seeded[1].SceneID)

	out, err = runCLI(t, path, "scene", "show", "1")
	if err != nil {
		t.Fatalf("scene show: %v", err)
	}
	requireContains(t, out, seeded[0].ProductID)
	requireContains(t, out, "Downloaded:  no")
}

func TestSceneShowUnknownPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	if _, err := runCLI(t, path, "scene", "show", "42"); err == nil {
		t.Fatal("expected error for unknown pid")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedScenes(t, store, 2)
	store.Close()

	exportPath := filepath.Join(t.TempDir(), "scenes.json")
	if _, err := runCLI(t, path, "export", exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}

	other := testsupport.NewConfig(t)
	otherPath := writeTestConfig(t, other)
	if _, err := runCLI(t, otherPath, "import", exportPath); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runCLI(t, otherPath, "scene", "list")
	if err != nil {
		t.Fatalf("scene list: %v", err)
	}
	requireContains(t, out, "LC820302400000")
	requireContains(t, out, "LC820302400001")
}

func TestSceneArchiveAndRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedScenes(t, store, 2)
	seeded[0].Downloaded = true
	if err := store.Update(context.Background(), seeded[0]); err != nil {
		t.Fatalf("Update: %v", err)
	}
	store.Close()

	out, err := runCLI(t, path, "scene", "archive", "1", "2")
	if err != nil {
		t.Fatalf("scene archive: %v", err)
	}
	requireContains(t, out, "Archived 1 of 2")

	if _, err := runCLI(t, path, "scene", "remove", "2"); err != nil {
		t.Fatalf("scene remove: %v", err)
	}
	out, err = runCLI(t, path, "scene", "list")
	if err != nil {
		t.Fatalf("scene list: %v", err)
	}
	if strings.Contains(out, seeded[1].SceneID) {
		t.Fatalf("removed scene still listed:\n%s", out)
	}
}

func TestSummaryJSON(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedScenes(t, store, 1)
	store.Close()

	out, err := runCLI(t, path, "summary", "--json")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	requireContains(t, out, `"sensor": "testsensor"`)
	requireContains(t, out, `"total": 1`)
}
