package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Database contains the scene database location.
type Database struct {
	Path string `toml:"path"`
}

// Sensor describes the imagery source the pipeline tracks.
type Sensor struct {
	Name          string    `toml:"name"`
	Platforms     []string  `toml:"platforms"`
	CatalogURL    string    `toml:"catalog_url"`
	APIKey        string    `toml:"api_key"`
	StartDate     string    `toml:"start_date"`
	CloudCoverMax float64   `toml:"cloud_cover_max"`
	BBox          []float64 `toml:"bbox"` // min_lon, min_lat, max_lon, max_lat
	MaxScenes     int       `toml:"max_scenes"`
}

// Paths contains directory configuration. Per-scene subdirectories are
// derived from these roots by the pipeline.
type Paths struct {
	BaseDir      string `toml:"base_dir"`
	DownloadDir  string `toml:"download_dir"`
	ARDDir       string `toml:"ard_dir"`
	TmpDir       string `toml:"tmp_dir"`
	QuicklookDir string `toml:"quicklook_dir"`
	TilecacheDir string `toml:"tilecache_dir"`
	DatacubeDir  string `toml:"datacube_dir"`
	LogDir       string `toml:"log_dir"`
	LockFile     string `toml:"lock_file"`
}

// Tool configures one external command invoked by a stage.
type Tool struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Tools contains the external commands for each processing stage.
type Tools struct {
	ARD       Tool `toml:"ard"`
	Datacube  Tool `toml:"datacube"`
	Quicklook Tool `toml:"quicklook"`
	Tilecache Tool `toml:"tilecache"`
}

// Download contains transfer settings for the download stage.
type Download struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	Retries        int `toml:"retries"`
}

// Workflow contains parallelism and run coordination settings.
type Workflow struct {
	Workers         int  `toml:"workers"`
	StopOnFirstFail bool `toml:"stop_on_first_fail"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Plugin names one analysis plugin and its free-form parameters.
type Plugin struct {
	Name   string         `toml:"name"`
	Params map[string]any `toml:"params"`
}

// Config encapsulates all configuration for the pipeline.
//
// Sections by subsystem:
//   - Database: SQLite scene database path
//   - Sensor: catalog endpoint, query window, and filters
//   - Paths: working directory roots and the run lock file
//   - Download: transfer timeouts and retry budget
//   - Tools: external commands for ARD, datacube, quicklook, tilecache
//   - Workflow: worker parallelism
//   - Logging: log format, level, and optional file sink
//   - Plugins: analysis plugin roster
type Config struct {
	Database Database `toml:"database"`
	Sensor   Sensor   `toml:"sensor"`
	Paths    Paths    `toml:"paths"`
	Download Download `toml:"download"`
	Tools    Tools    `toml:"tools"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
	Plugins  []Plugin `toml:"plugins"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/terrapipe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("terrapipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.BaseDir,
		c.Paths.DownloadDir,
		c.Paths.ARDDir,
		c.Paths.TmpDir,
		c.Paths.QuicklookDir,
		c.Paths.TilecacheDir,
		c.Paths.DatacubeDir,
		c.Paths.LogDir,
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.Paths.LockFile),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PluginByName returns the configured plugin entry with the given name.
func (c *Config) PluginByName(name string) (Plugin, bool) {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
