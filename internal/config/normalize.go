package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeSensor()
	c.normalizeDownload()
	c.normalizeTools()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.BaseDir, err = expandPath(c.Paths.BaseDir); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}

	// Stage directories default to subdirectories of base_dir so a minimal
	// config only needs to set the base.
	derived := map[*string]string{
		&c.Paths.DownloadDir:  "downloads",
		&c.Paths.ARDDir:       "ard",
		&c.Paths.TmpDir:       "tmp",
		&c.Paths.QuicklookDir: "quicklooks",
		&c.Paths.TilecacheDir: "tilecache",
		&c.Paths.DatacubeDir:  "datacube",
	}
	for field, sub := range derived {
		if strings.TrimSpace(*field) == "" {
			*field = filepath.Join(c.Paths.BaseDir, sub)
		}
		if *field, err = expandPath(*field); err != nil {
			return fmt.Errorf("paths.%s: %w", sub, err)
		}
	}

	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.BaseDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockFile) == "" {
		c.Paths.LockFile = filepath.Join(c.Paths.BaseDir, "run.lock")
	}
	if c.Paths.LockFile, err = expandPath(c.Paths.LockFile); err != nil {
		return fmt.Errorf("paths.lock_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	var err error
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = filepath.Join(c.Paths.BaseDir, "scenes.db")
	}
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeSensor() {
	c.Sensor.Name = strings.TrimSpace(c.Sensor.Name)
	c.Sensor.CatalogURL = strings.TrimSpace(c.Sensor.CatalogURL)
	c.Sensor.APIKey = strings.TrimSpace(c.Sensor.APIKey)
	if c.Sensor.APIKey == "" {
		if value, ok := os.LookupEnv("TERRAPIPE_CATALOG_API_KEY"); ok {
			c.Sensor.APIKey = strings.TrimSpace(value)
		}
	}
	c.Sensor.StartDate = strings.TrimSpace(c.Sensor.StartDate)
	if c.Sensor.StartDate == "" {
		c.Sensor.StartDate = defaultSensorStartDate
	}
	if c.Sensor.CloudCoverMax <= 0 {
		c.Sensor.CloudCoverMax = defaultCloudCoverMax
	}
	if c.Sensor.MaxScenes <= 0 {
		c.Sensor.MaxScenes = defaultCatalogPageSize
	}
	platforms := make([]string, 0, len(c.Sensor.Platforms))
	seen := make(map[string]struct{}, len(c.Sensor.Platforms))
	for _, p := range c.Sensor.Platforms {
		normalized := strings.ToUpper(strings.TrimSpace(p))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		platforms = append(platforms, normalized)
	}
	c.Sensor.Platforms = platforms
}

func (c *Config) normalizeDownload() {
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.Retries < 0 {
		c.Download.Retries = 0
	}
}

func (c *Config) normalizeTools() {
	normalizeTool(&c.Tools.ARD, defaultARDCommand, defaultToolTimeout)
	normalizeTool(&c.Tools.Datacube, defaultDatacubeCommand, defaultDatacubeTimeout)
	normalizeTool(&c.Tools.Quicklook, defaultQuicklookCommand, defaultQuicklookTimeout)
	normalizeTool(&c.Tools.Tilecache, defaultTilecacheCommand, defaultTilecacheTimeout)
}

func normalizeTool(t *Tool, command string, timeout int) {
	t.Command = strings.TrimSpace(t.Command)
	if t.Command == "" {
		t.Command = command
	}
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = timeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "pretty", "console":
		c.Logging.Format = "pretty"
	case "json":
	default:
		c.Logging.Format = "pretty"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.File) != "" {
		if expanded, err := expandPath(c.Logging.File); err == nil {
			c.Logging.File = expanded
		}
	}
}
