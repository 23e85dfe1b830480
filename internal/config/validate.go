package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSensor(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validatePlugins(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSensor() error {
	if c.Sensor.Name == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/terrapipe/config.toml"
		}
		return fmt.Errorf("sensor.name is required. Edit %s (create with 'terrapipe config init')", defaultPath)
	}
	if c.Sensor.CatalogURL == "" {
		return errors.New("sensor.catalog_url must be set")
	}
	if _, err := time.Parse("2006-01-02", c.Sensor.StartDate); err != nil {
		return fmt.Errorf("sensor.start_date must be YYYY-MM-DD: %w", err)
	}
	if c.Sensor.CloudCoverMax < 0 || c.Sensor.CloudCoverMax > 100 {
		return errors.New("sensor.cloud_cover_max must be between 0 and 100")
	}
	if len(c.Sensor.BBox) != 0 {
		if len(c.Sensor.BBox) != 4 {
			return errors.New("sensor.bbox must have exactly four values: min_lon, min_lat, max_lon, max_lat")
		}
		minLon, minLat, maxLon, maxLat := c.Sensor.BBox[0], c.Sensor.BBox[1], c.Sensor.BBox[2], c.Sensor.BBox[3]
		if minLon >= maxLon || minLat >= maxLat {
			return errors.New("sensor.bbox must be ordered min_lon, min_lat, max_lon, max_lat")
		}
		if minLat < -90 || maxLat > 90 || minLon < -180 || maxLon > 180 {
			return errors.New("sensor.bbox values out of range")
		}
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.TimeoutSeconds <= 0 {
		return errors.New("download.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTools() error {
	tools := map[string]Tool{
		"tools.ard":       c.Tools.ARD,
		"tools.datacube":  c.Tools.Datacube,
		"tools.quicklook": c.Tools.Quicklook,
		"tools.tilecache": c.Tools.Tilecache,
	}
	for key, tool := range tools {
		if strings.TrimSpace(tool.Command) == "" {
			return fmt.Errorf("%s.command must be set", key)
		}
		if tool.TimeoutSeconds <= 0 {
			return fmt.Errorf("%s.timeout_seconds must be positive", key)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}

func (c *Config) validatePlugins() error {
	seen := make(map[string]struct{}, len(c.Plugins))
	for i, p := range c.Plugins {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("plugins[%d].name must be set", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("plugins[%d].name %q is duplicated", i, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
