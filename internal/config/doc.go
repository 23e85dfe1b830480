// Package config loads, normalizes, and validates the TOML configuration
// that drives the scene pipeline: database location, sensor/catalog
// settings, working directories, external tool commands, workflow
// parallelism, logging, and the plugin roster.
package config
