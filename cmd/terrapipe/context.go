package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"terrapipe/internal/config"
	"terrapipe/internal/logging"
	"terrapipe/internal/pipeline"
	"terrapipe/internal/scenes"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the scene store for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *scenes.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := scenes.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open scene store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withPipeline builds a fully wired pipeline around an open store for the
// duration of fn.
func (c *commandContext) withPipeline(fn func(*config.Config, *scenes.Store, *pipeline.Pipeline) error) error {
	return c.withStore(func(cfg *config.Config, store *scenes.Store) error {
		logger, err := c.buildLogger(cfg)
		if err != nil {
			return err
		}
		p, err := pipeline.New(cfg, store, logger)
		if err != nil {
			return err
		}
		return fn(cfg, store, p)
	})
}

func (c *commandContext) buildLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   logging.Format(cfg.Logging.Format),
		FilePath: cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
