package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"terrapipe/internal/config"
	"terrapipe/internal/pipeline"
	"terrapipe/internal/scenes"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var fromStart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every pipeline stage in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(cfg *config.Config, store *scenes.Store, p *pipeline.Pipeline) error {
				runCtx, cancel := signalContext(cmd.Context())
				defer cancel()
				if err := p.Run(runCtx, fromStart); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pipeline run complete")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Sweep the catalog from the configured start date instead of the newest known acquisition")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var fromStart bool

	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"discover"},
		Short:   "Check the catalog for new scenes and register them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(cfg *config.Config, store *scenes.Store, p *pipeline.Pipeline) error {
				runCtx, cancel := signalContext(cmd.Context())
				defer cancel()
				result, err := p.Discover(runCtx, fromStart)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog returned %d scenes: %d new, %d duplicates removed\n",
					result.Found, result.New, result.Removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Sweep the catalog from the configured start date")
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "download", "Download registered scenes that are not on disk",
		func(p *pipeline.Pipeline) stageFunc { return p.DownloadScenes })
}

func newARDCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "ard", "Convert downloaded scenes to analysis ready data",
		func(p *pipeline.Pipeline) stageFunc { return p.ConvertScenes })
}

func newDatacubeCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "dcload", "Index converted scenes into the datacube",
		func(p *pipeline.Pipeline) stageFunc { return p.LoadScenes })
}

func newQuicklookCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "quicklook", "Render preview images for converted scenes",
		func(p *pipeline.Pipeline) stageFunc { return p.GenerateQuicklooks })
}

func newTilecacheCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "tilecache", "Build XYZ tile pyramids for converted scenes",
		func(p *pipeline.Pipeline) stageFunc { return p.GenerateTilecaches })
}

func newAnalyseCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "analyse", "Run configured analysis plugins against converted scenes",
		func(p *pipeline.Pipeline) stageFunc { return p.RunAnalysis })
}

type stageFunc func(context.Context) (pipeline.Stats, error)

func newStageCommand(ctx *commandContext, use, short string, pick func(*pipeline.Pipeline) stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(cfg *config.Config, store *scenes.Store, p *pipeline.Pipeline) error {
				runCtx, cancel := signalContext(cmd.Context())
				defer cancel()
				stats, err := pick(p)(runCtx)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d attempted, %d succeeded, %d failed\n",
					use, stats.Attempted, stats.Succeeded, stats.Failed)
				return err
			})
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
