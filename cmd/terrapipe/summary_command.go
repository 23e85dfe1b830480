package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"terrapipe/internal/config"
	"terrapipe/internal/report"
	"terrapipe/internal/scenes"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a sensor summary report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				summary, err := report.Build(cmd.Context(), store, cfg.Sensor.Name)
				if err != nil {
					return err
				}

				if outPath != "" || asJSON {
					data, err := json.MarshalIndent(summary, "", "  ")
					if err != nil {
						return fmt.Errorf("encode summary: %w", err)
					}
					data = append(data, '\n')
					if outPath == "" {
						cmd.OutOrStdout().Write(data)
						return nil
					}
					if err := os.WriteFile(outPath, data, 0o644); err != nil {
						return fmt.Errorf("write summary: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote summary to %s\n", outPath)
					return nil
				}

				printSummary(cmd, summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the JSON report to a file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printSummary(cmd *cobra.Command, summary *report.Summary) {
	out := cmd.OutOrStdout()
	c := summary.Counts
	fmt.Fprintf(out, "Sensor: %s\n", summary.Sensor)
	if len(summary.Platforms) > 0 {
		fmt.Fprintf(out, "Platforms: %s\n", strings.Join(summary.Platforms, ", "))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Scenes"},
		[][]string{
			{"Registered", strconv.Itoa(c.Total)},
			{"Downloaded", strconv.Itoa(c.Downloaded)},
			{"ARD converted", strconv.Itoa(c.ARDDone)},
			{"Datacube loaded", strconv.Itoa(c.DCLoaded)},
			{"Quicklook", strconv.Itoa(c.Quicklook)},
			{"Tilecache", strconv.Itoa(c.Tilecache)},
			{"Invalid", strconv.Itoa(c.Invalid)},
			{"Archived", strconv.Itoa(c.Archived)},
		}, 1))

	if summary.DownloadTime.Count > 0 {
		fmt.Fprintf(out, "\nDownload time: mean %.1fs, median %.1fs, max %.1fs over %d scenes\n",
			summary.DownloadTime.Mean, summary.DownloadTime.Median, summary.DownloadTime.Max, summary.DownloadTime.Count)
	}
	if summary.ARDTime.Count > 0 {
		fmt.Fprintf(out, "ARD time: mean %.1fs, median %.1fs, max %.1fs over %d scenes\n",
			summary.ARDTime.Mean, summary.ARDTime.Median, summary.ARDTime.Max, summary.ARDTime.Count)
	}

	for _, pl := range summary.Plugins {
		fmt.Fprintf(out, "\nPlugin %s: %d completed, %d succeeded, %d errored\n",
			pl.Name, pl.Completed, pl.Success, pl.Errored)
	}
}

func newPluginResetCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var scenePID int64

	cmd := &cobra.Command{
		Use:   "plugin-reset [plugin]",
		Short: "Delete plugin records so plugins run again",
		Long: "Deletes the named plugin's records across every scene, forcing " +
			"re-execution. With --all every plugin's records go; with --scene " +
			"only one scene's records are cleared.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && scenePID == 0 && len(args) == 0 {
				return fmt.Errorf("name a plugin, or use --all or --scene")
			}
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				out := cmd.OutOrStdout()

				if scenePID != 0 {
					n, err := store.DeletePluginRecords(cmd.Context(), scenePID)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Deleted %d plugin records for scene %d\n", n, scenePID)
					return nil
				}

				names := args
				if all {
					stored, err := store.PluginNames(cmd.Context())
					if err != nil {
						return err
					}
					names = stored
				}
				var total int64
				for _, name := range names {
					n, err := store.DeletePluginRecordsByName(cmd.Context(), name)
					if err != nil {
						return err
					}
					total += n
				}
				fmt.Fprintf(out, "Deleted %d plugin records\n", total)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete every plugin's records")
	cmd.Flags().Int64Var(&scenePID, "scene", 0, "Delete all plugin records for one scene")
	return cmd
}

func newPluginInfoCommand(ctx *commandContext) *cobra.Command {
	var errorsOnly bool

	cmd := &cobra.Command{
		Use:   "plugin-info",
		Short: "Show per-plugin record totals and failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				out := cmd.OutOrStdout()

				if !errorsOnly {
					counts, err := store.PluginCountsByName(cmd.Context())
					if err != nil {
						return err
					}
					if len(counts) == 0 {
						fmt.Fprintln(out, "No plugin records")
						return nil
					}
					rows := make([][]string, 0, len(counts))
					for _, c := range counts {
						rows = append(rows, []string{
							c.PluginName,
							strconv.Itoa(c.Completed),
							strconv.Itoa(c.Success),
							strconv.Itoa(c.Outputs),
							strconv.Itoa(c.Errored),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Plugin", "Completed", "Success", "Outputs", "Errored"},
						rows, 1, 2, 3, 4))
				}

				errored, err := store.ErroredPluginRecords(cmd.Context())
				if err != nil {
					return err
				}
				if len(errored) == 0 {
					if errorsOnly {
						fmt.Fprintln(out, "No failed plugin records")
					}
					return nil
				}
				fmt.Fprintln(out, "\nFailures:")
				for _, rec := range errored {
					fmt.Fprintf(out, "  scene %d %s: %s\n", rec.ScenePID, rec.PluginName, rec.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "Show only failed plugin records")
	return cmd
}
