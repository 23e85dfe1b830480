package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"terrapipe/internal/config"
	"terrapipe/internal/pipeline"
	"terrapipe/internal/scenes"
)

func newSceneCommand(ctx *commandContext) *cobra.Command {
	sceneCmd := &cobra.Command{
		Use:   "scene",
		Short: "Inspect and manage individual scenes",
	}
	sceneCmd.AddCommand(newSceneListCommand(ctx))
	sceneCmd.AddCommand(newSceneShowCommand(ctx))
	sceneCmd.AddCommand(newSceneResetCommand(ctx))
	sceneCmd.AddCommand(newSceneResetDCLoadCommand(ctx))
	sceneCmd.AddCommand(newSceneArchiveCommand(ctx))
	sceneCmd.AddCommand(newSceneRemoveCommand(ctx))
	return sceneCmd
}

func newSceneListCommand(ctx *commandContext) *cobra.Command {
	var (
		invalidOnly   bool
		completedOnly bool
		fromDate      string
		toDate        string
		bbox          []float64
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked scenes and their stage flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				list, err := selectScenes(cmd, store, sceneFilter{
					invalidOnly:   invalidOnly,
					completedOnly: completedOnly,
					fromDate:      fromDate,
					toDate:        toDate,
					bbox:          bbox,
				})
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scenes tracked")
					return nil
				}

				rows := make([][]string, 0, len(list))
				for _, scene := range list {
					rows = append(rows, []string{
						strconv.FormatInt(scene.PID, 10),
						scene.SceneID,
						scene.AcquiredAt.Format("2006-01-02"),
						yesNo(scene.Downloaded),
						yesNo(scene.ARDDone),
						yesNo(scene.DCLoaded),
						yesNo(scene.HasQuicklook()),
						yesNo(scene.HasTilecache()),
						yesNo(scene.Invalid),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"PID", "Scene", "Acquired", "DL", "ARD", "DC", "QL", "Tiles", "Invalid"},
					rows, 0))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&invalidOnly, "invalid", false, "List only quarantined scenes")
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "List only fully processed scenes")
	cmd.Flags().StringVar(&fromDate, "from", "", "List scenes acquired on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toDate, "to", "", "List scenes acquired before this date (YYYY-MM-DD)")
	cmd.Flags().Float64SliceVar(&bbox, "bbox", nil, "List scenes intersecting min_lon,min_lat,max_lon,max_lat")
	return cmd
}

type sceneFilter struct {
	invalidOnly   bool
	completedOnly bool
	fromDate      string
	toDate        string
	bbox          []float64
}

func selectScenes(cmd *cobra.Command, store *scenes.Store, filter sceneFilter) ([]*scenes.Scene, error) {
	switch {
	case filter.invalidOnly:
		return store.InvalidScenes(cmd.Context())
	case filter.completedOnly:
		return store.CompletedScenes(cmd.Context())
	case len(filter.bbox) > 0:
		if len(filter.bbox) != 4 {
			return nil, fmt.Errorf("--bbox needs exactly four values, got %d", len(filter.bbox))
		}
		return store.ScenesIntersecting(cmd.Context(), filter.bbox[0], filter.bbox[1], filter.bbox[2], filter.bbox[3])
	case filter.fromDate != "" || filter.toDate != "":
		from, to, err := parseDateWindow(filter.fromDate, filter.toDate)
		if err != nil {
			return nil, err
		}
		return store.ScenesAcquiredBetween(cmd.Context(), from, to)
	default:
		return store.Scenes(cmd.Context())
	}
}

func parseDateWindow(fromDate, toDate string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	if fromDate != "" {
		parsed, err := time.Parse("2006-01-02", fromDate)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from date %q", fromDate)
		}
		from = parsed
	}
	if toDate != "" {
		parsed, err := time.Parse("2006-01-02", toDate)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to date %q", toDate)
		}
		to = parsed
	}
	return from, to, nil
}

func newSceneShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <pid>",
		Short: "Show one scene's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				scene, err := store.SceneByPID(cmd.Context(), pid)
				if err != nil {
					return err
				}
				if scene == nil {
					return fmt.Errorf("no scene with pid %d", pid)
				}
				printScene(cmd, scene)

				records, err := store.PluginRecordsByScene(cmd.Context(), pid)
				if err != nil {
					return err
				}
				for _, rec := range records {
					status := "failed"
					if rec.Success {
						status = "succeeded"
					}
					detail := ""
					if rec.Error != "" {
						detail = " (" + rec.Error + ")"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Plugin %s: %s%s\n", rec.PluginName, status, detail)
				}
				return nil
			})
		},
	}
}

func newSceneResetCommand(ctx *commandContext) *cobra.Command {
	var opts scenes.ResetOptions

	cmd := &cobra.Command{
		Use:   "reset <pid>",
		Short: "Clear a scene's processing state so it runs again",
		Long: "Clears ARD, datacube, visualization, and plugin state for one scene " +
			"and deletes the corresponding artifacts. The download survives unless " +
			"--download is given, and a quarantined scene stays invalid unless " +
			"--invalid is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return ctx.withPipeline(func(cfg *config.Config, store *scenes.Store, p *pipeline.Pipeline) error {
				prior, err := p.ResetScene(cmd.Context(), pid, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset scene %d (%s)\n", pid, prior.SceneID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Download, "download", false, "Also clear the download and delete the payload")
	cmd.Flags().BoolVar(&opts.Invalid, "invalid", false, "Re-qualify a scene quarantined by quality checks")
	return cmd
}

func newSceneResetDCLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-dcload <pid>",
		Short: "Clear only a scene's datacube load state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				if err := store.ResetDatacubeLoad(cmd.Context(), pid); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared datacube load for scene %d\n", pid)
				return nil
			})
		},
	}
}

func newSceneArchiveCommand(ctx *commandContext) *cobra.Command {
	var pathReplace []string

	cmd := &cobra.Command{
		Use:   "archive <pid>...",
		Short: "Flag downloads as moved to offline storage",
		Long: "Marks downloads as archived and rewrites their recorded paths to " +
			"the archive location with --path-replace old=new, given once per prefix.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pids := make([]int64, 0, len(args))
			for _, arg := range args {
				pid, err := parsePID(arg)
				if err != nil {
					return err
				}
				pids = append(pids, pid)
			}
			replacements, err := parsePathReplacements(pathReplace)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				n, err := store.MarkDownloadsArchived(cmd.Context(), replacements, pids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %d of %d scenes\n", n, len(pids))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&pathReplace, "path-replace", nil, "Rewrite a download path prefix (old=new)")
	return cmd
}

func newSceneRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <pid>",
		Short: "Delete a scene record and its plugin records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				removed, err := store.Remove(cmd.Context(), pid)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no scene with pid %d", pid)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed scene %d\n", pid)
				return nil
			})
		},
	}
}

func parsePID(arg string) (int64, error) {
	pid, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || pid < 1 {
		return 0, fmt.Errorf("invalid scene pid %q", arg)
	}
	return pid, nil
}

func printScene(cmd *cobra.Command, scene *scenes.Scene) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "PID:         %d\n", scene.PID)
	fmt.Fprintf(out, "Scene ID:    %s\n", scene.SceneID)
	fmt.Fprintf(out, "Product ID:  %s\n", scene.ProductID)
	fmt.Fprintf(out, "Platform:    %s\n", scene.Platform)
	fmt.Fprintf(out, "Instrument:  %s\n", scene.Instrument)
	fmt.Fprintf(out, "Acquired:    %s\n", scene.AcquiredAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Cloud cover: %.1f%%\n", scene.CloudCover)
	fmt.Fprintf(out, "Extent:      %.4f..%.4f lat, %.4f..%.4f lon\n",
		scene.SouthLat, scene.NorthLat, scene.WestLon, scene.EastLon)
	fmt.Fprintf(out, "Downloaded:  %s", yesNo(scene.Downloaded))
	if scene.DownloadPath != "" {
		fmt.Fprintf(out, " (%s)", scene.DownloadPath)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "ARD:         %s", yesNo(scene.ARDDone))
	if scene.ARDPath != "" {
		fmt.Fprintf(out, " (%s)", scene.ARDPath)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Datacube:    %s\n", yesNo(scene.DCLoaded))
	fmt.Fprintf(out, "Quicklook:   %s\n", yesNo(scene.HasQuicklook()))
	fmt.Fprintf(out, "Tilecache:   %s\n", yesNo(scene.HasTilecache()))
	fmt.Fprintf(out, "Invalid:     %s\n", yesNo(scene.Invalid))
	fmt.Fprintf(out, "Archived:    %s\n", yesNo(scene.Archived))
}
