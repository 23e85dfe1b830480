package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"terrapipe/internal/config"
	"terrapipe/internal/scenes"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the scene database to a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()

				if err := store.Export(cmd.Context(), f); err != nil {
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("flush export file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported scene database to %s\n", args[0])
				return nil
			})
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var pathReplace []string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON export into the scene database",
		Long: "Imports scene and plugin records from a document written by export, " +
			"preserving PIDs. Path prefixes recorded on another machine can be " +
			"remapped with --path-replace old=new, given once per prefix.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replacements, err := parsePathReplacements(pathReplace)
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *scenes.Store) error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()

				if err := store.Import(cmd.Context(), f, replacements); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported scene database from %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&pathReplace, "path-replace", nil, "Rewrite a path prefix on import (old=new)")
	return cmd
}

func parsePathReplacements(pairs []string) (map[string]string, error) {
	replacements := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		old, updated, ok := strings.Cut(pair, "=")
		if !ok || old == "" {
			return nil, fmt.Errorf("invalid --path-replace %q, want old=new", pair)
		}
		replacements[old] = updated
	}
	return replacements, nil
}
