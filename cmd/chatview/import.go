package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/chatview/internal/sync"
)

func newImportCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "import [files...]",
		Short: "Import JSONL/JSON chat exports into the local database",
		Long: `Import chat history rows into the local SQLite mirror.

Each file holds either one JSON row per line (.jsonl) or a JSON
array of rows (.json). With no arguments the configured import
directory is scanned. Files unchanged since the last import are
skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			engine := a.newEngine()
			var stats sync.ImportStats
			if len(args) == 0 {
				stats, err = engine.ImportDir(
					st.cfg.ImportDir, importProgress(cmd),
				)
				if err != nil {
					return fmt.Errorf("scanning %s: %w", st.cfg.ImportDir, err)
				}
			} else {
				stats = engine.ImportPaths(args, importProgress(cmd))
			}
			printImportStats(cmd, stats)
			if ds, err := a.db.GetStats(cmd.Context()); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(),
					"Database: %d sessions, %d messages\n",
					ds.SessionCount, ds.MessageCount)
			}
			if stats.Files > 0 && stats.Failed == stats.Files {
				return fmt.Errorf("no files could be imported")
			}
			return nil
		},
	}
}

func importProgress(cmd *cobra.Command) sync.ImportFunc {
	return func(s sync.ImportStats) {
		if s.Files > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(),
				"\r  %d/%d files (%.0f%%) · %d rows",
				s.Imported+s.Skipped+s.Failed, s.Files,
				s.Percent(), s.Rows,
			)
		}
	}
}

func printImportStats(cmd *cobra.Command, s sync.ImportStats) {
	if s.Files > 0 {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"Import complete: %d files (%d imported, %d skipped, %d failed), %d rows",
		s.Files, s.Imported, s.Skipped, s.Failed, s.Rows,
	)
	if s.Invalid > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d invalid rows skipped", s.Invalid)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	for _, w := range s.Warnings {
		fmt.Fprintf(cmd.OutOrStdout(), "  warning: %s\n", w)
	}
}
