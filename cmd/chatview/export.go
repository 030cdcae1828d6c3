package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wesm/chatview/internal/export"
)

func newExportCmd(st *cliState) *cobra.Command {
	var formatName, outDir string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write one session's transcript to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}

			a, err := openApp(st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := loadSignedIn(cmd, a)
			if err != nil {
				return err
			}
			sess, ok := snap.Index.Get(args[0])
			if !ok {
				return fmt.Errorf("session %q not found", args[0])
			}

			opts := export.Options{Location: a.loc}
			if toStdout {
				return export.Write(cmd.OutOrStdout(), sess, format, opts)
			}

			path := filepath.Join(outDir, export.Filename(sess, format))
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			if err := export.Write(f, sess, format, opts); err != nil {
				f.Close()
				return fmt.Errorf("writing %s: %w", path, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", "md", "Format: json, yaml, md or html")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Directory to write into")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Write to standard output")
	return cmd
}
