package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/wesm/chatview/internal/config"
	"github.com/wesm/chatview/internal/logging"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	periodicRefreshInterval = 15 * time.Minute
	watcherDebounce         = 500 * time.Millisecond
	browserPollInterval     = 100 * time.Millisecond
	browserPollAttempts     = 60
	maxLogSize              = 10 << 20
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cliState is filled in before any command runs.
type cliState struct {
	cfg       config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	st := &cliState{}
	root := &cobra.Command{
		Use:   "chatview",
		Short: "Dashboard for chat-bot conversation history",
		Long: `chatview serves a dashboard over chat-bot conversation
history: an overview, a session browser with transcripts, and
analytics by agent type, platform and day.

History is read from a hosted Supabase table or from a local
SQLite mirror fed by JSONL/JSON exports.

Data is stored in ~/.chatview/ by default.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.logCloser, err = setupLogging(cfg)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if st.logCloser != nil {
				st.logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, st.cfg)
		},
	}
	root.SetVersionTemplate("chatview {{.Version}}\n")
	config.RegisterGlobalFlags(root.PersistentFlags())
	registerServeFlags(root)

	root.AddCommand(
		newServeCmd(st),
		newImportCmd(st),
		newLoginCmd(st),
		newLogoutCmd(st),
		newSummaryCmd(st),
		newExportCmd(st),
		newPruneCmd(st),
		newVersionCmd(),
	)
	return root
}

func registerServeFlags(cmd *cobra.Command) {
	config.RegisterServeFlags(cmd.Flags())
	cmd.Flags().Bool("no-browser", false, "Don't open browser on startup")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(),
				"chatview %s (commit %s, built %s)\n",
				version, commit, buildDate)
		},
	}
}

// loadConfig layers the command's flags over file and env
// settings and validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return cfg, fmt.Errorf("creating data dir: %w", err)
	}
	return cfg, nil
}

// setupLogging applies the configured level and log file. An
// oversized log file is emptied first.
func setupLogging(cfg config.Config) (io.Closer, error) {
	if cfg.LogFile != "" {
		truncateLogFile(cfg.LogFile, maxLogSize)
	}
	closer, err := logging.Configure(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	return closer, nil
}

// truncateLogFile empties path when it is larger than limit.
// Symlinks are left alone.
func truncateLogFile(path string, limit int64) {
	info, err := os.Lstat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Default().Warn("checking log file", "path", path, "err", err)
		}
		return
	}
	if !info.Mode().IsRegular() || info.Size() <= limit {
		return
	}
	if err := os.Truncate(path, 0); err != nil {
		logging.Default().Warn("truncating log file", "path", path, "err", err)
	}
}
