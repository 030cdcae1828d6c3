package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/chatview/internal/config"
	"github.com/wesm/chatview/internal/logging"
	"github.com/wesm/chatview/internal/server"
	"github.com/wesm/chatview/internal/sync"
)

func newServeCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, st.cfg)
		},
	}
	registerServeFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	log := logging.New("serve")

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := a.newEngine()
	runInitialImport(cmd, engine, cfg.ImportDir)
	if cfg.Backend == config.BackendLocal {
		if n, err := a.db.CountMessages(cmd.Context()); err == nil && n == 0 {
			fmt.Fprintf(cmd.OutOrStdout(),
				"No chat rows yet; drop .jsonl exports into %s\n",
				cfg.ImportDir)
		}
	}

	stopWatcher := startFileWatcher(cfg, engine)
	defer stopWatcher()

	ctx, stop := signal.NotifyContext(
		cmd.Context(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()
	go startPeriodicRefresh(ctx, cfg, engine)

	srv := server.New(cfg, engine, a.provider,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Fprintf(cmd.OutOrStdout(),
			"Port %d in use, using %d\n", cfg.Port, port)
		cfg.Port = port
		srv.SetPort(port)
	}

	url := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	fmt.Fprintf(cmd.OutOrStdout(),
		"chatview %s (%s backend) listening at %s\n",
		version, cfg.Backend, url)

	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); !noBrowser {
		go openBrowser(url)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// runInitialImport loads whatever is already in the import
// directory before the server starts.
func runInitialImport(
	cmd *cobra.Command, engine *sync.Engine, dir string,
) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Importing exports...")
	stats, err := engine.ImportDir(dir, importProgress(cmd))
	if err != nil {
		logging.Default().Warn("initial import", "dir", dir, "err", err)
		return
	}
	printImportStats(cmd, stats)
}

func startFileWatcher(
	cfg config.Config, engine *sync.Engine,
) func() {
	log := logging.New("serve")
	if err := os.MkdirAll(cfg.ImportDir, 0o755); err != nil {
		log.Warn("import dir unavailable", "dir", cfg.ImportDir, "err", err)
		return func() {}
	}

	onChange := func(paths []string) {
		engine.ImportPaths(paths, nil)
	}
	watcher, err := sync.NewWatcher(watcherDebounce, onChange)
	if err != nil {
		log.Warn("file watcher unavailable", "err", err)
		return func() {}
	}
	if _, err := watcher.WatchRecursive(cfg.ImportDir); err != nil {
		log.Warn("watching import dir", "dir", cfg.ImportDir, "err", err)
	}
	watcher.Start()
	return watcher.Stop
}

// startPeriodicRefresh rescans the import directory and, for
// the hosted backend, marks every cached snapshot stale so the
// next read fetches again.
func startPeriodicRefresh(
	ctx context.Context, cfg config.Config, engine *sync.Engine,
) {
	log := logging.New("serve")
	ticker := time.NewTicker(periodicRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Debug("running scheduled refresh")
			if _, err := engine.ImportDir(cfg.ImportDir, nil); err != nil {
				log.Warn("scheduled import", "err", err)
			}
			if cfg.Backend == config.BackendSupabase {
				engine.MarkAllStale()
			}
		}
	}
}

func openBrowser(url string) {
	for range browserPollAttempts {
		time.Sleep(browserPollInterval)
		resp, err := http.Get(url + "/api/v1/version")
		if err == nil {
			resp.Body.Close()
			break
		}
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32",
			"url.dll,FileProtocolHandler", url)
	default:
		return
	}
	_ = cmd.Run()
}
