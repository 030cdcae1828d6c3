package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/chatview/internal/config"
	"github.com/wesm/chatview/internal/testjsonl"
)

// isolateEnv points the data dir at a temp dir and clears
// settings that would leak in from the environment.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CHATVIEW_DATA_DIR", dir)
	for _, k := range []string{
		"CHATVIEW_BACKEND", "SUPABASE_URL", "SUPABASE_ANON_KEY",
		"CHATVIEW_IMPORT_DIR", "CHATVIEW_TIMEZONE",
		"CHATVIEW_JWT_SECRET", "CHATVIEW_LOG_LEVEL", "CHATVIEW_PASSWORD",
	} {
		t.Setenv(k, "")
	}
	return dir
}

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantHost    string
		wantPort    int
		wantBackend string
		wantErr     string
	}{
		{
			name:        "DefaultArgs",
			args:        []string{},
			wantHost:    "127.0.0.1",
			wantPort:    8080,
			wantBackend: config.BackendLocal,
		},
		{
			name:        "ExplicitFlags",
			args:        []string{"--host", "0.0.0.0", "--port", "9090", "--no-browser"},
			wantHost:    "0.0.0.0",
			wantPort:    9090,
			wantBackend: config.BackendLocal,
		},
		{
			name:        "PartialFlags",
			args:        []string{"--port", "3000"},
			wantHost:    "127.0.0.1",
			wantPort:    3000,
			wantBackend: config.BackendLocal,
		},
		{
			name:    "SupabaseWithoutURL",
			args:    []string{"--backend", "supabase"},
			wantErr: "requires SUPABASE_URL",
		},
		{
			name:    "BadTimezone",
			args:    []string{"--timezone", "Mars/Olympus"},
			wantErr: "invalid timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			root := newRootCmd()
			serve, _, err := root.Find([]string{"serve"})
			require.NoError(t, err)
			require.NoError(t, serve.ParseFlags(tt.args))

			cfg, err := loadConfig(serve)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantPort, cfg.Port)
			assert.Equal(t, tt.wantBackend, cfg.Backend)
			assert.Equal(t, filepath.Join(cfg.DataDir, "chat.db"), cfg.DBPath)
			assert.NotEmpty(t, cfg.JWTSecret)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "chatview dev (commit unknown, built )\n", out)
}

func TestSetupLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatview.log")
	closer, err := setupLogging(config.Config{LogLevel: "debug", LogFile: path})
	require.NoError(t, err)
	t.Cleanup(func() {
		closer.Close()
		_, _ = setupLogging(config.Config{})
	})

	truncateLogFile(filepath.Join(t.TempDir(), "missing.log"), 1)
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSetupLoggingBadLevel(t *testing.T) {
	_, err := setupLogging(config.Config{LogLevel: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestTruncateLogFile(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		limit    int64
		symlink  bool
		wantSize int
	}{
		{name: "over limit emptied", size: 1024, limit: 512, wantSize: 0},
		{name: "under limit kept", size: 100, limit: 1024, wantSize: 100},
		{name: "at limit kept", size: 512, limit: 512, wantSize: 512},
		{name: "symlink left alone", size: 1024, limit: 512, symlink: true, wantSize: 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "chatview.log")
			require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), tt.size), 0o644))

			target := path
			if tt.symlink {
				target = filepath.Join(dir, "link.log")
				if err := os.Symlink(path, target); err != nil {
					t.Skipf("symlinks unavailable: %v", err)
				}
			}

			truncateLogFile(target, tt.limit)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Len(t, data, tt.wantSize)
		})
	}

	// A missing file is not an error.
	truncateLogFile(filepath.Join(t.TempDir(), "missing", "chatview.log"), 1)
}

func writeExport(t *testing.T, dir, name string) string {
	t.Helper()
	now := time.Now().UTC()
	content := testjsonl.NewRowBuilder().
		AddMessage(1, "sess-cli-one", now.Add(-2*time.Hour).Format(time.RFC3339), "HUMAN", "WHATSAPP", "hello there").
		AddMessage(2, "sess-cli-one", now.Add(-time.Hour).Format(time.RFC3339), "AI", "WHATSAPP", "hi, how can I help?").
		AddMessage(3, "sess-cli-two", now.Add(-48*time.Hour).Format(time.RFC3339), "BOT", "", "ping").
		JSONL()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportCommand(t *testing.T) {
	isolateEnv(t)
	path := writeExport(t, t.TempDir(), "rows.jsonl")

	out, err := run(t, "", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out,
		"Import complete: 1 files (1 imported, 0 skipped, 0 failed), 3 rows")
	assert.Contains(t, out, "Database: 2 sessions, 3 messages")

	out, err = run(t, "", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(0 imported, 1 skipped, 0 failed)")
}

func TestImportCommandScansImportDir(t *testing.T) {
	dataDir := isolateEnv(t)
	importDir := filepath.Join(dataDir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	writeExport(t, importDir, "a.jsonl")

	out, err := run(t, "", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "3 rows")
}

func TestImportCommandAllFailed(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "", "import", filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files could be imported")
}

func TestLoginSummaryLogout(t *testing.T) {
	isolateEnv(t)
	path := writeExport(t, t.TempDir(), "rows.jsonl")
	_, err := run(t, "", "import", path)
	require.NoError(t, err)

	_, err = run(t, "", "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")

	out, err := run(t, "", "login", "--signup",
		"--email", "grace@example.com", "--password", "hopper1",
		"--full-name", "Grace")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as grace@example.com")

	out, err = run(t, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Chat history")
	assert.Contains(t, out, "Recent sessions (2 matching)")
	assert.Contains(t, out, "sess-cli")
	assert.Contains(t, out, "hi, how can I help?")
	assert.Contains(t, out, "Agent types")

	out, err = run(t, "", "summary", "--platform", "WHATSAPP")
	require.NoError(t, err)
	assert.Contains(t, out, "Recent sessions (1 matching)")

	exportDir := t.TempDir()
	out, err = run(t, "", "export", "sess-cli-one", "-o", exportDir)
	require.NoError(t, err)
	assert.Contains(t, out, "session-sess-cli-one.md")
	md, err := os.ReadFile(filepath.Join(exportDir, "session-sess-cli-one.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Session sess-cli-one"))

	_, err = run(t, "", "export", "sess-missing", "--stdout")
	require.Error(t, err)

	out, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")

	out, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")
}

func TestLoginReadsPrompts(t *testing.T) {
	isolateEnv(t)

	_, err := run(t, "grace@example.com\nhopper1\nGrace\n", "login", "--signup")
	require.NoError(t, err)

	_, err = run(t, "grace@example.com\nwrong-pass\n", "login")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())
}
