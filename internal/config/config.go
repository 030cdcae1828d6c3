package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/wesm/chatview/internal/timeutil"
)

// Backends a Config can select.
const (
	BackendSupabase = "supabase"
	BackendLocal    = "local"
)

// DefaultTable is the hosted chat history table.
const DefaultTable = "axorra_chat_sessions_histories"

const configFileName = "config.json"

// Config holds all application configuration.
type Config struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	DataDir         string        `json:"-"`
	DBPath          string        `json:"-"`
	Backend         string        `json:"backend,omitempty"`
	SupabaseURL     string        `json:"supabase_url,omitempty"`
	SupabaseAnonKey string        `json:"supabase_anon_key,omitempty"`
	Table           string        `json:"table,omitempty"`
	ImportDir       string        `json:"import_dir,omitempty"`
	Timezone        string        `json:"timezone,omitempty"`
	DateLayout      string        `json:"date_layout,omitempty"`
	JWTSecret       string        `json:"jwt_secret"`
	LogLevel        string        `json:"log_level,omitempty"`
	LogFile         string        `json:"log_file,omitempty"`
	WriteTimeout    time.Duration `json:"-"`
	FetchTimeout    time.Duration `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".chatview")
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "chat.db"),
		Table:        DefaultTable,
		Timezone:     "Local",
		DateLayout:   timeutil.DefaultDateLayout,
		LogLevel:     "info",
		WriteTimeout: 30 * time.Second,
		FetchTimeout: 30 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file <
// .env and process env < flags. Only flags that were explicitly
// set override the lower layers. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file and
// environment, without looking at CLI flags.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}

	// The data dir decides where config.json and the second
	// .env live, so it is resolved first.
	if err := loadDotEnv(".env"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("CHATVIEW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := loadDotEnv(filepath.Join(cfg.DataDir, ".env")); err != nil {
		return cfg, err
	}

	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	if err := cfg.ensureJWTSecret(); err != nil {
		return cfg, fmt.Errorf("ensuring jwt secret: %w", err)
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, "chat.db")
	if cfg.ImportDir == "" {
		cfg.ImportDir = filepath.Join(cfg.DataDir, "import")
	}
	cfg.resolveBackend()
	return cfg, nil
}

// loadDotEnv applies a .env file without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, configFileName)
}

// CredentialsPath is where the CLI keeps its signed-in session.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	setString(&c.Host, file.Host)
	if file.Port > 0 {
		c.Port = file.Port
	}
	setString(&c.Backend, file.Backend)
	setString(&c.SupabaseURL, file.SupabaseURL)
	setString(&c.SupabaseAnonKey, file.SupabaseAnonKey)
	setString(&c.Table, file.Table)
	setString(&c.ImportDir, file.ImportDir)
	setString(&c.Timezone, file.Timezone)
	setString(&c.DateLayout, file.DateLayout)
	setString(&c.JWTSecret, file.JWTSecret)
	setString(&c.LogLevel, file.LogLevel)
	setString(&c.LogFile, file.LogFile)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) loadEnv() {
	setString(&c.Backend, strings.ToLower(os.Getenv("CHATVIEW_BACKEND")))
	setString(&c.SupabaseURL, os.Getenv("SUPABASE_URL"))
	setString(&c.SupabaseAnonKey, os.Getenv("SUPABASE_ANON_KEY"))
	setString(&c.Table, os.Getenv("CHATVIEW_TABLE"))
	setString(&c.ImportDir, os.Getenv("CHATVIEW_IMPORT_DIR"))
	setString(&c.Timezone, os.Getenv("CHATVIEW_TIMEZONE"))
	setString(&c.JWTSecret, os.Getenv("CHATVIEW_JWT_SECRET"))
	setString(&c.LogLevel, os.Getenv("CHATVIEW_LOG_LEVEL"))
	if v := os.Getenv("CHATVIEW_DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

func (c *Config) resolveBackend() {
	if c.Backend != "" {
		return
	}
	if c.SupabaseURL != "" {
		c.Backend = BackendSupabase
	} else {
		c.Backend = BackendLocal
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf(
				"supabase backend requires SUPABASE_URL and SUPABASE_ANON_KEY",
			)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Location resolves the configured viewer timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := timeutil.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) ensureJWTSecret() error {
	if c.JWTSecret != "" {
		return nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("generating secret: %w", err)
	}
	secret := base64.StdEncoding.EncodeToString(b)
	if err := c.saveKey("jwt_secret", secret); err != nil {
		return err
	}
	c.JWTSecret = secret
	return nil
}

// saveKey sets one key in config.json, preserving the others.
func (c *Config) saveKey(key string, value any) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing[key] = value
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveBackend persists the backend choice so later runs pick
// it up without env vars.
func (c *Config) SaveBackend(backend string) error {
	if backend != BackendLocal && backend != BackendSupabase {
		return fmt.Errorf("unknown backend %q", backend)
	}
	if err := c.saveKey("backend", backend); err != nil {
		return err
	}
	c.Backend = backend
	return nil
}

// RegisterGlobalFlags registers flags shared by every command.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.String("backend", "", "Data backend: supabase or local")
	fs.String("timezone", "", "Viewer timezone (IANA name or Local)")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("log-file", "", "Append logs to this file")
}

// RegisterServeFlags registers serve-command flags on fs.
func RegisterServeFlags(fs *pflag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
	fs.String("import-dir", "", "Directory watched for JSONL/JSON exports")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *pflag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "host":
			cfg.Host = v
		case "port":
			// pflag already validated the int
			cfg.Port, _ = strconv.Atoi(v)
		case "backend":
			cfg.Backend = strings.ToLower(v)
		case "import-dir":
			cfg.ImportDir = v
		case "timezone":
			cfg.Timezone = v
		case "log-level":
			cfg.LogLevel = v
		case "log-file":
			cfg.LogFile = v
		}
	})
}
