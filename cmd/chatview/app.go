package main

import (
	"fmt"
	"time"

	"github.com/wesm/chatview/internal/auth"
	"github.com/wesm/chatview/internal/config"
	"github.com/wesm/chatview/internal/db"
	"github.com/wesm/chatview/internal/logging"
	"github.com/wesm/chatview/internal/source"
	"github.com/wesm/chatview/internal/sync"
)

// tokenTTL is how long a locally issued access token is valid.
const tokenTTL = 7 * 24 * time.Hour

// app holds the collaborators selected by the configured
// backend. The SQLite mirror is always open: it is the data
// source of the local backend and the import target of both.
type app struct {
	cfg      config.Config
	db       *db.DB
	source   source.Source
	provider auth.Provider
	loc      *time.Location
}

func openApp(cfg config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{cfg: cfg, db: database, loc: loc}
	switch cfg.Backend {
	case config.BackendSupabase:
		client := logging.NewHTTPClient(cfg.FetchTimeout, "supabase")
		a.source = source.NewSupabase(
			cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.Table,
			source.WithHTTPClient(client),
		)
		a.provider = auth.NewGoTrue(
			cfg.SupabaseURL, cfg.SupabaseAnonKey,
			logging.NewHTTPClient(cfg.FetchTimeout, "gotrue"),
		)
	default:
		tokens, err := auth.NewTokens(cfg.JWTSecret, tokenTTL)
		if err != nil {
			database.Close()
			return nil, err
		}
		a.source = source.NewStore(database)
		a.provider = auth.NewLocal(database, tokens)
	}
	return a, nil
}

// newEngine returns a sync engine over the app's source that
// imports into the app's mirror.
func (a *app) newEngine() *sync.Engine {
	return sync.NewEngine(a.source, a.db, a.loc)
}

func (a *app) Close() error {
	return a.db.Close()
}
