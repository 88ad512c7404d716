// Package app wires configuration into the stores, catalog and runner
// shared by the command line and the API server.
package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/project"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/runner"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/script"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/sqlite"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/store"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/catalog"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/config"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/host"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/logging"
)

var nowFunc = time.Now

// App holds the long-lived services built from a Config.
type App struct {
	Config  config.Config
	Log     *slog.Logger
	Data    store.PluginData
	Results *store.ResultStore
	Ignore  *store.IgnoreStore
	Catalog *catalog.Catalog
	Scripts *script.Registry

	closers []func()
}

// Open builds every service named by cfg. Close releases them.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}
	a := &App{Config: cfg, Log: log, Scripts: script.Default()}

	data, err := a.openData(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.CacheSize > 0 {
		cached, err := store.NewCached(data, cfg.CacheSize)
		if err != nil {
			a.Close()
			return nil, err
		}
		data = cached
	}
	a.Data = data
	a.Results = store.NewResultStore(data)
	a.Ignore = store.NewIgnoreStore(data)

	repo, err := a.openRepository()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Catalog = catalog.New(repo, catalog.Options{Logger: log, Scripts: a.Scripts})
	return a, nil
}

func (a *App) openData(ctx context.Context) (store.PluginData, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreFile:
		return store.NewFileStore(filepath.Join(cfg.DataDir, "plugin-data"))
	case config.StoreSQLite:
		path := cfg.SQLiteFile()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.NewIO("create", filepath.Dir(path), err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.Log.Debug("sqlite store opened", "path", path, "driver", sqlite.DriverType())
		return store.NewSQLite(db), nil
	case config.StorePostgres:
		pg, err := store.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	default:
		return nil, errors.NewValidation("store", "unknown store "+cfg.Store)
	}
}

func (a *App) openRepository() (catalog.Repository, error) {
	if a.Config.CatalogS3 != nil {
		return catalog.NewS3Repository(*a.Config.CatalogS3)
	}
	return catalog.NewDirRepository(a.Config.CatalogPath())
}

// Close releases database connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// RunRequest describes one check run over a project directory.
type RunRequest struct {
	Dir      *host.Dir
	Context  *project.Context
	Selector runner.Selector
	// Checks selects catalog items by name or ID; empty runs every item.
	Checks     []string
	Progress   func(runner.Progress)
	Transcript *runner.Recorder
}

// Run executes catalog checks over a project and stores the findings.
func (a *App) Run(ctx context.Context, req RunRequest) (*runner.Result, error) {
	items, err := a.Catalog.Select(ctx, req.Checks...)
	if err != nil {
		return nil, err
	}
	pctx := req.Context
	if pctx == nil {
		if pctx, err = project.Build(req.Dir.Name(), req.Dir, req.Dir, a.Log); err != nil {
			return nil, err
		}
	}
	r := runner.New(runner.Options{
		Workers:    a.Config.Workers,
		Scripts:    a.Scripts,
		Ignore:     a.Ignore,
		Project:    pctx,
		Logger:     a.Log,
		Progress:   req.Progress,
		Transcript: req.Transcript,
	})
	return r.RunAndStore(ctx, items, req.Selector, req.Dir, a.Results)
}

// Dismiss adds ignore entries for findings.
func (a *App) Dismiss(ctx context.Context, projectName, reason string, findings ...checks.Finding) ([]checks.IgnoreItem, error) {
	now := nowFunc()
	items := make([]checks.IgnoreItem, 0, len(findings))
	for _, f := range findings {
		items = append(items, checks.NewIgnoreItem(f, reason, now))
	}
	if err := a.Ignore.Add(ctx, projectName, items...); err != nil {
		return nil, err
	}
	return items, nil
}
