// Package api serves the check engine over HTTP: asynchronous runs with a
// websocket progress stream, stored results, ignore lists, the check
// catalog and reference lookup.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/project"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/app"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/host"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/logging"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/server"
)

// Server is the API server. Close must be called to stop background work.
type Server struct {
	cfg      Config
	app      *app.App
	projects *host.Root
	contexts *project.Cache
	runs     *RunStore
	hub      *Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
	started  time.Time

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New returns a server over a's services and the projects under projects.
func New(cfg Config, a *app.App, projects *host.Root) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid api config")
	}
	log := a.Log.With("component", "api")
	contexts, err := project.NewCache(project.DefaultCacheSize, projects, projects, a.Log)
	if err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		app:      a,
		projects: projects,
		contexts: contexts,
		runs:     NewRunStore(),
		hub:      NewHub(log),
		upgrader: newUpgrader(cfg.AllowedOrigins),
		log:      log,
		started:  time.Now(),
		ctx:      ctx,
		stop:     stop,
	}
	go s.hub.Run(ctx)
	return s, nil
}

// Runs exposes the server's run store.
func (s *Server) Runs() *RunStore { return s.runs }

// Close cancels unfinished runs, waits for them and disconnects websocket
// clients.
func (s *Server) Close() {
	s.runs.CancelAll()
	s.wg.Wait()
	s.stop()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /projects", s.handleProjects)
	mux.HandleFunc("POST /projects/{project}/reload", s.handleReloadProject)

	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /runs/{id}", s.handleCancelRun)

	mux.HandleFunc("GET /results/{project}/{book}", s.handleResults)

	mux.HandleFunc("GET /ignore/{project}", s.handleListIgnore)
	mux.HandleFunc("POST /ignore/{project}", s.handleAddIgnore)
	mux.HandleFunc("DELETE /ignore/{project}", s.handleRemoveIgnore)

	mux.HandleFunc("GET /checks", s.handleListChecks)
	mux.HandleFunc("POST /checks", s.handlePublishCheck)
	mux.HandleFunc("DELETE /checks/{id}/{version}", s.handleUnpublishCheck)

	mux.HandleFunc("GET /refs", s.handleRefs)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

// Handler returns the routes wrapped in the middleware chain. Logging runs
// outermost so rejected requests are still logged.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.routes()
	h = server.RequireJSON(h)
	h = AuthMiddleware(s.cfg.Auth, s.log, h)
	if s.cfg.RateLimit.RequestsPerMinute > 0 {
		h = NewRateLimiter(s.cfg.RateLimit, s.log).Middleware(h)
	}
	h = server.SecurityHeaders(server.APICSPConfig(), h)
	h = server.CORS(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, h)
	return logging.Middleware(s.log)(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and closes the server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Auth.Enabled {
		s.log.Info("authentication enabled", "note", "API key required")
	} else {
		s.log.Warn("authentication disabled", "note", "all requests allowed")
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		s.log.Warn("CORS allows all origins", "recommendation", "set allowed origins for production")
	}
	logging.ServerStartup(s.log, "rest_api", "http", s.cfg.Port,
		"websocket_path", "/ws",
		"projects_dir", s.projects.Dir())

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}
