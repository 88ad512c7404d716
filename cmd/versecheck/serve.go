package main

import (
	"context"

	"github.com/darren8c/biblica-paratext-translator-plugin/internal/api"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/host"
)

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port          int      `help:"HTTP port (default: api_port from config)"`
	Projects      string   `help:"Directory holding project directories (default: projects_dir from config)" type:"path"`
	APIKey        string   `name:"api-key" help:"Require this X-API-Key (default: api_key from config)"`
	AllowedOrigin []string `name:"allowed-origin" help:"Allowed CORS origin (repeatable)"`
	RateLimit     int      `name:"rate-limit" help:"Requests per minute per client (0 disables)"`
	RateBurst     int      `name:"rate-burst" help:"Burst size for the rate limiter"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := api.Config{
		Port:           a.Config.APIPort,
		Version:        version,
		AllowedOrigins: a.Config.AllowedOrigins,
		RateLimit:      api.RateLimiterConfig{RequestsPerMinute: c.RateLimit, BurstSize: c.RateBurst},
	}
	if c.Port > 0 {
		cfg.Port = c.Port
	}
	if len(c.AllowedOrigin) > 0 {
		cfg.AllowedOrigins = c.AllowedOrigin
	}
	key := a.Config.APIKey
	if c.APIKey != "" {
		key = c.APIKey
	}
	cfg.Auth = api.AuthConfig{Enabled: key != "", APIKey: key}

	projects := a.Config.ProjectsDir
	if c.Projects != "" {
		projects = c.Projects
	}
	srv, err := api.New(cfg, a, host.NewRoot(projects, a.Log))
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}
