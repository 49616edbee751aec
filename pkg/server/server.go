// Package server provides the public entry point for initializing the
// AgentLLM proxy server.
//
// This package lives in pkg/ (not internal/) so that embedders can compose
// the proxy into a larger process:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":4000", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentllm/agentllm/internal/agents"
	"github.com/agentllm/agentllm/internal/api"
	"github.com/agentllm/agentllm/internal/config"
	"github.com/agentllm/agentllm/internal/credstore"
	"github.com/agentllm/agentllm/internal/engine"
	"github.com/agentllm/agentllm/internal/sessions"
	"github.com/agentllm/agentllm/internal/telemetry"
)

// Server holds the initialized proxy.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Creds is the credential store; callers should Close it on shutdown.
	Creds credstore.Store

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes the proxy from environment configuration.
func New(ctx context.Context) (*Server, error) {
	config.LoadDotEnv()
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the proxy with an explicit configuration.
func NewWithConfig(_ context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	creds, err := openCredentialStore(cfg)
	if err != nil {
		return nil, err
	}

	history := sessions.NewMemorySessionStore()
	eng := engine.NewUpstream(cfg.Upstream.URL, cfg.Upstream.APIKey, cfg.Upstream.Model, history)
	log.Info().
		Str("endpoint", cfg.Upstream.URL).
		Str("model", cfg.Upstream.Model).
		Msg("upstream engine initialized")

	catalog := agents.NewCatalog(
		agents.NewDemo(cfg, creds, eng),
		agents.NewReleaseManager(cfg, creds, eng),
	)
	log.Info().Msg("agent catalog initialized: demo, release-manager")

	return &Server{
		Handler:      api.NewRouter(cfg, catalog),
		Creds:        creds,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

func openCredentialStore(cfg *config.Config) (credstore.Store, error) {
	if cfg.Database.Path == "" {
		log.Info().Msg("in-memory credential store initialized")
		return credstore.NewMemory(), nil
	}
	store, err := credstore.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}
	log.Info().Str("path", cfg.Database.Path).Msg("sqlite credential store initialized")
	return store, nil
}
