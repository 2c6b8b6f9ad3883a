// Package server provides the public entry point for initializing the
// ledgerchat service.
//
// This package exists in pkg/ (not internal/) so embedders can compose the
// assembled handler with their own middleware:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/agents"
	"github.com/ledgerchat/ledgerchat/internal/api"
	"github.com/ledgerchat/ledgerchat/internal/api/handlers"
	"github.com/ledgerchat/ledgerchat/internal/config"
	"github.com/ledgerchat/ledgerchat/internal/confirm"
	"github.com/ledgerchat/ledgerchat/internal/gateway"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/internal/telemetry"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// Server holds the initialized ledgerchat service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store (in-memory or Postgres, by configuration).
	Store store.Store

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration and returns
// a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	seedDefaultTeam(ctx, dataStore)

	completer, err := gateway.New(cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("init gateway: %w", err)
	}
	log.Info().Str("provider", cfg.Gateway.Provider).Msg("Completion gateway initialized")

	extractor := agents.NewExtractor(completer, dataStore)
	workflow := confirm.NewWorkflow(dataStore)
	orchestrator := agents.NewOrchestrator(
		agents.NewRouter(),
		agents.NewSetupAgent(completer),
		agents.NewQueryAgent(completer, dataStore),
		agents.NewOperationsAgent(extractor, workflow),
	)

	h := handlers.New(dataStore, orchestrator)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL != "" {
		s, err := store.NewPostgresStore(cfg.Database.URL, cfg.Database.MaxConnections)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("PostgreSQL store initialized")
		return s, nil
	}
	log.Info().Msg("In-memory store initialized")
	return store.NewMemoryStore(), nil
}

func seedDefaultTeam(ctx context.Context, s store.Store) {
	if _, err := s.GetTeam(ctx, "default"); err == nil {
		return
	}
	t := &models.Team{
		ID:        "default",
		Name:      "Default Team",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateTeam(ctx, t); err != nil {
		log.Warn().Err(err).Msg("Failed to seed default team")
		return
	}
	log.Info().Msg("Default team seeded")
}
