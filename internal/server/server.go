// Package server wires the stand-in users API together: database, services,
// handlers, middleware and routes.
//
// DEPENDENCY FLOW:
//
//	config.Server → sqlite.DB → UserService   → UserHandler
//	                          → ClientService → TokenHandler
//	                                          ↘ auth.RequireBearer
//
// This is the composition root. Nothing below it constructs its own
// dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/user-directory/internal/auth"
	"github.com/sakif/user-directory/internal/config"
	"github.com/sakif/user-directory/internal/handler"
	"github.com/sakif/user-directory/internal/middleware"
	sqliteRepo "github.com/sakif/user-directory/internal/repository/sqlite"
	"github.com/sakif/user-directory/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may take to finish.
const shutdownTimeout = 30 * time.Second

// Server is the HTTP server and everything it owns.
type Server struct {
	router *chi.Mux
	config config.Server
	logger *slog.Logger
	db     *sqliteRepo.DB

	users   *service.UserService
	clients *service.ClientService // nil when auth is disabled
	tokens  *auth.TokenService     // nil when auth is disabled
}

// New opens the database, seeds it when empty, registers the configured API
// client and builds the router.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger) (*Server, error) {
	return newServer(ctx, cfg, logger, auth.NewSecretHasher())
}

func newServer(ctx context.Context, cfg config.Server, logger *slog.Logger, secrets *auth.SecretHasher) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		users:  service.NewUserService(db, logger),
	}

	if err := s.init(ctx, secrets); err != nil {
		db.Close()
		return nil, err
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) init(ctx context.Context, secrets *auth.SecretHasher) error {
	n, err := s.users.SeedIfEmpty(ctx)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	if n > 0 {
		s.logger.Info("database seeded", slog.Int("users", n))
	}

	if !s.config.AuthEnabled() {
		s.logger.Warn("JWT_SECRET, API_CLIENT_ID or API_CLIENT_SECRET not set: /users is public")
		return nil
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	s.tokens = tokens
	s.clients = service.NewClientService(s.db, tokens, secrets, s.logger)

	if err := s.clients.Ensure(ctx, s.config.ClientID, s.config.ClientSecret); err != nil {
		return fmt.Errorf("registering API client: %w", err)
	}
	return nil
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
// GET  /healthz      → liveness, never authenticated
// POST /oauth/token  → client_credentials grant (auth enabled only)
// GET  /users        → the directory
// GET  /users/{id}   → one user
//
// MIDDLEWARE ORDER:
// RequestID runs first so the logger can print it. Bearer checks run
// before the artificial delay so a rejected request is rejected fast.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)

	if s.clients != nil {
		tokenHandler := handler.NewTokenHandler(s.clients, s.logger)
		s.router.Post("/oauth/token", tokenHandler.HandleToken)
	}

	userHandler := handler.NewUserHandler(s.users, s.logger)
	s.router.Group(func(r chi.Router) {
		if s.tokens != nil {
			r.Use(auth.RequireBearer(s.tokens))
		}
		r.Use(middleware.Delay(s.config.ResponseDelay))

		r.Get("/users", userHandler.HandleList)
		r.Get("/users/{id}", userHandler.HandleGetByID)
	})
}

// Handler returns the root handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until ctx is cancelled, then shuts down gracefully: stop
// accepting connections, let in-flight requests finish, close the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + s.config.ResponseDelay,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.config.AuthEnabled()),
			slog.Duration("response_delay", s.config.ResponseDelay),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
