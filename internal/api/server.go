// Package api wires the HTTP surface: routing, middleware, and handlers.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vieuxgrimoire/grimoire-server/internal/config"
	"github.com/vieuxgrimoire/grimoire-server/internal/media/images"
	"github.com/vieuxgrimoire/grimoire-server/internal/ratelimit"
	"github.com/vieuxgrimoire/grimoire-server/internal/service"
)

// Server is the HTTP server for the grimoire API.
type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	logger      *slog.Logger
	auth        *service.AuthService
	books       *service.BookService
	covers      *images.Storage
	authLimiter *ratelimit.KeyedLimiter
}

// NewServer creates and configures the HTTP server.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	authSvc *service.AuthService,
	bookSvc *service.BookService,
	covers *images.Storage,
) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		auth:        authSvc,
		books:       bookSvc,
		covers:      covers,
		authLimiter: ratelimit.New(cfg.Auth.RateLimitPerSecond, cfg.Auth.RateLimitBurst),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// The web client runs on a different origin in development.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/images/{name}", s.handleGetImage)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.rateLimitByIP)
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Get("/bestrating", s.handleBestRated)
			r.Get("/{id}", s.handleGetBook)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateBook)
				r.Put("/{id}", s.handleUpdateBook)
				r.Delete("/{id}", s.handleDeleteBook)
				r.Post("/{id}/rating", s.handleAddRating)
			})
		})
	})
}

// Start begins listening for HTTP requests. Blocks until the server
// stops; a graceful shutdown reports nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
