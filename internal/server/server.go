// Package server exposes a read-mostly HTTP status API plus a websocket feed
// of live engine events.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"galaxy-trader/internal/cache"
	"galaxy-trader/internal/danger"
	"galaxy-trader/internal/engine"
	"galaxy-trader/internal/ledger"
	"galaxy-trader/internal/progression"
	"galaxy-trader/internal/store"
	"galaxy-trader/internal/stream"
)

// Deps bundles the read surfaces the API serves from.
type Deps struct {
	Engine      *engine.Engine
	Progression *progression.Machine
	Danger      *danger.Registry
	Ledger      *ledger.Ledger
	Cache       *cache.Cache
	Store       store.DataStore
	Hub         *stream.Hub
}

// Server is the HTTP status server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	deps   Deps
}

// New creates the server bound to addr.
func New(addr string, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    logger.With().Str("component", "server").Logger(),
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/agents", s.handleAgents)
		r.Get("/pilots", s.handlePilots)
		r.Get("/pilots/{pilotID}", s.handlePilot)
		r.Get("/danger/blocked", s.handleBlockedZones)
		r.Post("/danger/report", s.handleThreatReport)
		r.Get("/reservations", s.handleReservations)
		r.Get("/opportunities", s.handleOpportunities)
		r.Get("/trades", s.handleTrades)
		r.Get("/stats", s.handleStats)
	})

	s.router.Get("/ws/events", s.handleEventFeed)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Status server started")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Status server shutting down")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
