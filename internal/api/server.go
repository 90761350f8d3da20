package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jananikolasekar/hut8-janani/internal/config"
	"github.com/jananikolasekar/hut8-janani/internal/market"
	"github.com/jananikolasekar/hut8-janani/internal/metrics"
	"github.com/jananikolasekar/hut8-janani/internal/profitability"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	calculator *profitability.Calculator
	market     market.Source
	logger     *zap.Logger
	metrics    *metrics.Metrics
	version    string
	hub        *StreamHub
	upgrader   websocket.Upgrader
	server     *http.Server
}

// NewServer creates a new API server. A nil metrics disables the metrics
// endpoint and all observations.
func NewServer(cfg *config.Config, calc *profitability.Calculator, src market.Source, logger *zap.Logger, m *metrics.Metrics, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:        cfg,
		calculator: calc,
		market:     src,
		logger:     logger,
		metrics:    m,
		version:    version,
		upgrader:   newUpgrader(cfg.Server.CORS.AllowedOrigins),
	}
	if cfg.Server.StreamInterval > 0 {
		s.hub = NewStreamHub(src, calc, cfg.Server.StreamInterval, cfg.Pricing.Timeout*2, logger)
	}
	return s
}

// Handler builds the router with middleware and routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	if origins := s.cfg.Server.CORS.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: s.cfg.Server.CORS.AllowCredentials,
			MaxAge:           300,
		}))
	}

	r.Use(rateLimit(s.cfg.Server.RateLimitPerMinute))

	r.Group(func(r chi.Router) {
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}

		r.Post("/calculate", s.handleCalculate)
		r.Get("/market", s.handleMarket)
		r.Get("/health", s.handleHealth)
	})

	// WebSocket, outside the request timeout
	if s.hub != nil {
		r.Get("/ws", s.handleStream)
	}

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	return r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	// Start WebSocket hub
	if s.hub != nil {
		go s.hub.Run()
	}

	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	// Stop WebSocket hub
	if s.hub != nil {
		s.hub.Stop()
	}

	// Shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
