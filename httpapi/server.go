package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
	"go.uber.org/atomic"
)

// Server wraps http.Server around the gateway routes
type Server struct {
	cfg     blobx.HTTPConfig
	handler *Handler
	logger  logx.Logger
	srv     *http.Server
	addr    atomic.String
	running atomic.Bool
}

// NewServer builds the router and the underlying http.Server
func NewServer(cfg blobx.HTTPConfig, handler *Handler, logger logx.Logger) *Server {
	if logger == nil {
		logger = logx.NewNoopLogger()
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router returns the route table
func (s *Server) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(requestLogger(s.logger))

	mux.Get("/healthz", s.handler.Health)

	mux.Get("/api/objects/{id}", s.handler.GetObject)
	mux.Get("/api/metadata", s.handler.ListMetadata)
	mux.Get("/api/metadata/{id}", s.handler.GetMetadata)
	mux.Get("/api/providers/{provider}/objects/{key}", s.handler.GetDirect)

	// Mutating routes share one token bucket.
	mux.Group(func(r chi.Router) {
		r.Use(rateLimit(newLimiter(s.cfg.RateLimit, s.cfg.RateBurst), s.logger))

		r.Post("/api/buckets/{bucket}/objects", s.handler.UploadObject)
		r.Delete("/api/objects/{id}", s.handler.DeleteObject)
		r.Put("/api/metadata/{id}", s.handler.UpdateMetadata)
		r.Post("/api/providers/{provider}/objects", s.handler.UploadDirect)
		r.Delete("/api/providers/{provider}/objects/{key}", s.handler.DeleteDirect)
	})

	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.addr.Store(ln.Addr().String())
	s.running.Store(true)

	s.logger.Info("HTTP server listening", blobx.ArgsToFields("addr", s.Addr())...)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", blobx.ArgsToFields("error", err)...)
		}
		s.running.Store(false)
	}()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("HTTP server shutting down", blobx.ArgsToFields("addr", s.Addr())...)
	return s.srv.Shutdown(ctx)
}

// Addr returns the bound address once started, else the configured one
func (s *Server) Addr() string {
	if addr := s.addr.Load(); addr != "" {
		return addr
	}
	return s.cfg.ListenAddr
}

// Running reports whether the server is serving
func (s *Server) Running() bool { return s.running.Load() }
