package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holmes-py/JS-DeepLens/internal/config"
	"github.com/holmes-py/JS-DeepLens/internal/service"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

// Server exposes the service over HTTP for the browser extension and dashboard.
type Server struct {
	cfg     config.ServerConfig
	svc     *service.Service
	logger  zerolog.Logger
	handler http.Handler
}

// New builds the router. Nothing listens until Run is called.
func New(cfg config.ServerConfig, svc *service.Service, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger.With().Str("component", "HTTPServer").Logger(),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/log", s.handleLog)
	r.Post("/analyze", s.handleAnalyze)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)

		r.Get("/config/scope", s.handleGetScope)
		r.Post("/config/scope", s.handleSetScope)

		r.Get("/patterns/available", s.handleAvailablePatterns)
		r.Get("/patterns/selected", s.handleSelectedPatterns)
		r.Post("/patterns/selected", s.handleSelectPatterns)

		r.Get("/rescan", s.handleRescanStatus)
		r.Post("/rescan", s.handleStartRescan)

		r.Get("/findings", s.handleFindings)
		r.Post("/export", s.handleExport)
		r.Get("/script/{hash}", s.handleScript)
		r.Post("/analyze-ast/{id}", s.handleAnalyzeAST)

		r.Get("/llm-prompt/{id}", s.handleLLMPrompt)
		r.Post("/analyze-llm/{id}", s.handleAnalyzeLLM)
		r.Post("/analyze-js-ast-llm/{id}", s.handleAnalyzeLLMWithAST)
		r.Post("/analyze-llm-batch", s.handleAnalyzeLLMBatch)
	})
	return r
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		event := s.logger.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}
	<-errCh
	return nil
}
