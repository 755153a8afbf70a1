// Package server exposes the runner over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/history"
	"github.com/ryosukesatoh/arxiv-push/internal/logger"
	"github.com/ryosukesatoh/arxiv-push/internal/runner"
)

// Searcher is the part of the runner the API drives.
type Searcher interface {
	Start(req runner.Request) (string, error)
	Status() runner.State
	Stop() string
	Results() (runner.State, error)
}

// HistoryReader lists finished runs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

const shutdownTimeout = 5 * time.Second

// Server serves the search API.
type Server struct {
	searcher Searcher
	history  HistoryReader
	defaults runner.Request
	now      func() time.Time
	logger   *zap.Logger
	engine   *gin.Engine
}

type Option func(*Server)

// WithHistory enables GET /api/history.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logger.OrNop(l) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the router. defaults supplies the window, cap and language for
// search requests that omit them.
func New(searcher Searcher, defaults runner.Request, opts ...Option) *Server {
	s := &Server{
		searcher: searcher,
		defaults: defaults,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(loggerMiddleware(s.logger))

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/search", s.handleSearch)
		api.GET("/status", s.handleStatus)
		api.POST("/stop", s.handleStop)
		api.GET("/stop", s.handleStop)
		api.GET("/download/:format", s.handleDownload)
		api.GET("/history", s.handleHistory)
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
