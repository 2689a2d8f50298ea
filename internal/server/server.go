// Package server exposes search, question answering and verification over HTTP
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/pipeline"
)

//go:embed static/index.html
var indexHTML []byte

const shutdownTimeout = 10 * time.Second

// QA is the question-answering backend the handlers call
type QA interface {
	Search(ctx context.Context, query string, limit int) ([]model.Reference, error)
	Ask(ctx context.Context, query, mode string) (*pipeline.QAResult, error)
	Verify(answer model.Answer) model.VerificationReport
}

// PaperCounter reports the index size for /health
type PaperCounter interface {
	Count(ctx context.Context) (int, error)
}

// Server is the MathFoundry HTTP API
type Server struct {
	cfg     *model.Config
	qa      QA
	papers  PaperCounter // optional
	metrics *Metrics
	logger  *slog.Logger
	engine  *gin.Engine
}

// New creates a server with all routes registered
func New(cfg *model.Config, qa QA, papers PaperCounter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		qa:      qa,
		papers:  papers,
		metrics: NewMetrics(),
		logger:  logger,
		engine:  gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery(), requestID(), accessLog(s.logger, s.metrics))

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	s.engine.POST("/search", s.handleSearch)
	s.engine.POST("/qa", s.handleQA)
	s.engine.POST("/qa/verify", s.handleVerify)
}

// Handler returns the routed engine
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
