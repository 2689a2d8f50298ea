package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/mathfoundry/internal/cache"
	"github.com/ppiankov/mathfoundry/internal/index"
	"github.com/ppiankov/mathfoundry/internal/llm"
	"github.com/ppiankov/mathfoundry/internal/logging"
	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/pipeline"
	"github.com/ppiankov/mathfoundry/internal/worker"
)

// app bundles the components most commands share
type app struct {
	cfg      *model.Config
	logger   *slog.Logger
	store    *index.Store
	searcher *pipeline.CachedSearcher // nil when caching is disabled
	pipeline *pipeline.Pipeline
}

// newApp loads config and opens the index
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newAppWithConfig(cfg)
}

func newAppWithConfig(cfg *model.Config) (*app, error) {
	logCfg := cfg.Log
	if verbose {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg, os.Stderr)

	store, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, err
	}

	var searcher pipeline.Searcher = store
	var cached *pipeline.CachedSearcher
	if cfg.Cache.Enabled {
		cached = pipeline.NewCachedSearcher(store, cache.NewMemoryCache(cfg.Cache.MemoryTTL, 2*cfg.Cache.MemoryTTL), cfg.Cache.MemoryTTL)
		searcher = cached
	}

	summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if summarizer.IsEnabled() {
		logger.Debug("LLM summaries enabled", "provider", summarizer.ProviderName())
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		searcher: cached,
		pipeline: pipeline.NewPipeline(searcher, cfg, summarizer, logger),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// indexFile indexes one file and drops cached search results
func (a *app) indexFile(ctx context.Context, path string) (int, error) {
	n, err := a.store.IndexFile(ctx, path)
	if err != nil {
		return 0, err
	}
	a.invalidateSearches()
	return n, nil
}

func (a *app) invalidateSearches() {
	if a.searcher == nil {
		return
	}
	if err := a.searcher.Invalidate(); err != nil {
		a.logger.Warn("Search cache invalidation failed", "error", err)
	}
}

// watchRaw indexes new raw files until ctx is cancelled, dropping cached
// search results after each one
func (a *app) watchRaw(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.RawDir(), 0755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	return a.store.Watch(ctx, a.cfg.RawDir(), a.logger, func(string, int) {
		a.invalidateSearches()
	})
}

// newIngester wires the arXiv fetcher with the per-host rate limiter
func newIngester(cfg *model.Config, logger *slog.Logger) *pipeline.Ingester {
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst)
	fetcher := pipeline.NewFetcherFromConfig(cfg, pipeline.WithLimiter(limiter))
	return pipeline.NewIngester(fetcher, cfg, logger)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
