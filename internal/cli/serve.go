package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/mathfoundry/internal/pipeline"
	"github.com/ppiankov/mathfoundry/internal/server"
)

var (
	serveAddr        string
	serveWatch       bool
	serveIngestEvery time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve starts the HTTP API:
- GET  /            minimal web UI
- GET  /health      configuration and index size
- POST /search      ranked candidates
- POST /qa          grounded, verified answer
- POST /qa/verify   verify a caller-built answer
- GET  /metrics     Prometheus metrics

Example:
  mathfoundry serve --addr :8000
  mathfoundry serve --watch --ingest-every 30m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "index new raw files as they appear")
	serveCmd.Flags().DurationVar(&serveIngestEvery, "ingest-every", 0, "also ingest a fresh arXiv slice on this interval (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signalContext()
	defer stop()

	n, err := a.store.IndexDir(ctx, a.cfg.RawDir())
	if err != nil {
		return fmt.Errorf("index raw files: %w", err)
	}
	a.logger.Info("Index ready", "indexed", n, "dir", a.cfg.RawDir())

	srv := server.New(a.cfg, a.pipeline, a.store, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, addr)
	})

	if serveWatch {
		g.Go(func() error {
			return a.watchRaw(gctx)
		})
	}

	if serveIngestEvery > 0 {
		ingester := newIngester(a.cfg, a.logger)
		g.Go(func() error {
			return ingester.Loop(gctx, serveIngestEvery, func(res *pipeline.SliceResult) {
				if serveWatch {
					return // the watcher indexes the new file
				}
				indexSlice(gctx, a, res)
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// indexSlice indexes a freshly saved raw page; failures are logged only
func indexSlice(ctx context.Context, a *app, res *pipeline.SliceResult) {
	n, err := a.indexFile(ctx, res.Path)
	if err != nil {
		a.logger.Error("Index slice failed", "path", res.Path, "error", err)
		return
	}
	a.logger.Info("Indexed slice", "path", res.Path, "papers", n)
}
