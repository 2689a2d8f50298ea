package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mathfoundry/internal/logging"
	"github.com/ppiankov/mathfoundry/internal/pipeline"
)

var (
	ingestEvery   time.Duration
	ingestNoIndex bool

	harvestName     string
	harvestQuery    string
	harvestFocus    bool
	harvestMaxPages int
	harvestTarget   int
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Save the newest arXiv page for the primary category",
	Long: `Ingest fetches the most recently updated papers of arxiv.primary_category,
saves the raw Atom page under <data_dir>/raw, prunes old pages beyond
arxiv.max_raw_files and indexes the new page.

With --every it repeats on that interval (minimum 1m) until interrupted.

Example:
  mathfoundry ingest
  mathfoundry ingest --every 30m`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Page through an arXiv query into a resumable JSONL corpus",
	Long: `Harvest pages through an arXiv query and appends papers to
<data_dir>/topic/<name>.jsonl, writing <name>_checkpoint.json as it goes.
Re-running with the same name and query resumes from the checkpoint.

Stops on an empty page, --max-pages, --target, or when the data directory
reaches arxiv.storage_budget_gb * arxiv.stop_ratio.

Example:
  mathfoundry harvest --name math_ag --max-pages 10
  mathfoundry harvest --focus --name ag_focus --target 5000`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(ingestCmd, harvestCmd)

	ingestCmd.Flags().DurationVar(&ingestEvery, "every", 0, "repeat on this interval (0 runs once)")
	ingestCmd.Flags().BoolVar(&ingestNoIndex, "no-index", false, "save raw pages without indexing them")

	harvestCmd.Flags().StringVar(&harvestName, "name", "math_ag", "output name under the topic directory")
	harvestCmd.Flags().StringVar(&harvestQuery, "query", "", "arXiv search query (default cat:<primary_category>)")
	harvestCmd.Flags().BoolVar(&harvestFocus, "focus", false, "restrict to arxiv.focus_terms")
	harvestCmd.Flags().IntVar(&harvestMaxPages, "max-pages", 0, "stop after this many pages (0 = unlimited)")
	harvestCmd.Flags().IntVar(&harvestTarget, "target", 0, "stop once this many papers are kept (0 = unlimited)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	if ingestNoIndex {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ingester := newIngester(cfg, logging.New(cfg.Log, os.Stderr))
		if ingestEvery > 0 {
			return ingester.Loop(ctx, ingestEvery, nil)
		}
		res, err := ingester.IngestSlice(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ingester := newIngester(a.cfg, a.logger)
	if ingestEvery > 0 {
		return ingester.Loop(ctx, ingestEvery, func(res *pipeline.SliceResult) {
			indexSlice(ctx, a, res)
		})
	}

	res, err := ingester.IngestSlice(ctx)
	if err != nil {
		return err
	}
	n, err := a.indexFile(ctx, res.Path)
	if err != nil {
		return fmt.Errorf("index slice: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Saved %s (%d bytes, %d old pages pruned, %d papers indexed)\n", res.Path, res.Bytes, res.Deleted, n)
	return printJSON(cmd.OutOrStdout(), res)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, os.Stderr)

	query := harvestQuery
	if query == "" {
		query = "cat:" + cfg.Arxiv.PrimaryCategory
	}
	if harvestFocus {
		query = pipeline.FocusQuery(cfg.Arxiv.PrimaryCategory, cfg.Arxiv.FocusTerms)
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Fprintf(os.Stderr, "Harvesting %q into %s/%s.jsonl\n", query, cfg.TopicDir(), harvestName)

	res, err := newIngester(cfg, logger).Harvest(ctx, pipeline.HarvestOptions{
		Name:     harvestName,
		Query:    query,
		MaxPages: harvestMaxPages,
		Target:   harvestTarget,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ Kept %d papers over %d pages (stopped: %s)\n", res.Kept, res.PagesDone, res.StopReason)
	return printJSON(cmd.OutOrStdout(), res)
}
