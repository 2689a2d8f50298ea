package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mathfoundry/internal/eval"
	"github.com/ppiankov/mathfoundry/internal/worker"
)

var (
	evalOutDir      string
	evalConcurrency int
	evalLimit       int
	evalTimeout     time.Duration
)

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run and score the baseline comparison benchmark",
}

var evalRunCmd = &cobra.Command{
	Use:   "run <queries.jsonl>",
	Short: "Answer every benchmark query and write reviewer rows",
	Long: `Run answers each benchmark query with retrieval and verification and writes:
- s2_rag_verify.jsonl         one row per answered query, rubric fields null
- s0_pure_llm_template.jsonl  blank pure-LLM rows for manual answers

Queries run in parallel; output order follows the input file.

Example:
  mathfoundry eval run eval/benchmark/queries.jsonl
  mathfoundry eval run queries.jsonl --concurrency 8 --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var evalSummarizeCmd = &cobra.Command{
	Use:   "summarize [results-dir]",
	Short: "Aggregate reviewer-scored rows into summary.json",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := evalOutDir
		if len(args) == 1 {
			dir = args[0]
		}
		summary, err := eval.Summarize(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", filepath.Join(dir, eval.SummaryFile))
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.AddCommand(evalRunCmd, evalSummarizeCmd)

	evalCmd.PersistentFlags().StringVar(&evalOutDir, "output-dir", "eval/results", "results directory")
	evalRunCmd.Flags().IntVar(&evalConcurrency, "concurrency", 0, "number of concurrent workers (default concurrency.workers)")
	evalRunCmd.Flags().IntVar(&evalLimit, "limit", 0, "only run the first N queries (0 = all)")
	evalRunCmd.Flags().DurationVar(&evalTimeout, "timeout", 10*time.Minute, "total timeout for the run")
}

func runEval(cmd *cobra.Command, args []string) error {
	file := args[0]

	queries, err := eval.LoadQueries(file)
	if err != nil {
		return err
	}
	if evalLimit > 0 && evalLimit < len(queries) {
		queries = queries[:evalLimit]
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	workers := evalConcurrency
	if workers <= 0 {
		workers = a.cfg.Concurrency.Workers
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  MathFoundry Baseline Comparison\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Queries:      %s (%d)\n", file, len(queries))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", evalOutDir)
	fmt.Fprintf(os.Stderr, "\n")

	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, evalTimeout)
	defer cancel()

	result := worker.NewBatchProcessor(a.pipeline, workers).ProcessQueries(ctx, queries)
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "✗ Some queries failed:\n%v\n\n", result.Err)
	}

	ragPath := filepath.Join(evalOutDir, eval.SystemRAGVerify+".jsonl")
	templatePath := filepath.Join(evalOutDir, eval.TemplateFile)
	if err := eval.WriteJSONL(ragPath, result.RAG); err != nil {
		return fmt.Errorf("write %s: %w", ragPath, err)
	}
	if err := eval.WriteJSONL(templatePath, result.Template); err != nil {
		return fmt.Errorf("write %s: %w", templatePath, err)
	}

	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Run Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Answered:  %d/%d\n", len(result.RAG), len(queries))
	fmt.Fprintf(os.Stderr, "  Rows:      %s\n", ragPath)
	fmt.Fprintf(os.Stderr, "  Template:  %s\n", templatePath)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Next: score the rows, then run 'mathfoundry eval summarize %s'\n", evalOutDir)
	return nil
}
