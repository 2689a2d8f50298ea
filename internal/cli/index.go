package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var indexWatch bool

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [file...]",
	Short: "Index raw feed pages and harvest files",
	Long: `Index loads arXiv Atom pages (arxiv_*.xml) and harvest JSONL files into the
SQLite index. Without arguments it indexes every raw page under <data_dir>/raw.

With --watch it keeps running and indexes new files as they appear.

Example:
  mathfoundry index
  mathfoundry index data/topic/math_ag.jsonl
  mathfoundry index --watch`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "keep indexing new files in the raw directory")
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signalContext()
	defer stop()

	total := 0
	if len(args) == 0 {
		n, err := a.store.IndexDir(ctx, a.cfg.RawDir())
		if err != nil {
			return err
		}
		total = n
	}
	for _, path := range args {
		n, err := a.store.IndexFile(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d papers\n", path, n)
		total += n
	}

	count, err := a.store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Indexed %d papers (%d in index)\n", total, count)

	if !indexWatch {
		return nil
	}
	return a.watchRaw(ctx)
}
