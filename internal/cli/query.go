package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/pipeline"
	"github.com/ppiankov/mathfoundry/internal/server"
	"github.com/ppiankov/mathfoundry/internal/validate"
)

var (
	searchLimit int
	askMode     string
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank indexed papers for a query",
	Example: `  mathfoundry search "moduli of stable curves"
  mathfoundry search intersection theory --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		query := strings.Join(args, " ")
		results, err := a.pipeline.Search(cmd.Context(), query, searchLimit)
		if err != nil {
			return err
		}
		if results == nil {
			results = []model.Reference{}
		}
		return printJSON(cmd.OutOrStdout(), server.SearchResponse{Query: query, Count: len(results), Results: results})
	},
}

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the index with verification",
	Long: `Ask retrieves candidate papers, drafts a grounded answer and verifies it.
Answers that fail verification abstain (unless grounding.strict_abstain is false).

In detailed mode a configured LLM rewrites the summary; claims and references
never change, and summaries citing papers outside the candidates are rejected.`,
	Example: `  mathfoundry ask "foundational references for etale cohomology"
  mathfoundry ask "moduli of abelian varieties" --mode detailed`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		res, err := a.pipeline.Ask(cmd.Context(), strings.Join(args, " "), askMode)
		if err != nil {
			return err
		}
		if verbose {
			v := res.Verification
			fmt.Fprintf(os.Stderr, "✓ Verified %d/%d claims (coverage %.2f, suggested %s, abstain %v)\n",
				v.VerifiedClaims, v.TotalClaims, v.CoverageRatio, v.SuggestedConfidence, v.MustAbstain)
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [answer.json]",
	Short: "Verify a grounded answer read from a file or stdin",
	Long: `Verify checks a grounded answer JSON document and prints the verification report.
Reads stdin when no file (or "-") is given. The document may be the answer itself
or an object with the answer under "answer".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open answer: %w", err)
			}
			defer func() { _ = f.Close() }()
			r = f
		}

		answer, err := readAnswer(r)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), validate.Verify(answer))
	},
}

// readAnswer accepts either a bare answer or {"answer": {...}}
func readAnswer(r io.Reader) (model.Answer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Answer{}, fmt.Errorf("read answer: %w", err)
	}

	var envelope struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return model.Answer{}, fmt.Errorf("decode answer: %w", err)
	}
	if len(envelope.Answer) > 0 && string(envelope.Answer) != "null" {
		data = envelope.Answer
	}

	var answer model.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return model.Answer{}, fmt.Errorf("decode answer: %w", err)
	}
	return answer, nil
}

func init() {
	rootCmd.AddCommand(searchCmd, askCmd, verifyCmd)

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", pipeline.CandidateLimit, "maximum results (1-50)")
	askCmd.Flags().StringVar(&askMode, "mode", pipeline.ModeBrief, "answer mode: brief or detailed")
}
