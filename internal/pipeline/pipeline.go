package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ppiankov/mathfoundry/internal/llm"
	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/validate"
)

// Answer modes
const (
	ModeBrief    = "brief"
	ModeDetailed = "detailed" // Adds an LLM summary when a provider is configured
)

// CandidateLimit is how many ranked candidates a question retrieves
const CandidateLimit = 10

// Searcher is the ranked-candidate provider
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.Reference, error)
}

// QAResult is a final answer with the report that produced it
type QAResult struct {
	Answer       model.Answer
	Verification model.VerificationReport
}

// MarshalJSON writes the answer fields flat with the report under "verification"
func (r QAResult) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Answer)
	if err != nil {
		return nil, err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	if flat["verification"], err = json.Marshal(r.Verification); err != nil {
		return nil, err
	}
	return json.Marshal(flat)
}

// Pipeline answers questions from the index and verifies every answer
type Pipeline struct {
	searcher      Searcher
	summarizer    *llm.Summarizer // nil when disabled
	strictAbstain bool
	logger        *slog.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(searcher Searcher, cfg *model.Config, summarizer *llm.Summarizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		searcher:      searcher,
		summarizer:    summarizer,
		strictAbstain: cfg.Grounding.StrictAbstain,
		logger:        logger,
	}
}

// Search returns ranked candidates for a query
func (p *Pipeline) Search(ctx context.Context, query string, limit int) ([]model.Reference, error) {
	refs, err := p.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return refs, nil
}

// Ask retrieves candidates, drafts a grounded answer and verifies it.
// Without strict abstention the draft is returned as is, report attached.
func (p *Pipeline) Ask(ctx context.Context, query, mode string) (*QAResult, error) {
	candidates, err := p.Search(ctx, query, CandidateLimit)
	if err != nil {
		return nil, err
	}

	draft := AnswerWithGrounding(query, candidates)
	report := validate.Verify(draft)

	answer := draft.Clone()
	if p.strictAbstain {
		answer = ApplyVerification(draft, report)
	}

	if mode == ModeDetailed && !report.MustAbstain && p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, query, answer.References)
		if err != nil {
			p.logger.Warn("LLM summary rejected", "provider", p.summarizer.ProviderName(), "error", err)
		} else if summary != nil {
			answer.AnswerSummary = summary.Text
		}
	}

	return &QAResult{Answer: answer, Verification: report}, nil
}

// Verify checks a caller-built answer
func (p *Pipeline) Verify(answer model.Answer) model.VerificationReport {
	return validate.Verify(answer)
}
