package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/mathfoundry/internal/eval"
	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/pipeline"
	"github.com/ppiankov/mathfoundry/internal/validate"
)

// EvalSearchLimit is the search size recorded in evaluation rows
const EvalSearchLimit = 8

// QA is the question-answering surface a batch runs against
type QA interface {
	Search(ctx context.Context, query string, limit int) ([]model.Reference, error)
	Ask(ctx context.Context, query, mode string) (*pipeline.QAResult, error)
}

// BatchProcessor runs benchmark queries concurrently
type BatchProcessor struct {
	qa          QA
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(qa QA, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		qa:          qa,
		concurrency: concurrency,
	}
}

// BatchResult holds rows in query order. Failed queries have no RAG row
// and their errors are joined in Err.
type BatchResult struct {
	RAG      []eval.RAGRow
	Template []eval.TemplateRow
	Err      error
}

// ProcessQueries searches, answers and re-verifies every query
func (b *BatchProcessor) ProcessQueries(ctx context.Context, queries []eval.Query) *BatchResult {
	jobs := make([]Job[eval.RAGRow], len(queries))
	for i, q := range queries {
		jobs[i] = func(ctx context.Context) (eval.RAGRow, error) {
			return b.runQuery(ctx, q)
		}
	}

	out := &BatchResult{
		RAG:      make([]eval.RAGRow, 0, len(queries)),
		Template: make([]eval.TemplateRow, 0, len(queries)),
	}
	var errs []error
	for i, r := range NewPool[eval.RAGRow](b.concurrency).Run(ctx, jobs) {
		out.Template = append(out.Template, eval.NewTemplateRow(queries[i]))
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("query %v: %w", queries[i].ID, r.Err))
			continue
		}
		out.RAG = append(out.RAG, r.Value)
	}
	out.Err = errors.Join(errs...)
	return out
}

func (b *BatchProcessor) runQuery(ctx context.Context, q eval.Query) (eval.RAGRow, error) {
	hits, err := b.qa.Search(ctx, q.Query, EvalSearchLimit)
	if err != nil {
		return eval.RAGRow{}, err
	}
	res, err := b.qa.Ask(ctx, q.Query, pipeline.ModeBrief)
	if err != nil {
		return eval.RAGRow{}, err
	}

	// Verify the answer as returned, the way an external client would
	report := validate.Verify(res.Answer)

	return eval.RAGRow{
		ID:            q.ID,
		Query:         q.Query,
		System:        eval.SystemRAGVerify,
		Answer:        res.Answer.AnswerSummary,
		Confidence:    string(res.Answer.Confidence),
		Claims:        len(res.Answer.Claims),
		References:    len(res.Answer.References),
		SearchCount:   len(hits),
		VerifyOK:      report.OK,
		CoverageRatio: report.CoverageRatio,
		MustAbstain:   report.MustAbstain,
		Abstained:     report.MustAbstain,
		Notes:         eval.NoteRAGReview,
	}, nil
}
