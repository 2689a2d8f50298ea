package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/ppiankov/mathfoundry/internal/model"
)

func candidate(id, title string) model.Reference {
	ref := model.NewReference(id, title)
	ref.Set("score", 3.2)
	ref.Set("category", "math.AG")
	return ref
}

func TestAnswerWithGrounding_NoCandidates(t *testing.T) {
	answer := AnswerWithGrounding("zzz", nil)

	if answer.Confidence != model.ConfidenceInsufficientEvidence {
		t.Errorf("Expected insufficient_evidence, got %s", answer.Confidence)
	}
	if len(answer.Limitations) != 1 || answer.Limitations[0] != LimitationNoCandidates {
		t.Errorf("Expected exactly one limitation, got %v", answer.Limitations)
	}
	if len(answer.QueryRefinements) != 2 {
		t.Errorf("Expected exactly two refinements, got %v", answer.QueryRefinements)
	}
	if len(answer.Claims) != 0 || len(answer.References) != 0 {
		t.Error("Expected no claims or references")
	}
}

func TestAnswerWithGrounding_TopCandidate(t *testing.T) {
	answer := AnswerWithGrounding("moduli of curves", []model.Reference{
		candidate("arxiv:1", "Moduli of stable curves"),
		candidate("arxiv:2", "Second"),
	})

	if len(answer.Claims) != 1 {
		t.Fatalf("Expected one claim, got %d", len(answer.Claims))
	}
	c := answer.Claims[0]
	if c.Text != "A likely relevant starting reference is 'Moduli of stable curves'." {
		t.Errorf("Unexpected claim text: %s", c.Text)
	}
	if c.SupportLevel != model.SupportDirect {
		t.Errorf("Expected direct support, got %s", c.SupportLevel)
	}
	if len(c.SupportingCitations) != 1 || c.SupportingCitations[0].WorkID != "arxiv:1" {
		t.Errorf("Unexpected citations: %v", c.SupportingCitations)
	}
	if len(answer.References) != 1 || answer.References[0].WorkID != "arxiv:1" {
		t.Errorf("Expected only the top candidate as reference, got %v", answer.References)
	}
	if v, _ := answer.References[0].Get("score"); v != 3.2 {
		t.Errorf("Expected extra fields to pass through, got %v", v)
	}
	if answer.Confidence != model.ConfidenceLow {
		t.Errorf("Expected low confidence, got %s", answer.Confidence)
	}
	if len(answer.Limitations) != 1 || len(answer.QueryRefinements) != 1 {
		t.Errorf("Expected one limitation and one refinement, got %v / %v", answer.Limitations, answer.QueryRefinements)
	}
}

func TestFinalize_SupportedDraftUnchanged(t *testing.T) {
	draft := AnswerWithGrounding("q", []model.Reference{candidate("arxiv:1", "T")})

	final, report := Finalize(draft)
	if !report.OK || report.MustAbstain {
		t.Fatalf("Expected ok report, got %+v", report)
	}
	if final.Confidence != model.ConfidenceLow {
		t.Errorf("Expected draft confidence preserved, got %s", final.Confidence)
	}
	if final.HasLimitation(LimitationNotVerified) {
		t.Error("Expected no verification limitation")
	}
}

func TestFinalize_AbstainsWithoutCandidates(t *testing.T) {
	draft := AnswerWithGrounding("q", nil)

	final, report := Finalize(draft)
	if !report.MustAbstain {
		t.Fatal("Expected abstention for zero claims")
	}
	if final.Confidence != model.ConfidenceInsufficientEvidence {
		t.Errorf("Expected insufficient_evidence, got %s", final.Confidence)
	}
	if len(final.Limitations) != 2 || final.Limitations[1] != LimitationNotVerified {
		t.Errorf("Expected verification limitation appended, got %v", final.Limitations)
	}
	if len(draft.Limitations) != 1 {
		t.Errorf("Expected draft to be untouched, got %v", draft.Limitations)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	draft := model.Answer{
		AnswerSummary: "s",
		Claims:        []model.Claim{{Text: "c", SupportLevel: model.SupportDirect}},
		References:    []model.Reference{candidate("arxiv:1", "T")},
		Confidence:    model.ConfidenceHigh,
	}

	once, _ := Finalize(draft)
	twice, report := Finalize(once)

	if !report.MustAbstain {
		t.Fatal("Expected abstention")
	}
	count := 0
	for _, l := range twice.Limitations {
		if l == LimitationNotVerified {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected limitation once, got %d in %v", count, twice.Limitations)
	}
	if len(twice.QueryRefinements) != 2 {
		t.Errorf("Expected generic refinements, got %v", twice.QueryRefinements)
	}
	a, _ := json.Marshal(once)
	b, _ := json.Marshal(twice)
	if string(a) != string(b) {
		t.Errorf("Expected second finalize to be a no-op:\n%s\n%s", a, b)
	}
}

func TestFinalize_KeepsExistingRefinements(t *testing.T) {
	draft := model.Answer{
		Confidence:       model.ConfidenceMedium,
		QueryRefinements: []string{"Be specific."},
	}

	final, _ := Finalize(draft)
	if len(final.QueryRefinements) != 1 || final.QueryRefinements[0] != "Be specific." {
		t.Errorf("Expected existing refinements kept, got %v", final.QueryRefinements)
	}
}
