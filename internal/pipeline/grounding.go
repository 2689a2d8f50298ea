package pipeline

import (
	"fmt"

	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/validate"
)

// Fixed answer text. Clients match on these strings, so keep them stable.
const (
	SummaryInsufficientEvidence = "Insufficient evidence to answer reliably from current indexed corpus."
	SummaryStartingPoint        = "Here is a citation-grounded starting point from the indexed algebraic-geometry-focused corpus."

	LimitationNoCandidates  = "No relevant indexed candidates were found."
	LimitationScaffold      = "MVP scaffold answer; full passage-level verification not yet enabled."
	LimitationNotVerified   = "Verification threshold not met."
	RefinementTheoremLevel  = "Ask for theorem-level comparison once ingestion and passage indexing expands."
	RefinementNameObject    = "Add a specific theorem/object name (e.g., Picard group, étale cohomology)."
	RefinementNarrowSubarea = "Narrow to algebraic geometry subtopic and include timeframe."
)

// AnswerWithGrounding drafts an answer from ranked candidates.
// Without candidates it returns the fixed insufficient-evidence answer;
// otherwise one direct claim citing the top candidate.
func AnswerWithGrounding(query string, candidates []model.Reference) model.Answer {
	if len(candidates) == 0 {
		return model.Answer{
			AnswerSummary:    SummaryInsufficientEvidence,
			Claims:           []model.Claim{},
			References:       []model.Reference{},
			Confidence:       model.ConfidenceInsufficientEvidence,
			Limitations:      []string{LimitationNoCandidates},
			QueryRefinements: genericRefinements(),
		}
	}

	top := candidates[0].Clone()
	return model.Answer{
		AnswerSummary: SummaryStartingPoint,
		Claims: []model.Claim{
			{
				Text:                fmt.Sprintf("A likely relevant starting reference is '%s'.", top.Title),
				SupportLevel:        model.SupportDirect,
				SupportingCitations: []model.Citation{{WorkID: top.WorkID}},
			},
		},
		References:       []model.Reference{top},
		Confidence:       model.ConfidenceLow,
		Limitations:      []string{LimitationScaffold},
		QueryRefinements: []string{RefinementTheoremLevel},
	}
}

// Finalize verifies a draft and, when verification forces abstention, returns
// a copy downgraded to insufficient_evidence. The draft itself is never modified.
func Finalize(draft model.Answer) (model.Answer, model.VerificationReport) {
	report := validate.Verify(draft)
	return ApplyVerification(draft, report), report
}

// ApplyVerification overlays an abstention outcome onto a copy of the answer.
// Applying it repeatedly never duplicates the limitation.
func ApplyVerification(answer model.Answer, report model.VerificationReport) model.Answer {
	out := answer.Clone()
	if !report.MustAbstain {
		return out
	}

	out.Confidence = model.ConfidenceInsufficientEvidence
	if !out.HasLimitation(LimitationNotVerified) {
		out.Limitations = append(out.Limitations, LimitationNotVerified)
	}
	if len(out.QueryRefinements) == 0 {
		out.QueryRefinements = genericRefinements()
	}
	return out
}

func genericRefinements() []string {
	return []string{RefinementNameObject, RefinementNarrowSubarea}
}
