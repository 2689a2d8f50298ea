package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/score"
)

// Answer-level diagnostics. They never invalidate a claim on their own.
const (
	ReasonNoReferences = "claims exist but references list is empty"
	ReasonOverstated   = "declared confidence appears overstated for verification ratio"
)

// Verifier checks that every claim of an answer is adequately and consistently cited.
// It holds no state; one Verifier may be shared by any number of goroutines.
type Verifier struct{}

// NewVerifier creates a new verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify verifies an answer with a shared zero-value verifier
func Verify(answer model.Answer) model.VerificationReport {
	return NewVerifier().Verify(answer)
}

// Verify produces a verification report. It never fails: malformed input
// surfaces as invalid claims or diagnostics in the report.
func (v *Verifier) Verify(answer model.Answer) model.VerificationReport {
	reasons := []string{}
	invalid := make(map[int]struct{})

	referenceIDs := collectReferenceIDs(answer.References)

	if len(answer.Claims) > 0 && len(referenceIDs) == 0 {
		reasons = append(reasons, ReasonNoReferences)
	}
	if !answer.Confidence.Valid() {
		reasons = append(reasons, fmt.Sprintf("answer has invalid confidence '%s'", answer.Confidence))
	}

	for i, claim := range answer.Claims {
		claimReasons, ok := v.checkClaim(i, claim, referenceIDs)
		reasons = append(reasons, claimReasons...)
		if !ok {
			invalid[i] = struct{}{}
		}
	}

	indices := make([]int, 0, len(invalid))
	for i := range invalid {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	total := len(answer.Claims)
	verified := max(0, total-len(indices))
	coverage := score.Coverage(verified, total)
	suggested := score.ConfidenceFor(coverage)
	mustAbstain := score.MustAbstain(suggested)

	if total > 0 && answer.Confidence.Valid() && score.Overstated(answer.Confidence, coverage) {
		reasons = append(reasons, ReasonOverstated)
	}

	return model.VerificationReport{
		OK:                  len(indices) == 0 && !mustAbstain,
		VerifiedClaims:      verified,
		TotalClaims:         total,
		InvalidClaimIndices: indices,
		Reasons:             reasons,
		CoverageRatio:       coverage,
		SuggestedConfidence: suggested,
		MustAbstain:         mustAbstain,
	}
}

// checkClaim returns the claim's diagnostics and whether it is still valid
func (v *Verifier) checkClaim(i int, claim model.Claim, referenceIDs map[string]struct{}) ([]string, bool) {
	var reasons []string
	valid := true

	if !claim.SupportLevel.Valid() {
		valid = false
		reasons = append(reasons, fmt.Sprintf("claim[%d] has invalid support_level '%s'", i, claim.SupportLevel))
	}

	if len(claim.SupportingCitations) == 0 {
		valid = false
		reasons = append(reasons, fmt.Sprintf("claim[%d] has no supporting citations", i))
		return reasons, valid
	}

	seen := make(map[string]struct{}, len(claim.SupportingCitations))
	for _, citation := range claim.SupportingCitations {
		id := strings.TrimSpace(citation.WorkID)
		if id == "" {
			valid = false
			reasons = append(reasons, fmt.Sprintf("claim[%d] has empty citation work_id", i))
			continue
		}

		if _, dup := seen[id]; dup {
			reasons = append(reasons, fmt.Sprintf("claim[%d] contains duplicate citation '%s'", i, id))
		}
		seen[id] = struct{}{}

		if len(referenceIDs) > 0 {
			if _, ok := referenceIDs[id]; !ok {
				valid = false
				reasons = append(reasons, fmt.Sprintf("claim[%d] cites work_id '%s' not present in references[]", i, id))
			}
		}
	}

	return reasons, valid
}

// collectReferenceIDs returns the trimmed, non-empty work ids of all record references
func collectReferenceIDs(refs []model.Reference) map[string]struct{} {
	ids := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if ref.Malformed() {
			continue
		}
		if id := strings.TrimSpace(ref.WorkID); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}
