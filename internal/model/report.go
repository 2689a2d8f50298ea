package model

import "encoding/json"

// VerificationReport is the outcome of verifying one answer.
// It is created fresh per verification and never mutated afterwards.
type VerificationReport struct {
	OK                  bool       `json:"ok"`                    // No invalid claims and no forced abstention
	VerifiedClaims      int        `json:"verified_claims"`       // total_claims - distinct invalid indices
	TotalClaims         int        `json:"total_claims"`          // Number of claims in the answer
	InvalidClaimIndices []int      `json:"invalid_claim_indices"` // Sorted ascending, de-duplicated
	Reasons             []string   `json:"reasons"`               // Diagnostics in discovery order
	CoverageRatio       float64    `json:"coverage_ratio"`        // verified/total, 0.0 without claims
	SuggestedConfidence Confidence `json:"suggested_confidence"`  // Tier justified by coverage
	MustAbstain         bool       `json:"must_abstain"`          // suggested_confidence == insufficient_evidence
}

// MarshalJSON always encodes list fields as arrays
func (r VerificationReport) MarshalJSON() ([]byte, error) {
	type reportAlias VerificationReport
	alias := reportAlias(r)
	if alias.InvalidClaimIndices == nil {
		alias.InvalidClaimIndices = []int{}
	}
	if alias.Reasons == nil {
		alias.Reasons = []string{}
	}
	return json.Marshal(alias)
}
