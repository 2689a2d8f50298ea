package model

import "encoding/json"

// Citation points a claim at a source work, optionally at one passage of it
type Citation struct {
	WorkID    string `json:"work_id"`              // Stable external key (e.g., "arxiv:2401.01234v1")
	PassageID string `json:"passage_id,omitempty"` // Passage within the work (e.g., "arxiv:2401.01234v1#p0")
}

// Claim represents an atomic assertion in a grounded answer
type Claim struct {
	Text                string       `json:"text"`
	SupportLevel        SupportLevel `json:"support_level"`
	SupportingCitations []Citation   `json:"supporting_citations"`
}

// UnmarshalJSON defaults support_level to direct when the field is absent
func (c *Claim) UnmarshalJSON(data []byte) error {
	type claimAlias Claim
	alias := claimAlias{SupportLevel: SupportDirect}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Claim(alias)
	return nil
}

// MarshalJSON always encodes supporting_citations as an array
func (c Claim) MarshalJSON() ([]byte, error) {
	type claimAlias Claim
	alias := claimAlias(c)
	if alias.SupportingCitations == nil {
		alias.SupportingCitations = []Citation{}
	}
	return json.Marshal(alias)
}

// SupportLevel describes how directly the citations back a claim
type SupportLevel string

const (
	SupportDirect   SupportLevel = "direct"   // Cited work states the claim
	SupportIndirect SupportLevel = "indirect" // Cited work implies or motivates the claim
)

// Valid reports whether the support level is one of the recognized values
func (s SupportLevel) Valid() bool {
	switch s {
	case SupportDirect, SupportIndirect:
		return true
	default:
		return false
	}
}
