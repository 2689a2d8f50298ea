package model

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// Confidence is the overall confidence tier of an answer
type Confidence string

const (
	ConfidenceHigh                 Confidence = "high"
	ConfidenceMedium               Confidence = "medium"
	ConfidenceLow                  Confidence = "low"
	ConfidenceInsufficientEvidence Confidence = "insufficient_evidence"
)

// Valid reports whether the confidence is one of the four recognized tiers
func (c Confidence) Valid() bool {
	return c.Rank() >= 0
}

// Rank orders tiers from insufficient_evidence (0) to high (3); unknown tiers rank -1
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceInsufficientEvidence:
		return 0
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return -1
	}
}

// Reference is a retrieved candidate document attached to an answer.
// Fields other than work_id and title are kept in Extra and passed through untouched.
type Reference struct {
	WorkID string
	Title  string
	Extra  map[string]any

	raw json.RawMessage // original bytes when the entry was not a JSON object
}

// NewReference creates a reference with an empty extension map
func NewReference(workID, title string) Reference {
	return Reference{WorkID: workID, Title: title, Extra: map[string]any{}}
}

// Malformed reports whether the reference was decoded from a non-object entry
func (r Reference) Malformed() bool {
	return r.raw != nil
}

// Set stores an extension field
func (r *Reference) Set(key string, value any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = value
}

// Get returns an extension field
func (r Reference) Get(key string) (any, bool) {
	v, ok := r.Extra[key]
	return v, ok
}

// Clone returns a copy that shares no maps with the receiver
func (r Reference) Clone() Reference {
	out := r
	if r.Extra != nil {
		out.Extra = maps.Clone(r.Extra)
	}
	if r.raw != nil {
		out.raw = slices.Clone(r.raw)
	}
	return out
}

// MarshalJSON encodes the reference as one flat object
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}

	out := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = v
	}
	// A non-string work_id decoded into Extra is written back as-is
	if _, clash := out["work_id"]; !clash || r.WorkID != "" {
		out["work_id"] = r.WorkID
	}
	if r.Title != "" {
		out["title"] = r.Title
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an object entry; any other JSON value is kept as a malformed reference
func (r *Reference) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*r = Reference{raw: slices.Clone(trimmed)}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	fields := make(map[string]any)
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	ref := Reference{Extra: fields}
	if s, ok := fields["work_id"].(string); ok {
		ref.WorkID = s
		delete(fields, "work_id")
	}
	if s, ok := fields["title"].(string); ok {
		ref.Title = s
		delete(fields, "title")
	}
	*r = ref
	return nil
}

// Answer is a grounded answer: claims with citations plus the references they cite
type Answer struct {
	AnswerSummary    string      `json:"answer_summary"`
	Claims           []Claim     `json:"claims"`
	References       []Reference `json:"references"`
	Confidence       Confidence  `json:"confidence"`
	Limitations      []string    `json:"limitations"`
	QueryRefinements []string    `json:"query_refinements"`
}

type answerAlias Answer

// MarshalJSON always encodes list fields as arrays
func (a Answer) MarshalJSON() ([]byte, error) {
	alias := answerAlias(a.Clone())
	return json.Marshal(alias)
}

// UnmarshalJSON defaults confidence to insufficient_evidence when the field is absent
func (a *Answer) UnmarshalJSON(data []byte) error {
	alias := answerAlias{Confidence: ConfidenceInsufficientEvidence}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*a = Answer(alias)
	return nil
}

// Clone returns a deep copy; list fields of the copy are never nil
func (a Answer) Clone() Answer {
	out := Answer{
		AnswerSummary:    a.AnswerSummary,
		Confidence:       a.Confidence,
		Claims:           make([]Claim, len(a.Claims)),
		References:       make([]Reference, len(a.References)),
		Limitations:      append([]string{}, a.Limitations...),
		QueryRefinements: append([]string{}, a.QueryRefinements...),
	}
	for i, c := range a.Claims {
		c.SupportingCitations = append([]Citation{}, c.SupportingCitations...)
		out.Claims[i] = c
	}
	for i, r := range a.References {
		out.References[i] = r.Clone()
	}
	return out
}

// HasLimitation reports whether the exact limitation text is already present
func (a Answer) HasLimitation(text string) bool {
	return slices.Contains(a.Limitations, text)
}
