package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/mathfoundry/internal/model"
)

// Summary is an accepted LLM answer summary
type Summary struct {
	Text         string   `json:"text"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	CitedWorkIDs []string `json:"cited_work_ids"`
	TokensUsed   int      `json:"tokens_used"`
}

// Summarizer produces optional summaries. It never touches claims or references.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer; a disabled provider yields a no-op summarizer
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// NewSummarizerWithProvider wraps an existing provider
func NewSummarizerWithProvider(provider Provider, config Config) *Summarizer {
	return &Summarizer{provider: provider, config: config}
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary summarizes the references for a query. With strict evidence,
// a summary citing an id outside the references fails with ErrCitationLeak.
// A disabled summarizer returns nil, nil.
func (s *Summarizer) GenerateSummary(ctx context.Context, query string, refs []model.Reference) (*Summary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	allowed := AllowedWorkIDs(refs)
	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Query:          query,
		References:     refs,
		AllowedWorkIDs: allowed,
		Model:          s.config.Model,
		MaxTokens:      s.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	if resp == nil || resp.Summary == "" {
		return nil, fmt.Errorf("summarize: empty response from %s", s.provider.Name())
	}

	if s.config.StrictEvidence {
		if err := CheckCitations(resp.CitedWorkIDs, allowed); err != nil {
			return nil, err
		}
	}

	cited := resp.CitedWorkIDs
	if cited == nil {
		cited = []string{}
	}
	return &Summary{
		Text:         resp.Summary,
		Provider:     s.provider.Name(),
		Model:        resp.Model,
		CitedWorkIDs: cited,
		TokensUsed:   resp.TokensUsed,
	}, nil
}
