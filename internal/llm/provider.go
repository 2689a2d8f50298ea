package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/ppiankov/mathfoundry/internal/model"
)

// ErrCitationLeak is returned when a summary cites a work id outside the allowlist
var ErrCitationLeak = errors.New("citation leak")

// maxPromptReferences bounds how many candidates are listed in a prompt
const maxPromptReferences = 10

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes a short answer summary grounded in the request's references
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	Query      string
	References []model.Reference

	// AllowedWorkIDs is the only set of work ids the summary may cite
	AllowedWorkIDs []string

	Prompt    string // Overrides the default prompt when set
	Model     string
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary      string
	CitedWorkIDs []string
	Model        string
	TokensUsed   int
}

// Config holds LLM provider configuration
type Config struct {
	Provider       string // "openai", "ollama" or "" (disabled)
	Model          string
	APIKey         string
	BaseURL        string
	Timeout        int // seconds
	StrictEvidence bool
	MaxTokens      int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      600,
	}
}

// ConfigFromModel converts application config to provider config
func ConfigFromModel(cfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		StrictEvidence: cfg.StrictEvidence,
		MaxTokens:      cfg.MaxTokens,
		HTTPProxy:      httpCfg.HTTPProxy,
		HTTPSProxy:     httpCfg.HTTPSProxy,
		NoProxy:        httpCfg.NoProxy,
	}
}

// BuildPrompt lists the candidate references and the citation rules
func BuildPrompt(query string, refs []model.Reference) string {
	var b strings.Builder
	b.WriteString("You are answering a question about algebraic geometry using ONLY the arXiv papers listed below.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Cite papers only by their work id exactly as written (for example arxiv:2401.00001v1).\n")
	b.WriteString("2. Never cite a work id that is not in the list.\n")
	b.WriteString("3. If the listed papers do not answer the question, say that the indexed evidence is insufficient.\n")
	b.WriteString("4. Describe what the papers study. Do not state theorems they do not mention.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nPapers:\n", query)

	if len(refs) == 0 {
		b.WriteString("(No indexed papers matched)\n")
	}
	for i, ref := range refs {
		if i >= maxPromptReferences {
			fmt.Fprintf(&b, "... and %d more papers\n", len(refs)-maxPromptReferences)
			break
		}
		if ref.Malformed() || ref.WorkID == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", ref.WorkID, ref.Title)
	}

	b.WriteString("\nWrite a 2-3 sentence summary.")
	return b.String()
}

// AllowedWorkIDs collects the work ids of well-formed references
func AllowedWorkIDs(refs []model.Reference) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Malformed() || ref.WorkID == "" || slices.Contains(ids, ref.WorkID) {
			continue
		}
		ids = append(ids, ref.WorkID)
	}
	return ids
}

var workIDPattern = regexp.MustCompile(`arxiv:[^\s,;()\[\]"'<>]+`)

// ExtractWorkIDs returns the distinct arxiv: ids mentioned in text
func ExtractWorkIDs(text string) []string {
	var ids []string
	for _, m := range workIDPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".:!?")
		if m == "arxiv:" || slices.Contains(ids, m) {
			continue
		}
		ids = append(ids, m)
	}
	return ids
}

// CheckCitations fails with ErrCitationLeak on the first cited id outside allowed
func CheckCitations(cited, allowed []string) error {
	for _, id := range cited {
		if !slices.Contains(allowed, id) {
			return fmt.Errorf("%w: cited %s", ErrCitationLeak, id)
		}
	}
	return nil
}
