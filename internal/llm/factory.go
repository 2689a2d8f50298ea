package llm

import (
	"fmt"
	"strings"
)

// Ollama serves an OpenAI-compatible API under /v1
const (
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
	DefaultOllamaModel   = "llama3.1"
	ollamaAPIKey         = "ollama"
)

// NewProvider creates a provider from configuration; an empty provider disables the LLM
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return NewOpenAIProvider("openai", config), nil

	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = DefaultOllamaBaseURL
		}
		if config.Model == "" {
			config.Model = DefaultOllamaModel
		}
		if config.APIKey == "" {
			config.APIKey = ollamaAPIKey
		}
		return NewOpenAIProvider("ollama", config), nil

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}
