package model

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the complete MathFoundry configuration
type Config struct {
	DataDir      string            `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	Grounding    GroundingConfig   `mapstructure:"grounding" yaml:"grounding"`
	Arxiv        ArxivConfig       `mapstructure:"arxiv" yaml:"arxiv"`
	HTTP         HTTPConfig        `mapstructure:"http" yaml:"http"`
	Cache        CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Concurrency  ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	RateLimiting RateLimitConfig   `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Server       ServerConfig      `mapstructure:"server" yaml:"server"`
	LLM          LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Log          LogConfig         `mapstructure:"log" yaml:"log"`
}

// GroundingConfig controls answer verification policy
type GroundingConfig struct {
	StrictAbstain    bool `mapstructure:"strict_abstain" yaml:"strict_abstain"`         // Overlay abstention onto answers that fail verification
	MonthlyBudgetUSD int  `mapstructure:"monthly_budget_usd" yaml:"monthly_budget_usd" validate:"gte=0"`
}

// ArxivConfig controls ingestion from the arXiv export API
type ArxivConfig struct {
	PrimaryCategory     string        `mapstructure:"primary_category" yaml:"primary_category" validate:"required"`
	APIURL              string        `mapstructure:"api_url" yaml:"api_url" validate:"required,url"`
	MaxResultsPerIngest int           `mapstructure:"max_results_per_ingest" yaml:"max_results_per_ingest" validate:"min=1,max=2000"`
	MaxRawFiles         int           `mapstructure:"max_raw_files" yaml:"max_raw_files" validate:"min=1"`
	PageSize            int           `mapstructure:"page_size" yaml:"page_size" validate:"min=1,max=2000"`
	CheckpointEvery     int           `mapstructure:"checkpoint_every" yaml:"checkpoint_every" validate:"min=1"`
	StorageBudgetGB     float64       `mapstructure:"storage_budget_gb" yaml:"storage_budget_gb" validate:"gt=0"`
	StopRatio           float64       `mapstructure:"stop_ratio" yaml:"stop_ratio" validate:"gt=0,lte=1"`
	PageDelay           time.Duration `mapstructure:"page_delay" yaml:"page_delay"`
	UserAgent           string        `mapstructure:"user_agent" yaml:"user_agent" validate:"required"`
	RespectRobots       bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	FocusTerms          []string      `mapstructure:"focus_terms" yaml:"focus_terms"`
}

// HTTPConfig controls outbound HTTP behavior
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	HTTPProxy      string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy     string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy        string        `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// CacheConfig controls feed and search caching
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir       string        `mapstructure:"dir" yaml:"dir,omitempty"` // Defaults to <data_dir>/cache
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// ConcurrencyConfig controls worker counts
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers" validate:"min=1"`
}

// RateLimitConfig controls per-host request pacing
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"min=1"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required"`
}

// LLMConfig controls the optional answer-summary provider
type LLMConfig struct {
	Provider       string `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=openai ollama"` // Empty disables the LLM
	Model          string `mapstructure:"model" yaml:"model"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey         string `mapstructure:"api_key" yaml:"-"`
	Timeout        int    `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"` // Seconds
	MaxTokens      int    `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	StrictEvidence bool   `mapstructure:"strict_evidence" yaml:"strict_evidence"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Grounding: GroundingConfig{
			StrictAbstain:    true,
			MonthlyBudgetUSD: 300,
		},
		Arxiv: ArxivConfig{
			PrimaryCategory:     "math.AG",
			APIURL:              "https://export.arxiv.org/api/query",
			MaxResultsPerIngest: 200,
			MaxRawFiles:         48,
			PageSize:            200,
			CheckpointEvery:     2,
			StorageBudgetGB:     400,
			StopRatio:           0.9,
			PageDelay:           3 * time.Second,
			UserAgent:           "MathFoundry/0.1 (research indexing; +https://github.com/ppiankov/mathfoundry)",
			RespectRobots:       true,
			FocusTerms:          []string{"moduli", "intersection theory", "complex algebraic geometry", "abelian variety"},
		},
		HTTP: HTTPConfig{
			Timeout:        60 * time.Second,
			MaxAttempts:    30,
			InitialBackoff: 5 * time.Second,
			MaxBackoff:     180 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   6 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 0.34, // arXiv asks for one request every three seconds
			Burst:             1,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		LLM: LLMConfig{
			Timeout:        30,
			MaxTokens:      600,
			StrictEvidence: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RawDir is where raw arXiv feed pages are saved
func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, "raw")
}

// TopicDir is where harvest JSONL files and checkpoints are written
func (c *Config) TopicDir() string {
	return filepath.Join(c.DataDir, "topic")
}

// IndexPath is the SQLite index location
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "index", "mathfoundry.db")
}

// CacheDir is the disk cache location
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(c.DataDir, "cache")
}
