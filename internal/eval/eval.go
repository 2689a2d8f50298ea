// Package eval reads benchmark queries, writes comparison rows and
// summarizes reviewer-scored results.
package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// System names used as result file stems
const (
	SystemPureLLM   = "s0_pure_llm"
	SystemPlainRAG  = "s1_plain_rag"
	SystemRAGVerify = "s2_rag_verify"
)

// TemplateFile is where blank pure-LLM rows are written for reviewers to fill
const TemplateFile = SystemPureLLM + "_template.jsonl"

// Reviewer placeholder notes
const (
	NoteRAGReview      = "Fill rubric fields after human review."
	NoteTemplateReview = "Paste pure LLM answer here, then score with reviewer rubric."
)

// Query is one benchmark entry. IDs may be strings or numbers.
type Query struct {
	ID    any    `json:"id"`
	Query string `json:"query"`
}

// RAGRow is the retrieval-with-verification result for one query.
// Rubric fields stay nil until a reviewer scores the row.
type RAGRow struct {
	ID                any      `json:"id"`
	Query             string   `json:"query"`
	System            string   `json:"system"`
	Answer            string   `json:"answer"`
	Confidence        string   `json:"confidence"`
	Claims            int      `json:"claims"`
	References        int      `json:"references"`
	SearchCount       int      `json:"search_count"`
	VerifyOK          bool     `json:"verify_ok"`
	CoverageRatio     float64  `json:"coverage_ratio"`
	MustAbstain       bool     `json:"must_abstain"`
	Correctness       *float64 `json:"correctness"`
	CitationPrecision *float64 `json:"citation_precision"`
	Overclaim         *bool    `json:"overclaim"`
	Abstained         bool     `json:"abstained"`
	AbstentionCorrect *bool    `json:"abstention_correct"`
	Notes             string   `json:"notes"`
}

// TemplateRow is a blank pure-LLM row for manual answers
type TemplateRow struct {
	ID                any      `json:"id"`
	Query             string   `json:"query"`
	System            string   `json:"system"`
	Answer            string   `json:"answer"`
	Citations         []string `json:"citations"`
	Correctness       *float64 `json:"correctness"`
	CitationPrecision *float64 `json:"citation_precision"`
	Overclaim         *bool    `json:"overclaim"`
	Abstained         *bool    `json:"abstained"`
	AbstentionCorrect *bool    `json:"abstention_correct"`
	Notes             string   `json:"notes"`
}

// NewTemplateRow returns the blank row for a query
func NewTemplateRow(q Query) TemplateRow {
	return TemplateRow{
		ID:        q.ID,
		Query:     q.Query,
		System:    SystemPureLLM,
		Citations: []string{},
		Notes:     NoteTemplateReview,
	}
}

// LoadQueries reads benchmark queries from a JSONL file
func LoadQueries(path string) ([]Query, error) {
	var queries []Query
	err := readJSONL(path, func(line []byte) error {
		var q Query
		if err := json.Unmarshal(line, &q); err != nil {
			return err
		}
		if strings.TrimSpace(q.Query) == "" {
			return fmt.Errorf("missing query")
		}
		queries = append(queries, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queries, nil
}

// WriteJSONL writes one JSON object per line, creating parent directories
func WriteJSONL[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = file.Close()
			return fmt.Errorf("encode row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush: %w", err)
	}
	return file.Close()
}

func readJSONL(path string, fn func(line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan file: %w", err)
	}
	return nil
}
