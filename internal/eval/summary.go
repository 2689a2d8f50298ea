package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
)

// SummaryFile is the summary written next to the result files
const SummaryFile = "summary.json"

// Systems lists the compared systems in report order
var Systems = []string{SystemPureLLM, SystemPlainRAG, SystemRAGVerify}

// SystemSummary aggregates reviewer scores for one system.
// Rates are nil when no row carries the underlying field.
type SystemSummary struct {
	Count                 int      `json:"count"`
	MeanCorrectness       *float64 `json:"mean_correctness"`
	MeanCitationPrecision *float64 `json:"mean_citation_precision"`
	OverclaimRate         *float64 `json:"overclaim_rate"`
	AbstentionCorrectRate *float64 `json:"abstention_correct_rate"`
}

// MarshalJSON writes only the count for systems without results
func (s SystemSummary) MarshalJSON() ([]byte, error) {
	if s.Count == 0 {
		return json.Marshal(struct {
			Count int `json:"count"`
		}{0})
	}
	type summaryAlias SystemSummary
	return json.Marshal(summaryAlias(s))
}

// Summary maps system name to its aggregate
type Summary map[string]SystemSummary

// Summarize reads <dir>/<system>.jsonl for every system and writes <dir>/summary.json.
// Missing result files count as empty.
func Summarize(dir string) (Summary, error) {
	summary := make(Summary, len(Systems))
	for _, system := range Systems {
		rows, err := loadRows(filepath.Join(dir, system+".jsonl"))
		if err != nil {
			return nil, err
		}
		summary[system] = SummarizeRows(rows)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), data, 0644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	return summary, nil
}

// SummarizeRows aggregates scored rows of one system
func SummarizeRows(rows []map[string]any) SystemSummary {
	s := SystemSummary{Count: len(rows)}
	if len(rows) == 0 {
		return s
	}

	var corr, citp []float64
	overclaim := 0
	abstained, abstainedOK := 0, 0
	for _, r := range rows {
		if v, ok := number(r["correctness"]); ok {
			corr = append(corr, v)
		}
		if v, ok := number(r["citation_precision"]); ok {
			citp = append(citp, v)
		}
		if truthy(r["overclaim"]) {
			overclaim++
		}
		if v, present := r["abstained"]; present && v != nil {
			abstained++
			if truthy(r["abstention_correct"]) {
				abstainedOK++
			}
		}
	}

	s.MeanCorrectness = mean(corr)
	s.MeanCitationPrecision = mean(citp)
	s.OverclaimRate = ratio(overclaim, len(rows))
	s.AbstentionCorrectRate = ratio(abstainedOK, abstained)
	return s
}

func loadRows(path string) ([]map[string]any, error) {
	var rows []map[string]any
	err := readJSONL(path, func(line []byte) error {
		var row map[string]any
		if err := json.Unmarshal(line, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return rows, err
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// truthy treats non-zero numbers, true and non-empty strings as set
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return false
	}
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return round4(sum / float64(len(xs)))
}

func ratio(n, d int) *float64 {
	if d == 0 {
		return nil
	}
	return round4(float64(n) / float64(d))
}

func round4(v float64) *float64 {
	r := math.Round(v*1e4) / 1e4
	return &r
}
