package eval

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.jsonl")
	writeFile(t, path, `{"id": "q1", "query": "What is a stable curve?"}

{"id": 2, "query": "Define the Picard group."}
`)

	queries, err := LoadQueries(path)
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("Expected 2 queries, got %d", len(queries))
	}
	if queries[0].ID != "q1" {
		t.Errorf("Expected string id q1, got %v", queries[0].ID)
	}
	if queries[1].ID != 2.0 {
		t.Errorf("Expected numeric id 2, got %v", queries[1].ID)
	}
}

func TestLoadQueries_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadQueries(filepath.Join(dir, "missing.jsonl")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.jsonl")
	writeFile(t, bad, "{\"id\":1,\"query\":\"ok\"}\n{not json}\n")
	_, err := LoadQueries(bad)
	if err == nil || !strings.Contains(err.Error(), ":2:") {
		t.Errorf("Expected error naming line 2, got %v", err)
	}

	empty := filepath.Join(dir, "empty.jsonl")
	writeFile(t, empty, "{\"id\":1}\n")
	if _, err := LoadQueries(empty); err == nil {
		t.Error("Expected error for row without query")
	}
}

func TestWriteJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rows.jsonl")
	rows := []TemplateRow{NewTemplateRow(Query{ID: "q1", Query: "étale <site>"})}

	if err := WriteJSONL(path, rows); err != nil {
		t.Fatalf("WriteJSONL failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "étale <site>") {
		t.Errorf("Expected unescaped text, got %s", line)
	}
	if !strings.Contains(line, `"citations":[]`) || !strings.Contains(line, `"correctness":null`) {
		t.Errorf("Expected empty citations and null rubric fields, got %s", line)
	}
}

func TestSummarizeRows(t *testing.T) {
	var rows []map[string]any
	input := []string{
		`{"correctness": 1.0, "citation_precision": 0.5, "overclaim": true, "abstained": false, "abstention_correct": true}`,
		`{"correctness": 0.0, "citation_precision": null, "overclaim": false, "abstained": true, "abstention_correct": false}`,
		`{"correctness": null, "overclaim": null, "abstained": null}`,
	}
	for _, s := range input {
		var r map[string]any
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			t.Fatal(err)
		}
		rows = append(rows, r)
	}

	got := SummarizeRows(rows)
	if got.Count != 3 {
		t.Errorf("Expected count 3, got %d", got.Count)
	}
	if got.MeanCorrectness == nil || *got.MeanCorrectness != 0.5 {
		t.Errorf("Expected mean correctness 0.5, got %v", got.MeanCorrectness)
	}
	if got.MeanCitationPrecision == nil || *got.MeanCitationPrecision != 0.5 {
		t.Errorf("Expected mean citation precision 0.5, got %v", got.MeanCitationPrecision)
	}
	if got.OverclaimRate == nil || *got.OverclaimRate != 0.3333 {
		t.Errorf("Expected overclaim rate 0.3333, got %v", got.OverclaimRate)
	}
	if got.AbstentionCorrectRate == nil || *got.AbstentionCorrectRate != 0.5 {
		t.Errorf("Expected abstention correct rate 0.5, got %v", got.AbstentionCorrectRate)
	}
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, SystemRAGVerify+".jsonl"),
		`{"id":1,"system":"s2_rag_verify","correctness":null,"abstained":true,"abstention_correct":null}`+"\n")

	summary, err := Summarize(dir)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary[SystemPureLLM].Count != 0 {
		t.Errorf("Expected empty pure LLM summary")
	}
	s2 := summary[SystemRAGVerify]
	if s2.Count != 1 || s2.MeanCorrectness != nil {
		t.Errorf("Unexpected s2 summary: %+v", s2)
	}
	if s2.AbstentionCorrectRate == nil || *s2.AbstentionCorrectRate != 0 {
		t.Errorf("Expected abstention rate 0, got %v", s2.AbstentionCorrectRate)
	}

	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		t.Fatalf("Expected summary.json: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Invalid summary.json: %v", err)
	}
	if len(decoded[SystemPlainRAG]) != 1 {
		t.Errorf("Expected count-only entry for missing system, got %v", decoded[SystemPlainRAG])
	}
	if v, ok := decoded[SystemRAGVerify]["mean_correctness"]; !ok || v != nil {
		t.Errorf("Expected null mean_correctness, got %v", v)
	}
}
