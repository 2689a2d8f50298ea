package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/mathfoundry/internal/extract"
	"github.com/ppiankov/mathfoundry/internal/model"
)

// RawPattern matches raw feed pages saved by ingestion
const RawPattern = "arxiv_*.xml"

// IndexFile indexes an Atom feed page (.xml) or a harvest file (.jsonl)
func (s *Store) IndexFile(ctx context.Context, path string) (int, error) {
	var papers []model.Paper

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
		feed, err := extract.ParseFeed(data)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		papers = feed.Papers
	case ".jsonl":
		var err error
		if papers, err = ReadPapersJSONL(path); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unsupported file type: %s", path)
	}

	for i := range papers {
		papers[i].SourceFile = path
	}
	return s.UpsertPapers(ctx, papers)
}

// IndexDir indexes every raw feed page in dir in name order.
// A missing directory indexes nothing.
func (s *Store) IndexDir(ctx context.Context, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, RawPattern))
	if err != nil {
		return 0, fmt.Errorf("glob raw files: %w", err)
	}
	sort.Strings(files)

	total := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.IndexFile(ctx, f)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ReadPapersJSONL reads one paper per line, skipping blank lines
func ReadPapersJSONL(path string) ([]model.Paper, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var papers []model.Paper
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p model.Paper
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		papers = append(papers, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return papers, nil
}

// isIndexable reports whether a path is a raw feed page or harvest file
func isIndexable(path string) bool {
	base := filepath.Base(path)
	if ok, _ := filepath.Match(RawPattern, base); ok {
		return true
	}
	return strings.HasSuffix(base, ".jsonl")
}
