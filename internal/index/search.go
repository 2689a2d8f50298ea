package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/mathfoundry/internal/model"
)

// Search limits
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// fallbackCandidates bounds the LIKE scan used when full-text search finds nothing
const fallbackCandidates = 500

type hit struct {
	workID, title, category, subareas, published, updated string
	score                                                   float64
}

// Search returns papers ranked for the query as references carrying
// work_id, title and the extras score, category, published, updated,
// ag_subareas, top_block_type and math_density
func (s *Store) Search(ctx context.Context, query string, limit int) ([]model.Reference, error) {
	limit = ClampLimit(limit)
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []model.Reference{}, nil
	}

	hits, err := s.searchFTS(ctx, terms, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		if hits, err = s.searchTokens(ctx, terms, limit); err != nil {
			return nil, err
		}
	}

	refs := make([]model.Reference, 0, len(hits))
	for _, h := range hits {
		ref, err := s.toReference(ctx, h)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ClampLimit applies the default and upper bound to a requested limit
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func (s *Store) searchFTS(ctx context.Context, terms []string, limit int) ([]hit, error) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.work_id, p.title, COALESCE(p.category, ''), COALESCE(p.ag_subareas, ''),
			COALESCE(p.published, ''), COALESCE(p.updated, ''),
			bm25(papers_fts, 0.0, 4.0, 1.0) AS rank
		FROM papers_fts
		JOIN papers p ON p.work_id = papers_fts.work_id
		WHERE papers_fts MATCH ?
		ORDER BY rank, p.work_id
		LIMIT ?`, strings.Join(quoted, " OR "), limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []hit
	for rows.Next() {
		var h hit
		var rank float64
		if err := rows.Scan(&h.workID, &h.title, &h.category, &h.subareas, &h.published, &h.updated, &rank); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		h.score = round4(-rank)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// searchTokens scores substring matches: 3 per title hit, 1 per summary hit
func (s *Store) searchTokens(ctx context.Context, terms []string, limit int) ([]hit, error) {
	var where []string
	var args []any
	for _, t := range terms {
		where = append(where, "lower(title) LIKE ? OR lower(summary) LIKE ?")
		pattern := "%" + t + "%"
		args = append(args, pattern, pattern)
	}
	args = append(args, fallbackCandidates)

	rows, err := s.db.QueryContext(ctx, `
		SELECT work_id, title, COALESCE(summary, ''), COALESCE(category, ''), COALESCE(ag_subareas, ''),
			COALESCE(published, ''), COALESCE(updated, '')
		FROM papers
		WHERE `+strings.Join(where, " OR ")+`
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("token search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []hit
	for rows.Next() {
		var h hit
		var summary string
		if err := rows.Scan(&h.workID, &h.title, &summary, &h.category, &h.subareas, &h.published, &h.updated); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		title, body := strings.ToLower(h.title), strings.ToLower(summary)
		for _, t := range terms {
			if strings.Contains(title, t) {
				h.score += 3
			}
			if strings.Contains(body, t) {
				h.score++
			}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].workID < hits[j].workID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) toReference(ctx context.Context, h hit) (model.Reference, error) {
	ref := model.NewReference(h.workID, h.title)
	ref.Set("score", h.score)
	ref.Set("source", "arxiv")
	ref.Set("category", h.category)
	ref.Set("published", h.published)
	ref.Set("updated", h.updated)
	ref.Set("ag_subareas", splitTags(h.subareas))

	var block string
	var density float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(block_type, ''), math_density FROM passages
		WHERE work_id = ?
		ORDER BY math_density DESC, chunk_index
		LIMIT 1`, h.workID).Scan(&block, &density)
	switch {
	case err == nil:
		ref.Set("top_block_type", block)
		ref.Set("math_density", density)
	case isNoRows(err):
		ref.Set("top_block_type", nil)
		ref.Set("math_density", nil)
	default:
		return ref, fmt.Errorf("top passage %s: %w", h.workID, err)
	}
	return ref, nil
}

// queryTerms lowercases the query and keeps distinct word tokens of two or more runes
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
