package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/mathfoundry/internal/extract"
	"github.com/ppiankov/mathfoundry/internal/model"
)

// ErrNotFound is returned when a work id is not indexed
var ErrNotFound = errors.New("not found")

// Store is the SQLite-backed lexical index of papers and passages
type Store struct {
	db *sql.DB
}

// Open opens or creates the index at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer; queries below never hold rows open across statements

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS papers (
			work_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT,
			category TEXT,
			ag_subareas TEXT,
			published TEXT,
			updated TEXT,
			source_file TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_papers_category ON papers(category);

		CREATE TABLE IF NOT EXISTS passages (
			passage_id TEXT PRIMARY KEY,
			work_id TEXT NOT NULL REFERENCES papers(work_id),
			chunk_index INTEGER NOT NULL,
			section_label TEXT,
			block_type TEXT,
			text TEXT NOT NULL,
			math_density REAL NOT NULL,
			token_est INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_passages_work ON passages(work_id);
		CREATE INDEX IF NOT EXISTS idx_passages_block ON passages(block_type);

		CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
			work_id UNINDEXED,
			title,
			summary
		);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertPapers inserts or updates papers and replaces their passages in one transaction.
// Papers in math.AG without tags get keyword sub-area tags.
func (s *Store) UpsertPapers(ctx context.Context, papers []model.Paper) (n int, err error) {
	if len(papers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, p := range papers {
		if p.WorkID == "" || p.Title == "" {
			continue
		}
		if p.AGSubareas == nil {
			p.AGSubareas = extract.SubareasFor(p.Category, p.Title, p.Summary)
		}
		if err = upsertPaper(ctx, tx, p); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", p.WorkID, err)
		}
		n++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func upsertPaper(ctx context.Context, tx *sql.Tx, p model.Paper) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO papers (work_id, title, summary, category, ag_subareas, published, updated, source_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(work_id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			category = excluded.category,
			ag_subareas = excluded.ag_subareas,
			published = excluded.published,
			updated = excluded.updated,
			source_file = excluded.source_file`,
		p.WorkID, p.Title, p.Summary, p.Category, strings.Join(p.AGSubareas, ","),
		p.Published, p.Updated, p.SourceFile)
	if err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers_fts WHERE work_id = ?`, p.WorkID); err != nil {
		return fmt.Errorf("clear fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO papers_fts (work_id, title, summary) VALUES (?, ?, ?)`,
		p.WorkID, p.Title, p.Summary); err != nil {
		return fmt.Errorf("insert fts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE work_id = ?`, p.WorkID); err != nil {
		return fmt.Errorf("clear passages: %w", err)
	}
	for _, ps := range extract.SplitPassages(p.Summary, p.WorkID) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO passages (passage_id, work_id, chunk_index, section_label, block_type, text, math_density, token_est)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ps.PassageID, ps.WorkID, ps.ChunkIndex, ps.SectionLabel, string(ps.BlockType),
			ps.Text, ps.MathDensity, ps.TokenEst)
		if err != nil {
			return fmt.Errorf("insert passage %s: %w", ps.PassageID, err)
		}
	}
	return nil
}

// Count returns the number of indexed papers
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return n, nil
}

// Get returns one paper by work id
func (s *Store) Get(ctx context.Context, workID string) (*model.Paper, error) {
	var p model.Paper
	var summary, category, subareas, published, updated, source sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT work_id, title, summary, category, ag_subareas, published, updated, source_file
		FROM papers WHERE work_id = ?`, workID).
		Scan(&p.WorkID, &p.Title, &summary, &category, &subareas, &published, &updated, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", workID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get paper: %w", err)
	}

	p.Summary = summary.String
	p.Category = category.String
	p.AGSubareas = splitTags(subareas.String)
	p.Published = published.String
	p.Updated = updated.String
	p.SourceFile = source.String
	return &p, nil
}

// Passages returns the passages of a paper in chunk order
func (s *Store) Passages(ctx context.Context, workID string) ([]model.Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT passage_id, work_id, chunk_index, COALESCE(section_label, ''), COALESCE(block_type, ''),
			text, math_density, token_est
		FROM passages WHERE work_id = ? ORDER BY chunk_index`, workID)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Passage
	for rows.Next() {
		var p model.Passage
		var block string
		if err := rows.Scan(&p.PassageID, &p.WorkID, &p.ChunkIndex, &p.SectionLabel, &block,
			&p.Text, &p.MathDensity, &p.TokenEst); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		p.BlockType = model.BlockType(block)
		out = append(out, p)
	}
	return out, rows.Err()
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
