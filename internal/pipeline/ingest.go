package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/mathfoundry/internal/extract"
	"github.com/ppiankov/mathfoundry/internal/model"
)

// MinIngestInterval is the shortest allowed interval of the ingest loop
const MinIngestInterval = time.Minute

// Harvest stop reasons
const (
	StopExhausted    = "exhausted"
	StopEmptyPage    = "empty_page"
	StopMaxPages     = "max_pages"
	StopTarget       = "target"
	StopStorageGuard = "storage_guard"
)

// FeedSource fetches raw Atom pages
type FeedSource interface {
	FetchFeed(ctx context.Context, q FeedQuery) ([]byte, error)
}

// Ingester saves arXiv pages to the raw directory and harvests topic files
type Ingester struct {
	source FeedSource
	cfg    *model.Config
	logger *slog.Logger
	now    func() time.Time
}

// NewIngester creates a new ingester
func NewIngester(source FeedSource, cfg *model.Config, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		source: source,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SliceResult describes one saved raw page
type SliceResult struct {
	Path    string `json:"path"`
	Bytes   int    `json:"bytes"`
	Deleted int    `json:"deleted"`
}

// IngestSlice saves the newest page of the primary category and prunes old raw files.
// The page URL never changes, so the slice always bypasses the response cache.
func (in *Ingester) IngestSlice(ctx context.Context) (*SliceResult, error) {
	category := in.cfg.Arxiv.PrimaryCategory
	body, err := in.source.FetchFeed(ctx, FeedQuery{
		SearchQuery: "cat:" + category,
		Start:       0,
		MaxResults:  in.cfg.Arxiv.MaxResultsPerIngest,
		SortBy:      "lastUpdatedDate",
		SortOrder:   "descending",
		Fresh:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch slice: %w", err)
	}

	dir := in.cfg.RawDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}

	name := fmt.Sprintf("arxiv_%s_%s.xml",
		strings.ReplaceAll(category, ".", "_"),
		in.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return nil, fmt.Errorf("write raw file: %w", err)
	}

	deleted, err := PruneRawFiles(dir, in.cfg.Arxiv.MaxRawFiles)
	if err != nil {
		return nil, err
	}

	return &SliceResult{Path: path, Bytes: len(body), Deleted: deleted}, nil
}

// PruneRawFiles keeps the newest keep raw files (at least one) and removes the rest.
// Names embed a UTC timestamp, so name order is age order.
func PruneRawFiles(dir string, keep int) (int, error) {
	keep = max(keep, 1)
	files, err := filepath.Glob(filepath.Join(dir, "arxiv_*.xml"))
	if err != nil {
		return 0, fmt.Errorf("glob raw files: %w", err)
	}
	if len(files) <= keep {
		return 0, nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	deleted := 0
	for _, f := range files[keep:] {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return deleted, fmt.Errorf("remove %s: %w", f, err)
		}
		deleted++
	}
	return deleted, nil
}

// Loop runs IngestSlice every interval until ctx is cancelled.
// Failed slices are logged and the loop continues.
func (in *Ingester) Loop(ctx context.Context, every time.Duration, onSlice func(*SliceResult)) error {
	every = max(every, MinIngestInterval)
	for {
		res, err := in.IngestSlice(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			in.logger.Warn("Ingest failed", "error", err)
		default:
			in.logger.Info("Ingested slice", "path", res.Path, "bytes", res.Bytes, "deleted", res.Deleted)
			if onSlice != nil {
				onSlice(res)
			}
		}

		if err := fetchSleepFunc(ctx, every); err != nil {
			return nil
		}
	}
}

// FocusQuery restricts a category to papers mentioning any of the terms
func FocusQuery(category string, terms []string) string {
	if len(terms) == 0 {
		return "cat:" + category
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		if strings.ContainsAny(t, " \t") {
			parts[i] = "all:" + strconv.Quote(t)
		} else {
			parts[i] = "all:" + t
		}
	}
	return fmt.Sprintf("cat:%s AND (%s)", category, strings.Join(parts, " OR "))
}

// HarvestOptions selects what to harvest and when to stop
type HarvestOptions struct {
	Name     string // Output stem under the topic dir
	Query    string
	MaxPages int // 0 means unlimited
	Target   int // Stop once this many papers are kept; 0 means unlimited
}

// Checkpoint is the resumable harvest state
type Checkpoint struct {
	Query          string `json:"query"`
	TotalAvailable int    `json:"total_available"`
	NextStart      int    `json:"next_start"`
	Kept           int    `json:"kept"`
	PagesDone      int    `json:"pages_done"`
	UpdatedAt      string `json:"updated_at"`
	Output         string `json:"output"`
}

// HarvestResult is the final checkpoint and why paging stopped
type HarvestResult struct {
	Checkpoint
	StopReason     string `json:"stop_reason"`
	CheckpointPath string `json:"checkpoint"`
}

// Harvest pages through a query into <topic>/<name>.jsonl, checkpointing as it goes.
// An existing checkpoint for the same query resumes where it left off.
func (in *Ingester) Harvest(ctx context.Context, opts HarvestOptions) (*HarvestResult, error) {
	if opts.Name == "" || opts.Query == "" {
		return nil, fmt.Errorf("harvest: name and query are required")
	}

	dir := in.cfg.TopicDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create topic dir: %w", err)
	}
	outPath := filepath.Join(dir, opts.Name+".jsonl")
	ckPath := filepath.Join(dir, opts.Name+"_checkpoint.json")

	ck, resumed, err := loadCheckpoint(ckPath)
	if err != nil {
		return nil, err
	}
	if resumed && ck.Query != opts.Query {
		return nil, fmt.Errorf("checkpoint %s is for query %q, not %q", ckPath, ck.Query, opts.Query)
	}
	if !resumed {
		first, err := in.source.FetchFeed(ctx, FeedQuery{SearchQuery: opts.Query, MaxResults: 1,
			SortBy: "submittedDate", SortOrder: "descending"})
		if err != nil {
			return nil, fmt.Errorf("fetch total: %w", err)
		}
		feed, err := extract.ParseFeed(first)
		if err != nil {
			return nil, err
		}
		ck = Checkpoint{Query: opts.Query, TotalAvailable: feed.TotalResults, Output: outPath}
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resumed {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(outPath, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = file.Close() }()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	pageSize := in.cfg.Arxiv.PageSize
	budget := int64(in.cfg.Arxiv.StorageBudgetGB * in.cfg.Arxiv.StopRatio * (1 << 30))
	seen := make(map[string]bool)
	reason := StopExhausted

	for ck.NextStart < ck.TotalAvailable {
		if opts.MaxPages > 0 && ck.PagesDone >= opts.MaxPages {
			reason = StopMaxPages
			break
		}
		if opts.Target > 0 && ck.Kept >= opts.Target {
			reason = StopTarget
			break
		}
		if size, err := dirSize(in.cfg.DataDir); err == nil && size >= budget {
			in.logger.Warn("Storage guard reached", "data_bytes", size, "budget_bytes", budget)
			reason = StopStorageGuard
			break
		}

		body, err := in.source.FetchFeed(ctx, FeedQuery{SearchQuery: opts.Query, Start: ck.NextStart,
			MaxResults: pageSize, SortBy: "submittedDate", SortOrder: "descending"})
		if err != nil {
			_ = in.flushCheckpoint(w, ckPath, &ck)
			return nil, fmt.Errorf("fetch page at %d: %w", ck.NextStart, err)
		}
		feed, err := extract.ParseFeed(body)
		if err != nil {
			_ = in.flushCheckpoint(w, ckPath, &ck)
			return nil, fmt.Errorf("page at %d: %w", ck.NextStart, err)
		}
		if len(feed.Papers) == 0 {
			reason = StopEmptyPage
			break
		}

		for _, p := range feed.Papers {
			if seen[p.WorkID] {
				continue
			}
			seen[p.WorkID] = true
			if err := enc.Encode(p); err != nil {
				return nil, fmt.Errorf("write paper: %w", err)
			}
			ck.Kept++
		}
		ck.PagesDone++
		ck.NextStart += pageSize

		if ck.PagesDone%in.cfg.Arxiv.CheckpointEvery == 0 {
			if err := in.flushCheckpoint(w, ckPath, &ck); err != nil {
				return nil, err
			}
			in.logger.Info("Harvest checkpoint", "next_start", ck.NextStart, "kept", ck.Kept,
				"total", ck.TotalAvailable)
		}

		if ck.NextStart < ck.TotalAvailable {
			if err := fetchSleepFunc(ctx, in.cfg.Arxiv.PageDelay); err != nil {
				_ = in.flushCheckpoint(w, ckPath, &ck)
				return nil, err
			}
		}
	}

	if err := in.flushCheckpoint(w, ckPath, &ck); err != nil {
		return nil, err
	}
	return &HarvestResult{Checkpoint: ck, StopReason: reason, CheckpointPath: ckPath}, nil
}

func (in *Ingester) flushCheckpoint(w *bufio.Writer, path string, ck *Checkpoint) error {
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	ck.UpdatedAt = in.now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(ck, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

func loadCheckpoint(path string) (Checkpoint, bool, error) {
	var ck Checkpoint
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ck, false, nil
	}
	if err != nil {
		return ck, false, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &ck); err != nil {
		return ck, false, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return ck, true, nil
}

// dirSize sums regular file sizes under dir; a missing dir is empty
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
