package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/mathfoundry/internal/cache"
	"github.com/ppiankov/mathfoundry/internal/model"
)

// fakeSource serves a synthetic feed of total papers
type fakeSource struct {
	total   int
	queries []FeedQuery
	failAt  int // Start offset that fails; -1 disables
}

func (f *fakeSource) FetchFeed(ctx context.Context, q FeedQuery) ([]byte, error) {
	f.queries = append(f.queries, q)
	if f.failAt >= 0 && q.Start == f.failAt && q.MaxResults > 1 {
		return nil, errors.New("upstream down")
	}

	var b strings.Builder
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">`)
	fmt.Fprintf(&b, `<opensearch:totalResults>%d</opensearch:totalResults>`, f.total)
	for i := q.Start; i < min(q.Start+q.MaxResults, f.total); i++ {
		fmt.Fprintf(&b, `<entry><id>http://arxiv.org/abs/2401.%05d</id><title>Paper %d</title><summary>Abstract %d.</summary><category term="math.AG"/></entry>`, i, i, i)
	}
	b.WriteString(`</feed>`)
	return []byte(b.String()), nil
}

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Arxiv.PageSize = 2
	cfg.Arxiv.CheckpointEvery = 2
	cfg.Arxiv.PageDelay = 0
	cfg.Arxiv.MaxRawFiles = 2
	cfg.Arxiv.MaxResultsPerIngest = 3
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestIngestSlice_SavesAndPrunes(t *testing.T) {
	noSleep(t)
	cfg := testConfig(t)
	src := &fakeSource{total: 10, failAt: -1}
	in := NewIngester(src, cfg, nil)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var last *SliceResult
	for i := 0; i < 3; i++ {
		now := base.Add(time.Duration(i) * time.Hour)
		in.now = func() time.Time { return now }
		res, err := in.IngestSlice(context.Background())
		if err != nil {
			t.Fatalf("IngestSlice failed: %v", err)
		}
		last = res
	}

	if filepath.Base(last.Path) != "arxiv_math_AG_20240301T140000Z.xml" {
		t.Errorf("Unexpected raw file name: %s", last.Path)
	}
	if last.Deleted != 1 {
		t.Errorf("Expected 1 pruned file, got %d", last.Deleted)
	}
	files, _ := filepath.Glob(filepath.Join(cfg.RawDir(), "arxiv_*.xml"))
	if len(files) != 2 {
		t.Errorf("Expected 2 raw files kept, got %d", len(files))
	}
	if _, err := os.Stat(filepath.Join(cfg.RawDir(), "arxiv_math_AG_20240301T120000Z.xml")); !os.IsNotExist(err) {
		t.Error("Expected oldest raw file to be pruned")
	}

	q := src.queries[0]
	if q.SearchQuery != "cat:math.AG" || q.MaxResults != 3 || q.SortBy != "lastUpdatedDate" {
		t.Errorf("Unexpected slice query: %+v", q)
	}
}

func TestIngestSlice_BypassesResponseCache(t *testing.T) {
	noSleep(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		_, _ = fmt.Fprintf(w, `<feed xmlns="http://www.w3.org/2005/Atom"><title>page %d</title></feed>`, n)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Arxiv.APIURL = server.URL
	cfg.Arxiv.RespectRobots = false
	if !cfg.Cache.Enabled {
		t.Fatal("Expected the response cache to be enabled by default")
	}
	in := NewIngester(NewFetcherFromConfig(cfg), cfg, nil)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var paths []string
	for i := 0; i < 2; i++ {
		now := base.Add(time.Duration(i) * 30 * time.Minute)
		in.now = func() time.Time { return now }
		res, err := in.IngestSlice(context.Background())
		if err != nil {
			t.Fatalf("IngestSlice failed: %v", err)
		}
		paths = append(paths, res.Path)
	}

	if hits.Load() != 2 {
		t.Errorf("Expected 2 server hits, got %d", hits.Load())
	}
	second, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read second slice: %v", err)
	}
	if !strings.Contains(string(second), "page 2") {
		t.Errorf("Expected second slice to hold the fresh page, got %s", second)
	}
}

func TestFetchFeed_FreshSkipsCachedBody(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "<feed>%d</feed>", hits.Add(1))
	}))
	defer server.Close()

	fetcher := NewFetcher(WithBaseURL(server.URL), WithCache(cache.NewMemoryCache(time.Hour, 0), time.Hour))
	q := FeedQuery{SearchQuery: "cat:math.AG", MaxResults: 1}

	if _, err := fetcher.FetchFeed(context.Background(), q); err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if _, err := fetcher.FetchFeed(context.Background(), q); err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("Expected cached second page, got %d hits", hits.Load())
	}

	q.Fresh = true
	body, err := fetcher.FetchFeed(context.Background(), q)
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if string(body) != "<feed>2</feed>" || hits.Load() != 2 {
		t.Errorf("Expected a fresh fetch, got %s after %d hits", body, hits.Load())
	}

	q.Fresh = false
	body, _ = fetcher.FetchFeed(context.Background(), q)
	if string(body) != "<feed>2</feed>" {
		t.Errorf("Expected the fresh body to refresh the cache, got %s", body)
	}
}

func TestPruneRawFiles_KeepsAtLeastOne(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"arxiv_a_1.xml", "arxiv_a_2.xml", "notes.txt"} {
		_ = os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}

	deleted, err := PruneRawFiles(dir, 0)
	if err != nil {
		t.Fatalf("PruneRawFiles failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, "arxiv_a_2.xml")); err != nil {
		t.Error("Expected newest raw file to survive")
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("Expected non-raw files to be untouched")
	}
}

func TestFocusQuery(t *testing.T) {
	got := FocusQuery("math.AG", model.DefaultConfig().Arxiv.FocusTerms)
	want := `cat:math.AG AND (all:moduli OR all:"intersection theory" OR all:"complex algebraic geometry" OR all:"abelian variety")`
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if FocusQuery("math.AG", nil) != "cat:math.AG" {
		t.Error("Expected bare category query without terms")
	}
}

func TestHarvest_FullRun(t *testing.T) {
	noSleep(t)
	cfg := testConfig(t)
	src := &fakeSource{total: 5, failAt: -1}
	in := NewIngester(src, cfg, nil)

	res, err := in.Harvest(context.Background(), HarvestOptions{Name: "ag_all", Query: "cat:math.AG"})
	if err != nil {
		t.Fatalf("Harvest failed: %v", err)
	}
	if res.StopReason != StopExhausted {
		t.Errorf("Expected exhausted, got %s", res.StopReason)
	}
	if res.Kept != 5 || res.PagesDone != 3 || res.NextStart != 6 {
		t.Errorf("Unexpected checkpoint: %+v", res.Checkpoint)
	}

	lines := readLines(t, filepath.Join(cfg.TopicDir(), "ag_all.jsonl"))
	if len(lines) != 5 {
		t.Fatalf("Expected 5 lines, got %d", len(lines))
	}
	var p model.Paper
	if err := json.Unmarshal([]byte(lines[0]), &p); err != nil || p.WorkID != "arxiv:2401.00000" {
		t.Errorf("Unexpected first paper: %+v %v", p, err)
	}

	data, err := os.ReadFile(res.CheckpointPath)
	if err != nil {
		t.Fatalf("Expected checkpoint file: %v", err)
	}
	var ck Checkpoint
	if err := json.Unmarshal(data, &ck); err != nil || ck.Kept != 5 {
		t.Errorf("Unexpected checkpoint file: %s", data)
	}
}

func TestHarvest_ResumesFromCheckpoint(t *testing.T) {
	noSleep(t)
	cfg := testConfig(t)
	src := &fakeSource{total: 6, failAt: 4}
	in := NewIngester(src, cfg, nil)
	opts := HarvestOptions{Name: "focus", Query: "cat:math.AG"}

	if _, err := in.Harvest(context.Background(), opts); err == nil {
		t.Fatal("Expected failure at offset 4")
	}

	src.failAt = -1
	src.queries = nil
	res, err := in.Harvest(context.Background(), opts)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if len(src.queries) != 1 || src.queries[0].Start != 4 {
		t.Errorf("Expected resume to fetch only offset 4, got %+v", src.queries)
	}
	if res.Kept != 6 {
		t.Errorf("Expected 6 kept across runs, got %d", res.Kept)
	}
	if lines := readLines(t, filepath.Join(cfg.TopicDir(), "focus.jsonl")); len(lines) != 6 {
		t.Errorf("Expected appended output of 6 lines, got %d", len(lines))
	}

	if _, err := in.Harvest(context.Background(), HarvestOptions{Name: "focus", Query: "cat:math.NT"}); err == nil {
		t.Error("Expected error when resuming with a different query")
	}
}

func TestHarvest_StopConditions(t *testing.T) {
	noSleep(t)

	cfg := testConfig(t)
	res, err := NewIngester(&fakeSource{total: 20, failAt: -1}, cfg, nil).
		Harvest(context.Background(), HarvestOptions{Name: "a", Query: "q", MaxPages: 2})
	if err != nil || res.StopReason != StopMaxPages || res.PagesDone != 2 {
		t.Errorf("Expected max_pages stop after 2 pages, got %+v %v", res, err)
	}

	cfg = testConfig(t)
	res, err = NewIngester(&fakeSource{total: 20, failAt: -1}, cfg, nil).
		Harvest(context.Background(), HarvestOptions{Name: "b", Query: "q", Target: 3})
	if err != nil || res.StopReason != StopTarget || res.Kept != 4 {
		t.Errorf("Expected target stop with 4 kept, got %+v %v", res, err)
	}

	cfg = testConfig(t)
	cfg.Arxiv.StorageBudgetGB = 1e-9
	res, err = NewIngester(&fakeSource{total: 20, failAt: -1}, cfg, nil).
		Harvest(context.Background(), HarvestOptions{Name: "c", Query: "q"})
	if err != nil || res.StopReason != StopStorageGuard {
		t.Errorf("Expected storage guard stop, got %+v %v", res, err)
	}
}

func TestIngester_LoopStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{total: 3, failAt: -1}
	in := NewIngester(src, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var intervals []time.Duration
	orig := fetchSleepFunc
	fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
		intervals = append(intervals, d)
		if len(intervals) == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	defer func() { fetchSleepFunc = orig }()

	slices := 0
	if err := in.Loop(ctx, time.Second, func(*SliceResult) { slices++ }); err != nil {
		t.Fatalf("Loop returned error: %v", err)
	}
	if slices != 2 {
		t.Errorf("Expected 2 slices before cancel, got %d", slices)
	}
	if intervals[0] != MinIngestInterval {
		t.Errorf("Expected interval raised to %v, got %v", MinIngestInterval, intervals[0])
	}
}
