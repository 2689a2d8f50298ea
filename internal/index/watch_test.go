package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_Watch(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	indexedFiles := make(chan string, 4)
	go func() {
		done <- store.Watch(ctx, dir, logger, func(path string, papers int) {
			if papers == 1 {
				indexedFiles <- filepath.Base(path)
			}
		})
	}()

	// Give the watcher time to register the directory
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "arxiv_math_AG_20240301T000000Z.xml"), []byte(loaderFeed), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	indexed := false
	for time.Now().Before(deadline) {
		n, err := store.Count(context.Background())
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n == 1 {
			indexed = true
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !indexed {
		t.Error("Expected the new feed file to be indexed")
	}
	select {
	case name := <-indexedFiles:
		if name != "arxiv_math_AG_20240301T000000Z.xml" {
			t.Errorf("Unexpected indexed file reported: %s", name)
		}
	case <-time.After(2 * time.Second):
		t.Error("Expected the indexed callback to run")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestStore_WatchMissingDir(t *testing.T) {
	store := openTestStore(t)
	err := store.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), nil, nil)
	if err == nil {
		t.Error("Expected error watching a missing directory")
	}
}
