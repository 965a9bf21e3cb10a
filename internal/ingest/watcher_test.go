package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartWatcher_NoRootsFails(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, testLogger())
	if err == nil {
		t.Fatal("StartWatcher accepted an empty root list")
	}
}

func TestStartWatcher_InitialScanEmitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old-invoice.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evCh, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true}, testLogger())
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	select {
	case got := <-evCh:
		if got != path {
			t.Errorf("emitted %q, want %q", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("existing file never emitted")
	}
}

func TestStartWatcher_DebouncedBurstEmitsOnce(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evCh, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{dir},
		Debounce: 200 * time.Millisecond,
	}, testLogger())
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	path := filepath.Join(dir, "scan.jpg")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("frame"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-evCh:
		if got != path {
			t.Errorf("emitted %q, want %q", got, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("debounced write burst never emitted")
	}

	select {
	case got := <-evCh:
		t.Errorf("burst emitted a second path %q, want coalesced single emit", got)
	case <-time.After(400 * time.Millisecond):
	}
}
