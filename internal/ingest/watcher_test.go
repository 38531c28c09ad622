package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("NGHỊ QUYẾT\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func collectPaths(t *testing.T, ch <-chan string, n int, timeout time.Duration) []string {
	t.Helper()
	var got []string
	deadline := time.After(timeout)
	for len(got) < n {
		select {
		case p, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d paths", len(got), n)
			}
			got = append(got, p)
		case <-deadline:
			t.Fatalf("timed out with %d of %d paths: %v", len(got), n, got)
		}
	}
	sort.Strings(got)
	return got
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"a.txt", true},
		{"A.PDF", true},
		{"doc.docx", true},
		{"page.htm", true},
		{"binary.exe", false},
		{"no-extension", false},
		{"archive.tar.gz", false},
	}
	for _, tc := range cases {
		if got := allowed(tc.path, defaultExts); got != tc.want {
			t.Errorf("allowed(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestStartWatcher_RequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{Logger: discardLogger()})
	if err == nil {
		t.Fatal("expected error for empty roots")
	}
}

func TestStartWatcher_InitialScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"))
	writeFile(t, filepath.Join(dir, "b.pdf"))
	writeFile(t, filepath.Join(dir, "skip.bin"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	got := collectPaths(t, paths, 2, 3*time.Second)
	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.pdf")}
	if got[0] != want[0] || got[1] != want[1] {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestStartWatcher_EmitsNewFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{dir},
		Debounce: 50 * time.Millisecond,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	target := filepath.Join(dir, "nghi-quyet.docx")
	writeFile(t, target)

	got := collectPaths(t, paths, 1, 3*time.Second)
	if got[0] != target {
		t.Errorf("path = %q, want %q", got[0], target)
	}
}

func TestStartWatcher_ClosesOnCancel(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	paths, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:  []string{dir},
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-paths:
			if !ok {
				// Error channel closes with it.
				select {
				case _, ok := <-errs:
					if ok {
						t.Error("unexpected watcher error after cancel")
					}
				case <-deadline:
					t.Fatal("error channel did not close")
				}
				return
			}
		case <-deadline:
			t.Fatal("path channel did not close after cancel")
		}
	}
}
