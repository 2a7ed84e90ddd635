// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

func startWatcher(t *testing.T, cfg Config) <-chan []string {
	t.Helper()

	calls := make(chan []string, 10)
	cfg.Debounce = 50 * time.Millisecond
	cfg.OnChange = func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return calls
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[general]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	calls := startWatcher(t, Config{Roots: []string{dir}})

	for _, name := range []string{"a.global.cfg", "b.inst.cfg", "pla.xml.fdm_material"} {
		writeFile(t, filepath.Join(dir, name))
		time.Sleep(5 * time.Millisecond)
	}

	var changed []string
	select {
	case changed = <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	for _, name := range []string{"a.global.cfg", "b.inst.cfg", "pla.xml.fdm_material"} {
		if !slices.Contains(changed, filepath.Join(dir, name)) {
			t.Errorf("changed = %v, missing %s", changed, name)
		}
	}
	if !slices.IsSorted(changed) {
		t.Errorf("changed = %v, want sorted", changed)
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	calls := startWatcher(t, Config{Roots: []string{dir}})

	writeFile(t, filepath.Join(dir, "notes.txt"))
	writeFile(t, filepath.Join(dir, "cura.log"))

	select {
	case changed := <-calls:
		t.Fatalf("callback fired for %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	calls := startWatcher(t, Config{Roots: []string{dir}})

	sub := filepath.Join(dir, "quality_changes")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(sub, "fine.inst.cfg")
	writeFile(t, target)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case changed := <-calls:
			if slices.Contains(changed, target) {
				return
			}
		case <-deadline:
			t.Fatal("no callback for file in new directory")
		}
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Roots: []string{filepath.Join(t.TempDir(), "missing")}}); err == nil {
		t.Error("New() with no existing root should fail")
	}
	if _, err := New(Config{Roots: []string{t.TempDir()}, Patterns: []string{"[unclosed"}}); err == nil {
		t.Error("New() with a bad pattern should fail")
	}
}

func TestNew_SkipsMissingRoots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(Config{Roots: []string{dir, filepath.Join(dir, "nope")}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.fsw.Close()

	abs, _ := filepath.Abs(dir)
	if got := w.Roots(); len(got) != 1 || got[0] != abs {
		t.Errorf("Roots() = %v, want [%s]", got, abs)
	}
}

func TestRun_Twice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Roots: []string{t.TempDir()}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	var wg sync.WaitGroup
	wg.Go(func() { _ = w.Run(ctx) })
	time.Sleep(20 * time.Millisecond)
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	wg.Wait()
}

func TestRelevant(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	abs, _ := filepath.Abs(root)
	w := &Watcher{roots: []string{abs}, patterns: ProfilePatterns}

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(abs, "machine_instances", "ender.global.cfg"), true},
		{filepath.Join(abs, "definitions", "ender.def.json"), true},
		{filepath.Join(abs, "materials", "pla.xml.fdm_material"), true},
		{filepath.Join(abs, "cache", "x.cfg"), false},
		{filepath.Join(abs, "cura.cfg~"), false},
		{filepath.Join(abs, "readme.md"), false},
		{filepath.Join(filepath.Dir(abs), "other.cfg"), false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.path); got != tt.want {
			t.Errorf("relevant(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
