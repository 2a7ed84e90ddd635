// SPDX-License-Identifier: MPL-2.0

package resources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, filepath.FromSlash(r))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDir_Acquire(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root,
		"definitions/creality_ender3.def.json",
		"extruders/creality_base_extruder_0.def.json",
		"quality/creality/base/creality_global_draft.inst.cfg",
		"variants/creality_base_0.4.inst.cfg",
		"definitions/fdmprinter.def.json.bak",
	)

	r, err := Dir(root).Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer r.Close()

	wantDirs := []string{
		filepath.Join(root, "definitions"),
		filepath.Join(root, "extruders"),
		filepath.Join(root, "variants"),
	}
	if diff := cmp.Diff(wantDirs, r.SearchDirs()); diff != "" {
		t.Errorf("SearchDirs() mismatch (-want +got):\n%s", diff)
	}

	files, err := r.Lookup("creality_ender3")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	want := []File{{Path: filepath.Join(root, "definitions", "creality_ender3.def.json"), Kind: KindDefinition}}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("Lookup() mismatch (-want +got):\n%s", diff)
	}

	files, err = r.Lookup("creality_base_0.4")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(files) != 1 || files[0].Kind != KindInstance {
		t.Errorf("Lookup(variant) = %+v, want one instance file", files)
	}

	if files, _ := r.Lookup("fdmprinter"); len(files) != 0 {
		t.Errorf("Lookup(fdmprinter) = %+v, want none", files)
	}
}

func TestDir_SearchDirsSkipsMissing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root, "extruders/x.def.json")

	r := NewRoot(root, nil)
	if diff := cmp.Diff([]string{filepath.Join(root, "extruders")}, r.SearchDirs()); diff != "" {
		t.Errorf("SearchDirs() mismatch (-want +got):\n%s", diff)
	}
}

func TestDir_AcquireMissing(t *testing.T) {
	t.Parallel()

	_, err := Dir(filepath.Join(t.TempDir(), "absent")).Acquire(context.Background())
	if !errors.Is(err, ErrNoResources) {
		t.Errorf("Acquire() error = %v, want ErrNoResources", err)
	}
}

func TestRoot_CloseOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	r := NewRoot(t.TempDir(), func() error {
		calls++
		return nil
	})
	for range 3 {
		if err := r.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("release called %d times, want 1", calls)
	}
}

func TestAppImage_Acquire(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("AppImages only exist on Linux")
	}
	t.Parallel()

	var calls []string
	loc := NewAppImage("/opt/Cura.AppImage", WithExecCommand(mountHelper(t, "/tmp/.mount_CuraXYZ\n", 0, true, &calls)))

	r, err := loc.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	want := filepath.Join("/tmp/.mount_CuraXYZ", "share", "cura", "resources")
	if r.Path() != want {
		t.Errorf("Path() = %q, want %q", r.Path(), want)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if diff := cmp.Diff([]string{"/opt/Cura.AppImage"}, calls); diff != "" {
		t.Errorf("exec calls mismatch (-want +got):\n%s", diff)
	}
}

func TestAppImage_AcquireNoOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("AppImages only exist on Linux")
	}
	t.Parallel()

	var calls []string
	loc := NewAppImage("/opt/Broken.AppImage", WithExecCommand(mountHelper(t, "", 1, false, &calls)))

	_, err := loc.Acquire(context.Background())
	if !errors.Is(err, ErrMount) {
		t.Errorf("Acquire() error = %v, want ErrMount", err)
	}
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	got, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir() error = %v", err)
	}
	if want := filepath.Join("/xdg/data", "cura", "5.0"); got != want {
		t.Errorf("DefaultDataDir() = %q, want %q", got, want)
	}
}
