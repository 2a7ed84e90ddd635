// SPDX-License-Identifier: MPL-2.0

package resources

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// AppImageMountFlag makes an AppImage mount itself and print the mount point.
const AppImageMountFlag = "--appimage-mount"

var (
	// ErrNoResources is returned when no resource tree can be located.
	ErrNoResources = errors.New("slicer resources not found")
	// ErrMount is the sentinel error wrapped by MountError.
	ErrMount = errors.New("appimage mount failed")
)

type (
	// Locator makes a resource tree available. The returned Root must be closed.
	Locator interface {
		Acquire(ctx context.Context) (*Root, error)
	}

	// ExecCommandFunc creates an *exec.Cmd. It matches exec.CommandContext and
	// is swapped out in tests.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// AppImageOption configures an AppImage locator.
	AppImageOption func(*AppImage)

	// Dir is a Locator for a resource tree that is a plain directory.
	Dir string

	// AppImage is a Locator that mounts an AppImage for as long as the Root is
	// open. The mount helper keeps running until Close terminates it.
	AppImage struct {
		Binary      string
		execCommand ExecCommandFunc
	}

	// MountError reports a failed AppImage mount.
	MountError struct {
		Binary string
		Err    error
	}
)

// Error implements the error interface for MountError.
func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s: %v", e.Binary, e.Err)
}

// Unwrap returns ErrMount and the underlying cause.
func (e *MountError) Unwrap() []error { return []error{ErrMount, e.Err} }

// Acquire returns the directory as a Root; there is nothing to release.
func (d Dir) Acquire(ctx context.Context) (*Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(string(d))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResources, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoResources, d)
	}
	return NewRoot(string(d), nil), nil
}

// WithExecCommand sets the function used to start the mount helper.
func WithExecCommand(fn ExecCommandFunc) AppImageOption {
	return func(a *AppImage) {
		a.execCommand = fn
	}
}

// NewAppImage creates a Locator for the AppImage at binary.
func NewAppImage(binary string, opts ...AppImageOption) *AppImage {
	a := &AppImage{Binary: binary, execCommand: exec.CommandContext}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire mounts the AppImage and returns <mount>/share/cura/resources. The
// mount point is the first line the helper prints on stdout.
func (a *AppImage) Acquire(ctx context.Context) (*Root, error) {
	// The helper must outlive ctx; it is stopped by Root.Close.
	cmd := a.execCommand(context.WithoutCancel(ctx), a.Binary, AppImageMountFlag)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &MountError{Binary: a.Binary, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &MountError{Binary: a.Binary, Err: err}
	}

	release := func() error {
		return stopHelper(cmd, stdout)
	}

	type lineResult struct {
		line string
		err  error
	}
	lines := make(chan lineResult, 1)
	go func() {
		line, err := bufio.NewReader(stdout).ReadString('\n')
		lines <- lineResult{line: line, err: err}
	}()

	var mount string
	select {
	case <-ctx.Done():
		_ = release()
		return nil, ctx.Err()
	case res := <-lines:
		if res.err != nil {
			_ = release()
			return nil, &MountError{Binary: a.Binary, Err: fmt.Errorf("read mount point: %w", res.err)}
		}
		mount = strings.TrimRight(res.line, "\r\n")
	}

	root := filepath.Join(mount, "share", "cura", "resources")
	slog.Debug("mounted appimage", "binary", a.Binary, "mount", mount, "resources", root)
	return NewRoot(root, release), nil
}

// stopHelper closes the helper's stdout, asks it to exit and waits for it.
// Being terminated is the expected outcome, so exit errors are not reported.
func stopHelper(cmd *exec.Cmd, stdout io.Closer) error {
	_ = stdout.Close()
	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
	} else if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = cmd.Process.Kill()
	}
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("unmount: %w", err)
	}
	return nil
}

// DefaultDataDir returns the slicer's user data directory
// ($XDG_DATA_HOME/cura/5.0, defaulting to ~/.local/share/cura/5.0).
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "cura", "5.0"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "cura", "5.0"), nil
}

// InstalledDir guesses the resource tree of a conventional installation
// (<prefix>/bin/<binary> with resources in <prefix>/share/cura/resources).
func InstalledDir(binary string) (Dir, error) {
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoResources, err)
	}
	if target, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = target
	}
	dir := filepath.Join(filepath.Dir(filepath.Dir(resolved)), "share", "cura", "resources")
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: no resources next to %s", ErrNoResources, resolved)
	}
	return Dir(dir), nil
}
