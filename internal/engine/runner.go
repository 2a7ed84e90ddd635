// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sync"
)

// DefaultTailSize is how much trailing engine output an InvocationError keeps.
const DefaultTailSize = 4 * 1024

// ErrInvocation is the sentinel error wrapped by InvocationError.
var ErrInvocation = errors.New("engine invocation failed")

type (
	// ExecCommandFunc creates an *exec.Cmd. It matches exec.CommandContext and
	// is swapped out in tests.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)

	// Runner executes invocations.
	Runner struct {
		execCommand ExecCommandFunc
		environ     func() []string
		tailSize    int
	}

	// InvocationError reports an engine run that did not exit cleanly.
	InvocationError struct {
		Binary string
		// ExitCode is -1 when the process could not be started or was killed.
		ExitCode int
		// Output holds the tail of the combined engine output.
		Output string
		Err    error
	}

	// tailBuffer keeps the last max bytes written to it.
	tailBuffer struct {
		mu  sync.Mutex
		max int
		buf []byte
	}
)

// Error implements the error interface for InvocationError.
func (e *InvocationError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Binary, e.Err)
}

// Unwrap returns ErrInvocation and the underlying cause.
func (e *InvocationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvocation}
	}
	return []error{ErrInvocation, e.Err}
}

// WithExecCommand replaces the command constructor.
func WithExecCommand(fn ExecCommandFunc) RunnerOption {
	return func(r *Runner) { r.execCommand = fn }
}

// WithEnviron replaces the host environment the engine inherits.
func WithEnviron(fn func() []string) RunnerOption {
	return func(r *Runner) { r.environ = fn }
}

// WithTailSize sets how much output an InvocationError keeps.
func WithTailSize(n int) RunnerOption {
	return func(r *Runner) { r.tailSize = n }
}

// NewRunner creates a Runner that executes real processes.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		execCommand: exec.CommandContext,
		environ:     os.Environ,
		tailSize:    DefaultTailSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes inv, streaming stdout and stderr into out, which may be nil.
// It blocks until the engine exits or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, inv *Invocation, out io.Writer) error {
	cmd := r.execCommand(ctx, inv.Binary, inv.Args...)

	// A constructor that already set Env owns the base environment.
	base := cmd.Env
	if base == nil {
		base = r.environ()
	}
	cmd.Env = append(slices.Clone(base), inv.Env...)

	tail := &tailBuffer{max: r.tailSize}
	var sink io.Writer = tail
	if out != nil {
		sink = io.MultiWriter(out, tail)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	slog.Debug("running engine", "binary", inv.Binary, "args", len(inv.Args), "env", inv.Env)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	invErr := &InvocationError{Binary: inv.Binary, ExitCode: -1, Output: tail.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		invErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		invErr.Err = errors.Join(ctxErr, err)
	}
	return invErr
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if t.max <= 0 {
		return n, nil
	}
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return n, nil
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
