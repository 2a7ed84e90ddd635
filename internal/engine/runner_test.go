// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// engineHelper returns an ExecCommandFunc that runs TestHelperProcess in place
// of the engine.
func engineHelper(t *testing.T, stdout, stderr string, exitCode int) ExecCommandFunc {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...) //nolint:gosec // test helper process
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
			fmt.Sprintf("GO_HELPER_STDOUT=%s", stdout),
			fmt.Sprintf("GO_HELPER_STDERR=%s", stderr),
		}
		return cmd
	}
}

// TestHelperProcess stands in for the engine during tests. It is invoked by
// engineHelper and does nothing when run as a regular test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprintln(os.Stdout, stdout)
	}
	if sp, ok := os.LookupEnv(SearchPathEnv); ok {
		fmt.Fprintf(os.Stdout, "%s=%s\n", SearchPathEnv, sp)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprintln(os.Stderr, stderr)
	}
	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode)
	}
	os.Exit(exitCode)
}

func TestRunner_Success(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithExecCommand(engineHelper(t, "Slicing took 1.2s", "", 0)))
	inv := &Invocation{
		Binary: "CuraEngine",
		Args:   []string{"slice", "-v"},
		Env:    []string{SearchPathEnv + "=/r/definitions"},
	}

	var out bytes.Buffer
	if err := r.Run(context.Background(), inv, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{"Slicing took 1.2s", SearchPathEnv + "=/r/definitions"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}
}

func TestRunner_Failure(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithExecCommand(engineHelper(t, "", "Failed to load model", 3)))
	err := r.Run(context.Background(), &Invocation{Binary: "CuraEngine", Args: []string{"slice"}}, nil)

	var invErr *InvocationError
	if !errors.As(err, &invErr) || !errors.Is(err, ErrInvocation) {
		t.Fatalf("Run() error = %v, want InvocationError", err)
	}
	if invErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", invErr.ExitCode)
	}
	if !strings.Contains(invErr.Output, "Failed to load model") {
		t.Errorf("Output = %q, want captured stderr", invErr.Output)
	}
}

func TestRunner_WithEnviron(t *testing.T) {
	t.Parallel()

	plain := func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		return exec.CommandContext(ctx, os.Args[0], cs...) //nolint:gosec // test helper process
	}
	r := NewRunner(
		WithExecCommand(plain),
		WithEnviron(func() []string { return []string{"GO_WANT_HELPER_PROCESS=1", "GO_HELPER_STDOUT=hello"} }),
	)

	var out bytes.Buffer
	if err := r.Run(context.Background(), &Invocation{Binary: "CuraEngine"}, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "hello" {
		t.Errorf("output = %q, want hello", out.String())
	}
}

func TestRunner_StartFailure(t *testing.T) {
	t.Parallel()

	r := NewRunner()
	err := r.Run(context.Background(), &Invocation{Binary: "/nonexistent/CuraEngine"}, nil)

	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("Run() error = %v, want InvocationError", err)
	}
	if invErr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", invErr.ExitCode)
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	tb := &tailBuffer{max: 5}
	for _, s := range []string{"ab", "cd", "efg"} {
		if _, err := tb.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	if got := tb.String(); got != "cdefg" {
		t.Errorf("tail = %q, want cdefg", got)
	}
	if _, err := tb.Write([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	if got := tb.String(); got != "56789" {
		t.Errorf("tail = %q, want 56789", got)
	}
}
