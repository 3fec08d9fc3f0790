package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrBinaryNotFound is returned when the docker binary is not on PATH.
var ErrBinaryNotFound = errors.New("docker binary not found")

// Runner performs compose lifecycle commands against a compose file.
type Runner interface {
	Up(ctx context.Context, file string) error
	Down(ctx context.Context, file string) error
	Pull(ctx context.Context, file string) error
}

// RunError describes a compose command that could not run or exited non-zero.
type RunError struct {
	Args     []string
	ExitCode int
	Output   string // last lines of combined output
	Err      error
}

func (e *RunError) Error() string {
	cmd := strings.Join(e.Args, " ")
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ExecRunner
// =============================================================================

// ExecRunner runs "<binary> compose -f FILE ..." as a child process. Output is
// streamed to Stdout and Stderr when set.
type ExecRunner struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner returns a runner for the given docker binary ("docker" if empty).
func NewExecRunner(binary string, stdout, stderr io.Writer, logger *slog.Logger) *ExecRunner {
	if binary == "" {
		binary = "docker"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Binary: binary, Stdout: stdout, Stderr: stderr, Logger: logger}
}

// Up starts the project in the background.
func (r *ExecRunner) Up(ctx context.Context, file string) error {
	return r.run(ctx, file, "up", "-d")
}

// Down stops and removes the project's containers.
func (r *ExecRunner) Down(ctx context.Context, file string) error {
	return r.run(ctx, file, "down")
}

// Pull fetches newer images for every service.
func (r *ExecRunner) Pull(ctx context.Context, file string) error {
	return r.run(ctx, file, "pull")
}

func (r *ExecRunner) run(ctx context.Context, file string, action ...string) error {
	args := append([]string{"compose", "-f", file}, action...)
	display := append([]string{r.Binary}, args...)

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = filepath.Dir(file)

	var tail tailBuffer
	cmd.Stdout = writers(&tail, r.Stdout)
	cmd.Stderr = writers(&tail, r.Stderr)

	r.Logger.Debug("running compose", "args", display, "dir", cmd.Dir)

	err := cmd.Run()
	if err == nil {
		return nil
	}

	runErr := &RunError{Args: display, Output: tail.String(), Err: err}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		runErr.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound):
		runErr.Err = fmt.Errorf("%w: %s", ErrBinaryNotFound, r.Binary)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		runErr.Err = ctxErr
	}

	r.Logger.Warn("compose command failed", "args", display, "exit_code", runErr.ExitCode, "error", err)
	return runErr
}

func writers(buf io.Writer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// tailBuffer keeps the last few KB written to it. Stdout and stderr are
// copied by separate goroutines, hence the lock.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

const tailLimit = 4096

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if extra := t.buf.Len() - tailLimit; extra > 0 {
		t.buf.Next(extra)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
