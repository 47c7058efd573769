// Package process runs external build tools as blocking subprocesses
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// WaitDelay bounds how long Run waits for output pipes after the child is
// killed on cancellation
const WaitDelay = 2 * time.Second

// Command is one external process invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is the full environment of the child. Nil inherits the parent's.
	Env []string
}

// Argv returns the command name followed by its arguments
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command the way it is echoed before execution
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Runner executes commands
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a child process that exited with a non-zero status
type ExitError struct {
	Command Command
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command.String(), e.Code)
}

// ExitCode maps an error onto a process exit status: 0 for nil, the
// child's code for an ExitError, 1 otherwise. Signal terminations map to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// ExecRunner runs commands with os/exec, echoing each one first
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Echo receives the "--- running: ... ---" banner. Defaults to Stdout.
	Echo io.Writer

	mu sync.Mutex
}

// NewExecRunner creates a runner streaming to the process's stdout/stderr
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run echoes the command, then executes it and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	echo := r.Echo
	if echo == nil {
		echo = r.Stdout
	}
	if echo != nil {
		fmt.Fprintf(echo, "--- running: %s ---\n", c.String())
		if f, ok := echo.(interface{ Sync() error }); ok {
			_ = f.Sync()
		}
	}

	//nolint:gosec // G204: commands are assembled from the build configuration
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.WaitDelay = WaitDelay

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// -1 means the child was killed by a signal
			code := exitErr.ExitCode()
			if code < 0 {
				code = 1
			}
			return &ExitError{Command: c, Code: code}
		}
		return fmt.Errorf("failed to run %q: %w", c.String(), err)
	}
	return nil
}

// RecordingRunner records commands instead of running them. Failures can
// be injected per command index.
type RecordingRunner struct {
	Commands []Command
	Failures map[int]error
	Echo     io.Writer
}

// Run records the command and returns the injected failure, if any
func (r *RecordingRunner) Run(_ context.Context, c Command) error {
	if r.Echo != nil {
		fmt.Fprintf(r.Echo, "--- running: %s ---\n", c.String())
	}
	idx := len(r.Commands)
	r.Commands = append(r.Commands, c)
	if err, ok := r.Failures[idx]; ok {
		return err
	}
	return nil
}
