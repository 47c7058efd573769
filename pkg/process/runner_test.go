package process_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlite-burrito/burrito/pkg/process"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestCommand_String(t *testing.T) {
	c := process.Command{Name: "ctest", Args: []string{"--test-dir", "build/Release", "-C", "Release"}}
	assert.Equal(t, "ctest --test-dir build/Release -C Release", c.String())
	assert.Equal(t, []string{"ctest", "--test-dir", "build/Release", "-C", "Release"}, c.Argv())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, process.ExitCode(nil))
	assert.Equal(t, 1, process.ExitCode(errors.New("boom")))
	assert.Equal(t, 7, process.ExitCode(&process.ExitError{Code: 7}))
	assert.Equal(t, 7, process.ExitCode(fmt.Errorf("stage build: %w", &process.ExitError{Code: 7})))
	assert.Equal(t, 1, process.ExitCode(&process.ExitError{Code: -1}))
}

func TestExecRunner_EchoesAndRuns(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	r := &process.ExecRunner{Stdout: &out, Stderr: &out}

	err := r.Run(context.Background(), process.Command{Name: "sh", Args: []string{"-c", "echo hello"}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "--- running: sh -c echo hello ---", lines[0])
	assert.Equal(t, "hello", lines[1])
}

func TestExecRunner_PropagatesExitCode(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	r := &process.ExecRunner{Stdout: &out, Stderr: &out}

	err := r.Run(context.Background(), process.Command{Name: "sh", Args: []string{"-c", "exit 3"}})

	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, 3, process.ExitCode(err))
}

func TestExecRunner_UsesDirAndEnv(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	var out, echo bytes.Buffer
	r := &process.ExecRunner{Stdout: &out, Stderr: &out, Echo: &echo}

	err := r.Run(context.Background(), process.Command{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $BURRITO_TEST_VAR"},
		Dir:  dir,
		Env:  append(os.Environ(), "BURRITO_TEST_VAR=overlay"),
	})
	require.NoError(t, err)

	assert.Contains(t, echo.String(), "--- running:")
	assert.NotContains(t, out.String(), "--- running:")
	assert.Contains(t, out.String(), "overlay")
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := &process.ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	err := r.Run(context.Background(), process.Command{Name: "burrito-definitely-missing-binary"})
	require.Error(t, err)

	var exitErr *process.ExitError
	assert.False(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, process.ExitCode(err))
}

func TestRecordingRunner_InjectsFailure(t *testing.T) {
	boom := &process.ExitError{Code: 2}
	r := &process.RecordingRunner{Failures: map[int]error{1: boom}}

	require.NoError(t, r.Run(context.Background(), process.Command{Name: "a"}))
	assert.ErrorIs(t, r.Run(context.Background(), process.Command{Name: "b"}), boom)
	assert.Len(t, r.Commands, 2)
}

func TestExecRunner_CancelledChildExitsWithOne(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	r := &process.ExecRunner{Stdout: &out, Stderr: &out}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Run(ctx, process.Command{Name: "sh", Args: []string{"-c", "sleep 5; echo done"}})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 1, process.ExitCode(err))
	assert.Less(t, elapsed, 200*time.Millisecond+process.WaitDelay+time.Second)
	assert.NotContains(t, out.String(), "done")
}
