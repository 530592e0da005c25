package command

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstack/macrod/pkg/services"
)

type fakeRunner struct {
	gotCommand string
	gotArgs    []string
	gotTimeout time.Duration
	result     *services.CommandResult
	err        error
}

func (r *fakeRunner) Run(_ context.Context, command string, args []string, timeout time.Duration) (*services.CommandResult, error) {
	r.gotCommand = command
	r.gotArgs = args
	r.gotTimeout = timeout

	return r.result, r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNewActionRequiresCommand(t *testing.T) {
	t.Parallel()

	_, err := NewAction(map[string]any{}, &fakeRunner{})
	assert.ErrorIs(t, err, ErrCommandRequired)
}

func TestNewActionParsesArgsAndTimeout(t *testing.T) {
	t.Parallel()

	action, err := NewAction(map[string]any{
		"command":         "deploy.sh",
		"args":            []any{"--env", "prod", 42},
		"timeout_seconds": float64(5),
	}, &fakeRunner{})
	require.NoError(t, err)

	assert.Equal(t, "deploy.sh", action.Command)
	assert.Equal(t, []string{"--env", "prod"}, action.Args, "non-string args are dropped")
	assert.Equal(t, 5*time.Second, action.Timeout)
}

func TestNewActionDefaultTimeout(t *testing.T) {
	t.Parallel()

	action, err := NewAction(map[string]any{"command": "true"}, &fakeRunner{})
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, action.Timeout)
}

func TestExecuteCapturesOutput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: &services.CommandResult{ExitCode: 0, Stdout: "ok\n"}}

	action, err := NewAction(map[string]any{"command": "status.sh", "timeout_seconds": float64(2)}, runner)
	require.NoError(t, err)

	output, err := action.Execute(context.Background(), nil, testLogger())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"exit_code": 0, "stdout": "ok\n", "stderr": ""}, output)
	assert.Equal(t, "status.sh", runner.gotCommand)
	assert.Equal(t, 2*time.Second, runner.gotTimeout)
}

func TestExecuteNonZeroExitIsNotAFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: &services.CommandResult{ExitCode: 3, Stderr: "not found"}}

	action, err := NewAction(map[string]any{"command": "check.sh"}, runner)
	require.NoError(t, err)

	output, err := action.Execute(context.Background(), nil, testLogger())
	require.NoError(t, err)

	result, ok := output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, result["exit_code"])
}

func TestExecuteTimeoutBecomesTimeoutError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: context.DeadlineExceeded}

	action, err := NewAction(map[string]any{"command": "slow.sh"}, runner)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), nil, testLogger())
	require.Error(t, err)
	assert.True(t, services.IsTimeoutError(err), "expected timeout error, got %v", err)
}

func TestExecuteWrapsRunnerFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("no such binary")}

	action, err := NewAction(map[string]any{"command": "missing"}, runner)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), nil, testLogger())
	require.Error(t, err)
	assert.True(t, services.IsDependencyError(err))
}
