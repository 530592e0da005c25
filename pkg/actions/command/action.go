// Package command provides the external-command action.
package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/protocol"
	"github.com/workstack/macrod/pkg/services"
)

const defaultTimeout = 60 * time.Second

// ErrCommandRequired is returned when no command is configured.
var ErrCommandRequired = errors.New("missing 'command' in configuration")

type Action struct {
	Command string
	Args    []string
	Timeout time.Duration

	runner services.CommandRunner
}

func NewAction(config map[string]any, runner services.CommandRunner) (*Action, error) {
	cmd, _ := config["command"].(string)
	if cmd == "" {
		return nil, ErrCommandRequired
	}

	var args []string

	if raw, ok := config["args"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				args = append(args, s)
			}
		}
	}

	timeout := defaultTimeout
	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return &Action{Command: cmd, Args: args, Timeout: timeout, runner: runner}, nil
}

// Execute runs the command and captures exit status and output. A non-zero
// exit code is recorded in the output, not treated as an action failure;
// failing to run the command at all is.
func (a *Action) Execute(ctx context.Context, _ *models.Execution, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "command_action", "command", a.Command)
	logger.InfoContext(ctx, "Running external command")

	result, err := a.runner.Run(ctx, a.Command, a.Args, a.Timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &services.TimeoutError{Dependency: "command_runner", Limit: a.Timeout}
		}

		return nil, &services.DependencyError{Dependency: "command_runner", Err: err}
	}

	return map[string]any{
		"exit_code": result.ExitCode,
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
	}, nil
}

type Factory struct {
	runner services.CommandRunner
}

func NewFactory(runner services.CommandRunner) *Factory {
	return &Factory{runner: runner}
}

func (f *Factory) ID() string {
	return string(models.ActionRunCommand)
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.runner)
}
