// Package log provides the log action, which writes a structured log line
// into the engine's log stream. Useful for tracing macro behavior without
// external side effects.
package log

import (
	"context"
	"errors"
	"log/slog"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/protocol"
)

// ErrMessageRequired is returned when no message is configured.
var ErrMessageRequired = errors.New("missing 'message' in configuration")

type Action struct {
	Message string
	Level   string
}

func NewAction(config map[string]any) (*Action, error) {
	message, _ := config["message"].(string)
	if message == "" {
		return nil, ErrMessageRequired
	}

	level, _ := config["level"].(string)
	if level == "" {
		level = "info"
	}

	return &Action{Message: message, Level: level}, nil
}

func (a *Action) Execute(ctx context.Context, execution *models.Execution, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "log_action", "execution_id", execution.ID)

	switch a.Level {
	case "debug":
		logger.DebugContext(ctx, a.Message)
	case "warn":
		logger.WarnContext(ctx, a.Message)
	case "error":
		logger.ErrorContext(ctx, a.Message)
	default:
		logger.InfoContext(ctx, a.Message)
	}

	return map[string]any{"logged_message": a.Message, "level": a.Level}, nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return string(models.ActionLog)
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}
