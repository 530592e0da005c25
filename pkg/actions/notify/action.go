// Package notify provides the notification action, delegating delivery to
// the external notification service.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/protocol"
	"github.com/workstack/macrod/pkg/services"
)

var (
	// ErrTargetRequired is returned when no notification target is configured.
	ErrTargetRequired = errors.New("missing 'target' in configuration")
	// ErrMessageRequired is returned when no message is configured.
	ErrMessageRequired = errors.New("missing 'message' in configuration")
)

type Action struct {
	Target  string
	Message string

	notifier services.NotificationService
}

func NewAction(config map[string]any, notifier services.NotificationService) (*Action, error) {
	target, _ := config["target"].(string)
	if target == "" {
		return nil, ErrTargetRequired
	}

	message, _ := config["message"].(string)
	if message == "" {
		return nil, ErrMessageRequired
	}

	return &Action{Target: target, Message: message, notifier: notifier}, nil
}

func (a *Action) Execute(ctx context.Context, _ *models.Execution, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "notify_action", "target", a.Target)

	if err := a.notifier.Send(ctx, a.Target, a.Message); err != nil {
		return nil, &services.DependencyError{Dependency: "notification_service", Err: err}
	}

	logger.InfoContext(ctx, "Notification sent")

	return map[string]any{"target": a.Target, "delivered": true}, nil
}

type Factory struct {
	notifier services.NotificationService
}

func NewFactory(notifier services.NotificationService) *Factory {
	return &Factory{notifier: notifier}
}

func (f *Factory) ID() string {
	return string(models.ActionSendNotification)
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.notifier)
}
