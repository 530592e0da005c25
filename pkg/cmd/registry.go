// Package cmd provides common initialization for the engine's binaries.
package cmd

import (
	"log/slog"

	"github.com/workstack/macrod/pkg/actions/command"
	logaction "github.com/workstack/macrod/pkg/actions/log"
	"github.com/workstack/macrod/pkg/actions/notify"
	"github.com/workstack/macrod/pkg/actions/webhook"
	"github.com/workstack/macrod/pkg/actions/workitem"
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/ratelimit"
	"github.com/workstack/macrod/pkg/registry"
	"github.com/workstack/macrod/pkg/services"
)

// RegistryDeps carries the collaborators the native actions need.
type RegistryDeps struct {
	WorkItems      services.WorkItemService
	Notifier       services.NotificationService
	CommandRunner  services.CommandRunner
	WebhookConfigs persistence.WebhookConfigRepository
	RateLimiter    *ratelimit.Limiter
}

// NewRegistry builds the action registry with all native actions and any
// action plugins found under pluginsPath.
func NewRegistry(log *slog.Logger, pluginsPath string, deps RegistryDeps) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	if pluginsPath != "" {
		plugins, err := reg.LoadActionPlugins(pluginsPath)
		if err != nil {
			return nil, err
		}

		for _, plugin := range plugins {
			reg.RegisterAction(plugin)
		}
	}

	registerNativeActions(reg, deps)

	return reg, nil
}

func registerNativeActions(reg *registry.Registry, deps RegistryDeps) {
	for _, operation := range []models.ActionType{
		models.ActionCreateWorkItem,
		models.ActionUpdateWorkItem,
		models.ActionTransitionWorkItem,
		models.ActionAddComment,
		models.ActionAddRelationship,
	} {
		reg.RegisterAction(workitem.NewFactory(operation, deps.WorkItems))
	}

	reg.RegisterAction(notify.NewFactory(deps.Notifier))
	reg.RegisterAction(command.NewFactory(deps.CommandRunner))
	reg.RegisterAction(logaction.NewFactory())

	for _, kind := range []models.ActionType{
		models.ActionCallWebhook,
		models.ActionSendWebhookJSON,
		models.ActionSendWebhookForm,
	} {
		reg.RegisterAction(webhook.NewFactory(kind, deps.WebhookConfigs, deps.RateLimiter))
	}
}
