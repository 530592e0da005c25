// Package registry holds the action factories available to the macro
// engine, including factories loaded from plugins.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"

	"github.com/workstack/macrod/pkg/protocol"
)

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.actionFactories[actionFactory.ID()] = actionFactory
}

func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(config)
}

// IsActionRegistered reports whether an action type is available. Macro
// validation uses this to reject definitions referencing unknown actions.
func (r *Registry) IsActionRegistered(actionType string) bool {
	_, exists := r.actionFactories[actionType]

	return exists
}

// LoadActionPlugins loads ActionFactory symbols from .so files under
// pluginsPath/actions.
func (r *Registry) LoadActionPlugins(pluginsPath string) ([]protocol.ActionFactory, error) {
	rootPath := pluginsPath + "/actions"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := r.logger.With(slog.String("path", pluginsPath))
	l.Info("Loading action plugins")

	pluginList := make([]protocol.ActionFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup("Action")
		if err != nil {
			return nil, fmt.Errorf("failed to look up Action symbol in %s: %w", p, err)
		}

		factory, ok := v.(protocol.ActionFactory)
		if !ok {
			return nil, fmt.Errorf("plugin %s does not export an ActionFactory", p)
		}

		pluginList = append(pluginList, factory)

		l.Info("Loaded action plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
