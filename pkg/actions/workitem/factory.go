package workitem

import (
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/protocol"
	"github.com/workstack/macrod/pkg/services"
)

// Factory builds work-item actions for one operation. One factory instance
// is registered per work-item action type.
type Factory struct {
	operation models.ActionType
	service   services.WorkItemService
}

func NewFactory(operation models.ActionType, service services.WorkItemService) *Factory {
	return &Factory{operation: operation, service: service}
}

func (f *Factory) ID() string {
	return string(f.operation)
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(f.operation, config, f.service)
}
