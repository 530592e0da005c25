package webhook

import (
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/protocol"
	"github.com/workstack/macrod/pkg/ratelimit"
)

// Factory builds webhook actions of one kind (call, JSON, form). All kinds
// share the config store and the rate limiter.
type Factory struct {
	kind    models.ActionType
	configs persistence.WebhookConfigRepository
	limiter *ratelimit.Limiter
}

func NewFactory(kind models.ActionType, configs persistence.WebhookConfigRepository, limiter *ratelimit.Limiter) *Factory {
	return &Factory{kind: kind, configs: configs, limiter: limiter}
}

func (f *Factory) ID() string {
	return string(f.kind)
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(f.kind, config, f.configs, f.limiter)
}
