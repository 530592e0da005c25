package file

import (
	"context"
	"os"
	"path"

	"github.com/workstack/macrod/pkg/models"
)

// WebhookConfigRepository reads webhook target configurations from JSON
// files, one per target id.
type WebhookConfigRepository struct {
	root string
}

func NewWebhookConfigRepository(root string) *WebhookConfigRepository {
	return &WebhookConfigRepository{root: root}
}

func (wr *WebhookConfigRepository) WebhookConfigByID(_ context.Context, id string) (*models.WebhookConfig, error) {
	config, err := readJSON[models.WebhookConfig](path.Join(wr.root, "webhook_configs", id+".json"))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	config.Normalize()

	return config, nil
}
