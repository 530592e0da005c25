// Package redis provides Redis-backed persistence for macro definitions,
// webhook configurations and execution records.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
)

const (
	macroKeyPrefix     = "macrod:macro:"
	webhookKeyPrefix   = "macrod:webhook_config:"
	executionKeyPrefix = "macrod:execution:"
	// macroExecutionsKeyPrefix indexes execution ids per macro, newest
	// first (LPUSH).
	macroExecutionsKeyPrefix = "macrod:macro_executions:"
)

// Persistence implements persistence.Persistence on a Redis instance. Each
// record is one JSON string value; executions carry a per-macro list index.
type Persistence struct {
	client *redis.Client
}

// NewPersistence connects to the Redis instance named by url, e.g.
// redis://localhost:6379/0.
func NewPersistence(url string) (*Persistence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Persistence{client: redis.NewClient(opts)}, nil
}

func (rp *Persistence) HealthCheck(ctx context.Context) error {
	return rp.client.Ping(ctx).Err()
}

func (rp *Persistence) Close(_ context.Context) error {
	return rp.client.Close()
}

func (rp *Persistence) Macros(ctx context.Context) ([]*models.Macro, error) {
	macros := make([]*models.Macro, 0)

	iter := rp.client.Scan(ctx, 0, macroKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), macroKeyPrefix)

		macro, err := rp.MacroByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if macro != nil {
			macros = append(macros, macro)
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan macros: %w", err)
	}

	return macros, nil
}

func (rp *Persistence) MacroByID(ctx context.Context, id string) (*models.Macro, error) {
	return getJSON[models.Macro](ctx, rp.client, macroKeyPrefix+id)
}

func (rp *Persistence) WebhookConfigByID(ctx context.Context, id string) (*models.WebhookConfig, error) {
	config, err := getJSON[models.WebhookConfig](ctx, rp.client, webhookKeyPrefix+id)
	if err != nil || config == nil {
		return nil, err
	}

	config.Normalize()

	return config, nil
}

func (rp *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to encode execution %s: %w", execution.ID, err)
	}

	key := executionKeyPrefix + execution.ID
	indexKey := macroExecutionsKeyPrefix + execution.MacroID

	// Index only on first save; later saves overwrite the document.
	exists, err := rp.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}

	pipe := rp.client.Pipeline()
	pipe.Set(ctx, key, data, 0)

	if exists == 0 {
		pipe.LPush(ctx, indexKey, execution.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

func (rp *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return getJSON[models.Execution](ctx, rp.client, executionKeyPrefix+id)
}

func (rp *Persistence) ExecutionsByMacroID(ctx context.Context, macroID string, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	ids, err := rp.client.LRange(ctx, macroExecutionsKeyPrefix+macroID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for macro %s: %w", macroID, err)
	}

	executions := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := rp.ExecutionByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if execution == nil {
			continue
		}

		if filter.Status != "" && execution.Status != filter.Status {
			continue
		}

		executions = append(executions, execution)

		if filter.Limit > 0 && len(executions) >= filter.Limit {
			break
		}
	}

	return executions, nil
}

func getJSON[T any](ctx context.Context, client *redis.Client, key string) (*T, error) {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	doc := new(T)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return doc, nil
}
