// Package workitem provides the action implementations that mutate work
// items through the external work-item service.
package workitem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/services"
)

var (
	// ErrItemIDRequired is returned when a step needs an item id and none
	// was configured or carried by the trigger payload.
	ErrItemIDRequired = errors.New("missing 'item_id' in configuration")
	// ErrTitleRequired is returned when a create step has no title.
	ErrTitleRequired = errors.New("missing 'title' in configuration")
	// ErrTargetStateRequired is returned when a transition step has no
	// target state.
	ErrTargetStateRequired = errors.New("missing 'target_state' in configuration")
)

// Action delegates one work-item mutation to the external service. Service
// failures surface as action failures, never silently swallowed. The engine
// treats these operations as non-idempotent: they do not participate in
// retry.
type Action struct {
	Operation models.ActionType
	Config    map[string]any

	service services.WorkItemService
}

func NewAction(operation models.ActionType, config map[string]any, service services.WorkItemService) (*Action, error) {
	action := &Action{
		Operation: operation,
		Config:    config,
		service:   service,
	}

	if err := action.validate(); err != nil {
		return nil, err
	}

	return action, nil
}

func (a *Action) validate() error {
	switch a.Operation {
	case models.ActionCreateWorkItem:
		if title, _ := a.Config["title"].(string); title == "" {
			return ErrTitleRequired
		}
	case models.ActionTransitionWorkItem:
		if state, _ := a.Config["target_state"].(string); state == "" {
			return ErrTargetStateRequired
		}
	case models.ActionUpdateWorkItem, models.ActionAddComment, models.ActionAddRelationship:
	default:
		return fmt.Errorf("unsupported work item operation %q", a.Operation)
	}

	return nil
}

// Execute performs the configured mutation and returns the mutated item (or
// a confirmation map for comment/relationship operations).
func (a *Action) Execute(ctx context.Context, execution *models.Execution, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "workitem_action", "operation", string(a.Operation))

	itemID := a.itemID(execution)

	switch a.Operation {
	case models.ActionCreateWorkItem:
		title, _ := a.Config["title"].(string)
		fields, _ := a.Config["fields"].(map[string]any)

		item, err := a.service.CreateItem(ctx, title, fields)
		if err != nil {
			return nil, &services.DependencyError{Dependency: "work_item_service", Err: err}
		}

		logger.InfoContext(ctx, "Created work item", "item_id", item.ID)

		return item, nil

	case models.ActionUpdateWorkItem:
		if itemID == "" {
			return nil, ErrItemIDRequired
		}

		fields, _ := a.Config["fields"].(map[string]any)

		item, err := a.service.UpdateItem(ctx, itemID, fields)
		if err != nil {
			return nil, &services.DependencyError{Dependency: "work_item_service", Err: err}
		}

		return item, nil

	case models.ActionTransitionWorkItem:
		if itemID == "" {
			return nil, ErrItemIDRequired
		}

		targetState, _ := a.Config["target_state"].(string)

		item, err := a.service.TransitionItem(ctx, itemID, targetState)
		if err != nil {
			return nil, &services.DependencyError{Dependency: "work_item_service", Err: err}
		}

		logger.InfoContext(ctx, "Transitioned work item", "item_id", itemID, "target_state", targetState)

		return item, nil

	case models.ActionAddComment:
		if itemID == "" {
			return nil, ErrItemIDRequired
		}

		author, _ := a.Config["author"].(string)
		text, _ := a.Config["text"].(string)

		if err := a.service.AddComment(ctx, itemID, author, text); err != nil {
			return nil, &services.DependencyError{Dependency: "work_item_service", Err: err}
		}

		return map[string]any{"item_id": itemID, "commented": true}, nil

	case models.ActionAddRelationship:
		if itemID == "" {
			return nil, ErrItemIDRequired
		}

		relatedID, _ := a.Config["related_id"].(string)
		relationType, _ := a.Config["relation_type"].(string)

		if err := a.service.AddRelationship(ctx, itemID, relatedID, relationType); err != nil {
			return nil, &services.DependencyError{Dependency: "work_item_service", Err: err}
		}

		return map[string]any{"item_id": itemID, "related_id": relatedID, "relation_type": relationType}, nil

	default:
		return nil, fmt.Errorf("unsupported work item operation %q", a.Operation)
	}
}

// itemID resolves the target item: explicit configuration wins, then the
// trigger payload's item id.
func (a *Action) itemID(execution *models.Execution) string {
	if id, _ := a.Config["item_id"].(string); id != "" {
		return id
	}

	if execution.TriggerContext != nil {
		return execution.TriggerContext.ItemID()
	}

	return ""
}
