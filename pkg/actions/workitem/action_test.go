package workitem

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/services"
)

type fakeService struct {
	created      []string
	updated      map[string]map[string]any
	transitioned map[string]string
	comments     []string
	relations    []string
	err          error
}

func newFakeService() *fakeService {
	return &fakeService{
		updated:      make(map[string]map[string]any),
		transitioned: make(map[string]string),
	}
}

func (s *fakeService) CreateItem(_ context.Context, title string, fields map[string]any) (*services.WorkItem, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.created = append(s.created, title)

	return &services.WorkItem{ID: "wi-new", Title: title, Fields: fields}, nil
}

func (s *fakeService) UpdateItem(_ context.Context, itemID string, fields map[string]any) (*services.WorkItem, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.updated[itemID] = fields

	return &services.WorkItem{ID: itemID}, nil
}

func (s *fakeService) TransitionItem(_ context.Context, itemID, targetState string) (*services.WorkItem, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.transitioned[itemID] = targetState

	return &services.WorkItem{ID: itemID, State: targetState}, nil
}

func (s *fakeService) AddComment(_ context.Context, itemID, author, text string) error {
	if s.err != nil {
		return s.err
	}

	s.comments = append(s.comments, itemID+":"+author+":"+text)

	return nil
}

func (s *fakeService) AddRelationship(_ context.Context, itemID, relatedID, relationType string) error {
	if s.err != nil {
		return s.err
	}

	s.relations = append(s.relations, itemID+"->"+relatedID+":"+relationType)

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func executionWithItem(itemID string) *models.Execution {
	macro := &models.Macro{ID: "macro-1", Steps: []models.ActionStep{{ID: "s1", Type: models.ActionUpdateWorkItem}}}

	payload := map[string]any{}
	if itemID != "" {
		payload[models.PayloadKeyItemID] = itemID
	}

	return models.NewExecution(macro, models.NewTriggerEvent(models.TriggerItemUpdated, "tracker", payload))
}

func TestNewActionValidation(t *testing.T) {
	t.Parallel()

	service := newFakeService()

	tests := []struct {
		name      string
		operation models.ActionType
		config    map[string]any
		wantErr   error
	}{
		{
			name:      "create requires title",
			operation: models.ActionCreateWorkItem,
			config:    map[string]any{},
			wantErr:   ErrTitleRequired,
		},
		{
			name:      "transition requires target state",
			operation: models.ActionTransitionWorkItem,
			config:    map[string]any{},
			wantErr:   ErrTargetStateRequired,
		},
		{
			name:      "update has no static requirements",
			operation: models.ActionUpdateWorkItem,
			config:    map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewAction(tt.operation, tt.config, service)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := NewAction("drop_work_item", map[string]any{}, service)
	assert.Error(t, err)
}

func TestExecuteCreateItem(t *testing.T) {
	t.Parallel()

	service := newFakeService()

	action, err := NewAction(models.ActionCreateWorkItem, map[string]any{
		"title":  "New incident",
		"fields": map[string]any{"priority": "high"},
	}, service)
	require.NoError(t, err)

	output, err := action.Execute(context.Background(), executionWithItem(""), testLogger())
	require.NoError(t, err)

	item, ok := output.(*services.WorkItem)
	require.True(t, ok)
	assert.Equal(t, "New incident", item.Title)
	assert.Equal(t, []string{"New incident"}, service.created)
}

func TestExecuteUpdateUsesConfiguredItemID(t *testing.T) {
	t.Parallel()

	service := newFakeService()

	action, err := NewAction(models.ActionUpdateWorkItem, map[string]any{
		"item_id": "wi-explicit",
		"fields":  map[string]any{"state": "done"},
	}, service)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionWithItem("wi-from-trigger"), testLogger())
	require.NoError(t, err)

	assert.Contains(t, service.updated, "wi-explicit", "explicit configuration wins over the trigger payload")
}

func TestExecuteUpdateFallsBackToTriggerItem(t *testing.T) {
	t.Parallel()

	service := newFakeService()

	action, err := NewAction(models.ActionUpdateWorkItem, map[string]any{}, service)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionWithItem("wi-from-trigger"), testLogger())
	require.NoError(t, err)

	assert.Contains(t, service.updated, "wi-from-trigger")
}

func TestExecuteUpdateWithoutItemID(t *testing.T) {
	t.Parallel()

	action, err := NewAction(models.ActionUpdateWorkItem, map[string]any{}, newFakeService())
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionWithItem(""), testLogger())
	assert.ErrorIs(t, err, ErrItemIDRequired)
}

func TestExecuteTransition(t *testing.T) {
	t.Parallel()

	service := newFakeService()

	action, err := NewAction(models.ActionTransitionWorkItem, map[string]any{"target_state": "in_review"}, service)
	require.NoError(t, err)

	output, err := action.Execute(context.Background(), executionWithItem("wi-1"), testLogger())
	require.NoError(t, err)

	item, ok := output.(*services.WorkItem)
	require.True(t, ok)
	assert.Equal(t, "in_review", item.State)
	assert.Equal(t, "in_review", service.transitioned["wi-1"])
}

func TestExecuteAddComment(t *testing.T) {
	t.Parallel()

	service := newFakeService()

	action, err := NewAction(models.ActionAddComment, map[string]any{
		"author": "macro",
		"text":   "done automatically",
	}, service)
	require.NoError(t, err)

	output, err := action.Execute(context.Background(), executionWithItem("wi-1"), testLogger())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"item_id": "wi-1", "commented": true}, output)
	assert.Equal(t, []string{"wi-1:macro:done automatically"}, service.comments)
}

func TestExecuteAddRelationship(t *testing.T) {
	t.Parallel()

	service := newFakeService()

	action, err := NewAction(models.ActionAddRelationship, map[string]any{
		"related_id":    "wi-2",
		"relation_type": "blocks",
	}, service)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionWithItem("wi-1"), testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"wi-1->wi-2:blocks"}, service.relations)
}

func TestExecuteWrapsServiceFailures(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	service.err = errors.New("service down")

	action, err := NewAction(models.ActionCreateWorkItem, map[string]any{"title": "x"}, service)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), executionWithItem(""), testLogger())
	require.Error(t, err)
	assert.True(t, services.IsDependencyError(err), "service failures surface as dependency errors, got %v", err)
}
