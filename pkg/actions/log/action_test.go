package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstack/macrod/pkg/models"
)

func testExecution() *models.Execution {
	macro := &models.Macro{ID: "macro-1", Steps: []models.ActionStep{{ID: "s1", Type: models.ActionLog}}}

	return models.NewExecution(macro, models.NewTriggerEvent(models.TriggerManual, "test", nil))
}

func TestNewActionRequiresMessage(t *testing.T) {
	t.Parallel()

	_, err := NewAction(map[string]any{})
	assert.ErrorIs(t, err, ErrMessageRequired)
}

func TestNewActionDefaultsLevel(t *testing.T) {
	t.Parallel()

	action, err := NewAction(map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "info", action.Level)
}

func TestExecuteWritesToLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	action, err := NewAction(map[string]any{"message": "checkpoint reached", "level": "warn"})
	require.NoError(t, err)

	output, err := action.Execute(context.Background(), testExecution(), logger)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"logged_message": "checkpoint reached", "level": "warn"}, output)
	assert.Contains(t, buf.String(), "checkpoint reached")
	assert.Contains(t, buf.String(), "WARN")
}

func TestFactoryID(t *testing.T) {
	t.Parallel()

	factory := NewFactory()
	assert.Equal(t, "log", factory.ID())

	action, err := factory.Create(map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.NotNil(t, action)
}
