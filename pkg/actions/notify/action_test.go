package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstack/macrod/pkg/services"
)

type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, target, message string) error {
	if n.err != nil {
		return n.err
	}

	n.sent = append(n.sent, target+": "+message)

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNewActionValidation(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}

	_, err := NewAction(map[string]any{"message": "hi"}, notifier)
	assert.ErrorIs(t, err, ErrTargetRequired)

	_, err = NewAction(map[string]any{"target": "ops"}, notifier)
	assert.ErrorIs(t, err, ErrMessageRequired)
}

func TestExecuteDelivers(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}

	action, err := NewAction(map[string]any{"target": "ops", "message": "deploy finished"}, notifier)
	require.NoError(t, err)

	output, err := action.Execute(context.Background(), nil, testLogger())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"target": "ops", "delivered": true}, output)
	assert.Equal(t, []string{"ops: deploy finished"}, notifier.sent)
}

func TestExecuteWrapsDeliveryFailure(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{err: errors.New("smtp down")}

	action, err := NewAction(map[string]any{"target": "ops", "message": "hi"}, notifier)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), nil, testLogger())
	require.Error(t, err)
	assert.True(t, services.IsDependencyError(err))
}

func TestFactoryCreatesConfiguredAction(t *testing.T) {
	t.Parallel()

	factory := NewFactory(&fakeNotifier{})
	assert.Equal(t, "send_notification", factory.ID())

	action, err := factory.Create(map[string]any{"target": "ops", "message": "hi"})
	require.NoError(t, err)
	assert.NotNil(t, action)
}
