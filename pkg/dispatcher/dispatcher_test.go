package dispatcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/otelhelper"
	"github.com/workstack/macrod/pkg/protocol"
	"github.com/workstack/macrod/pkg/registry"
	"github.com/workstack/macrod/pkg/runner"
	"github.com/workstack/macrod/pkg/services"
)

type memoryMacros struct {
	macros map[string]*models.Macro
}

func (m *memoryMacros) Macros(_ context.Context) ([]*models.Macro, error) {
	all := make([]*models.Macro, 0, len(m.macros))
	for _, macro := range m.macros {
		all = append(all, macro)
	}

	return all, nil
}

func (m *memoryMacros) MacroByID(_ context.Context, id string) (*models.Macro, error) {
	return m.macros[id], nil
}

// gateAction blocks until released, so tests can hold a macro in the
// running state deterministically.
type gateAction struct {
	started chan struct{}
	release chan struct{}
	runs    *atomic.Int32
}

func (a *gateAction) Execute(ctx context.Context, _ *models.Execution, _ *slog.Logger) (any, error) {
	a.runs.Add(1)

	select {
	case a.started <- struct{}{}:
	default:
	}

	select {
	case <-a.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type gateFactory struct {
	action *gateAction
}

func (f *gateFactory) ID() string { return "gate" }

func (f *gateFactory) Create(_ map[string]any) (protocol.Action, error) {
	return f.action, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func gateMacro(id string, strict bool) *models.Macro {
	return &models.Macro{
		ID:                 id,
		Name:               "gate macro",
		Enabled:            true,
		NonReentrantStrict: strict,
		Trigger: models.TriggerFilter{
			EventTypes: []models.TriggerEventType{models.TriggerItemUpdated},
		},
		Steps: []models.ActionStep{{ID: "s1", Type: "gate"}},
	}
}

func newTestDispatcher(t *testing.T, macros *memoryMacros, factories ...protocol.ActionFactory) (*Dispatcher, context.CancelFunc) {
	t.Helper()

	return newTestDispatcherWithWorkers(t, macros, 2, factories...)
}

func newTestDispatcherWithWorkers(t *testing.T, macros *memoryMacros, workers int, factories ...protocol.ActionFactory) (*Dispatcher, context.CancelFunc) {
	t.Helper()

	reg := registry.NewRegistry(testLogger())
	for _, f := range factories {
		reg.RegisterAction(f)
	}

	run := runner.NewRunner(reg, nil, nil, testLogger(), otelhelper.NewNoopTracer())
	d := NewDispatcher(macros, run, testLogger(), Config{Workers: workers})

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	t.Cleanup(func() {
		cancel()
		d.Wait()
	})

	return d, cancel
}

func targetedEvent(macroID string) *models.TriggerEvent {
	return models.NewTriggerEvent(models.TriggerManual, "test", map[string]any{
		models.PayloadKeyMacroID: macroID,
	})
}

func TestDispatchStrictMacroRejectsWhileRunning(t *testing.T) {
	t.Parallel()

	gate := &gateAction{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		runs:    &atomic.Int32{},
	}
	macros := &memoryMacros{macros: map[string]*models.Macro{
		"m1": gateMacro("m1", true),
	}}

	d, _ := newTestDispatcher(t, macros, &gateFactory{action: gate})

	result, err := d.Dispatch(context.Background(), targetedEvent("m1"))
	require.NoError(t, err)
	require.Len(t, result.Matched, 1)
	assert.False(t, result.Matched[0].Queued)

	// Wait for the execution to actually start.
	select {
	case <-gate.started:
	case <-time.After(time.Second):
		t.Fatal("execution never started")
	}

	// A second targeted event hits the concurrency gate.
	_, err = d.Dispatch(context.Background(), targetedEvent("m1"))
	assert.ErrorIs(t, err, services.ErrMacroBusy)

	close(gate.release)

	// Once the first execution finishes, the gate opens again.
	require.Eventually(t, func() bool {
		_, err := d.Dispatch(context.Background(), targetedEvent("m1"))

		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchQueuesForNonStrictMacro(t *testing.T) {
	t.Parallel()

	gate := &gateAction{
		started: make(chan struct{}, 1),
		release: make(chan struct{}, 2),
		runs:    &atomic.Int32{},
	}
	macros := &memoryMacros{macros: map[string]*models.Macro{
		"m1": gateMacro("m1", false),
	}}

	d, _ := newTestDispatcher(t, macros, &gateFactory{action: gate})

	first, err := d.Dispatch(context.Background(), targetedEvent("m1"))
	require.NoError(t, err)
	assert.False(t, first.Matched[0].Queued)

	select {
	case <-gate.started:
	case <-time.After(time.Second):
		t.Fatal("execution never started")
	}

	second, err := d.Dispatch(context.Background(), targetedEvent("m1"))
	require.NoError(t, err)
	require.Len(t, second.Matched, 1)
	assert.True(t, second.Matched[0].Queued, "second event should queue behind the running execution")

	// Release both executions; the queued one is promoted after the first.
	gate.release <- struct{}{}
	gate.release <- struct{}{}

	require.Eventually(t, func() bool {
		return gate.runs.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

type countAction struct {
	runs atomic.Int32
}

func (a *countAction) Execute(_ context.Context, _ *models.Execution, _ *slog.Logger) (any, error) {
	a.runs.Add(1)

	return nil, nil
}

type countFactory struct {
	action *countAction
}

func (f *countFactory) ID() string { return "count" }

func (f *countFactory) Create(_ map[string]any) (protocol.Action, error) {
	return f.action, nil
}

func TestDispatchSuspendedExecutionDoesNotStarveOthers(t *testing.T) {
	t.Parallel()

	counting := &countAction{}

	suspended := gateMacro("waiter", false)
	suspended.Steps = []models.ActionStep{{
		ID:            "wait",
		Type:          models.ActionDelay,
		Configuration: map[string]any{"duration_seconds": float64(300)},
	}}

	active := gateMacro("worker", false)
	active.Steps = []models.ActionStep{{ID: "c1", Type: "count"}}

	macros := &memoryMacros{macros: map[string]*models.Macro{
		"waiter": suspended,
		"worker": active,
	}}

	d, _ := newTestDispatcherWithWorkers(t, macros, 1, &countFactory{action: counting})

	_, err := d.Dispatch(context.Background(), targetedEvent("waiter"))
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), targetedEvent("worker"))
	require.NoError(t, err)

	// With one processing slot, the suspended execution must release it so
	// the second macro still runs.
	require.Eventually(t, func() bool {
		return counting.runs.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// orderAction records the order in which events reach execution, holding
// each execution until released.
type orderAction struct {
	mu      sync.Mutex
	order   []string
	started chan struct{}
	release chan struct{}
}

func (a *orderAction) Execute(ctx context.Context, execution *models.Execution, _ *slog.Logger) (any, error) {
	seq, _ := execution.TriggerContext.Payload["seq"].(string)

	a.mu.Lock()
	a.order = append(a.order, seq)
	a.mu.Unlock()

	select {
	case a.started <- struct{}{}:
	default:
	}

	select {
	case <-a.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type orderFactory struct {
	action *orderAction
}

func (f *orderFactory) ID() string { return "order" }

func (f *orderFactory) Create(_ map[string]any) (protocol.Action, error) {
	return f.action, nil
}

func TestDispatchDrainsQueueInOrder(t *testing.T) {
	t.Parallel()

	action := &orderAction{
		started: make(chan struct{}, 4),
		release: make(chan struct{}, 4),
	}

	macro := gateMacro("m1", false)
	macro.Steps = []models.ActionStep{{ID: "s1", Type: "order"}}
	macros := &memoryMacros{macros: map[string]*models.Macro{"m1": macro}}

	d, _ := newTestDispatcher(t, macros, &orderFactory{action: action})

	first := targetedEvent("m1")
	first.Payload["seq"] = "e1"

	_, err := d.Dispatch(context.Background(), first)
	require.NoError(t, err)

	select {
	case <-action.started:
	case <-time.After(time.Second):
		t.Fatal("execution never started")
	}

	for _, seq := range []string{"e2", "e3"} {
		event := targetedEvent("m1")
		event.Payload["seq"] = seq

		result, err := d.Dispatch(context.Background(), event)
		require.NoError(t, err)
		require.Len(t, result.Matched, 1)
		assert.True(t, result.Matched[0].Queued)
	}

	for range 3 {
		action.release <- struct{}{}
	}

	// Queued events drain in arrival order, none of them dropped.
	require.Eventually(t, func() bool {
		action.mu.Lock()
		defer action.mu.Unlock()

		return len(action.order) == 3
	}, time.Second, 10*time.Millisecond)

	action.mu.Lock()
	defer action.mu.Unlock()
	assert.Equal(t, []string{"e1", "e2", "e3"}, action.order)
}

func TestDispatchMatchesByFilter(t *testing.T) {
	t.Parallel()

	gate := &gateAction{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
		runs:    &atomic.Int32{},
	}
	close(gate.release)

	macros := &memoryMacros{macros: map[string]*models.Macro{
		"updated": gateMacro("updated", false),
		"comments": func() *models.Macro {
			m := gateMacro("comments", false)
			m.Trigger.EventTypes = []models.TriggerEventType{models.TriggerItemCommented}

			return m
		}(),
		"disabled": func() *models.Macro {
			m := gateMacro("disabled", false)
			m.Enabled = false

			return m
		}(),
	}}

	d, _ := newTestDispatcher(t, macros, &gateFactory{action: gate})

	event := models.NewTriggerEvent(models.TriggerItemUpdated, "tracker", map[string]any{
		models.PayloadKeyItemID: "wi-7",
	})

	result, err := d.Dispatch(context.Background(), event)
	require.NoError(t, err)

	// Only the enabled macro whose filter accepts work_item_updated matches.
	require.Len(t, result.Matched, 1)
	assert.Equal(t, "updated", result.Matched[0].MacroID)
}

func TestDispatchUnknownTargetedMacro(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(t, &memoryMacros{macros: map[string]*models.Macro{}})

	_, err := d.Dispatch(context.Background(), targetedEvent("missing"))
	assert.ErrorIs(t, err, services.ErrMacroNotFound)
}

func TestDispatchDisabledTargetedMacro(t *testing.T) {
	t.Parallel()

	macro := gateMacro("m1", false)
	macro.Enabled = false

	d, _ := newTestDispatcher(t, &memoryMacros{macros: map[string]*models.Macro{"m1": macro}})

	_, err := d.Dispatch(context.Background(), targetedEvent("m1"))
	assert.Error(t, err)
}
