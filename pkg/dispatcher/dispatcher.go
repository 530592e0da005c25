// Package dispatcher receives trigger events, matches them against macro
// trigger filters and hands qualifying events to the macro runner, enforcing
// at most one running execution per macro. Each execution runs in its own
// goroutine; the runner's processing-slot gate bounds how many execute
// action steps concurrently, so suspended executions (delay, user prompt)
// never starve the others.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/runner"
	"github.com/workstack/macrod/pkg/services"
)

const (
	// DefaultWorkers bounds how many executions process action steps at
	// once.
	DefaultWorkers = 4
	// DefaultMacroQueueSize bounds the per-macro queue of events waiting
	// behind a running execution.
	DefaultMacroQueueSize = 16
)

// MacroDispatch describes the outcome for one matched macro.
type MacroDispatch struct {
	MacroID string `json:"macro_id"`
	Queued  bool   `json:"queued"`
}

// Result reports which macros a trigger event reached.
type Result struct {
	EventID string          `json:"event_id"`
	Matched []MacroDispatch `json:"matched"`
}

// macroState is the per-macro concurrency gate: at most one running
// execution, with a bounded queue of waiting events behind it.
type macroState struct {
	running bool
	queue   []*models.TriggerEvent
}

type Config struct {
	// Workers bounds concurrently processing executions; suspended
	// executions do not count against it.
	Workers        int
	MacroQueueSize int
}

// Dispatcher is a singleton coordinator. Dispatch is safe for concurrent
// use; the gate map is the only shared state and is mutated under the lock.
type Dispatcher struct {
	macros persistence.MacroRepository
	runner *runner.Runner
	logger *slog.Logger
	config Config

	mu     sync.Mutex
	states map[string]*macroState
	runCtx context.Context

	wg sync.WaitGroup
}

func NewDispatcher(macros persistence.MacroRepository, run *runner.Runner, logger *slog.Logger, config Config) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}

	if config.MacroQueueSize <= 0 {
		config.MacroQueueSize = DefaultMacroQueueSize
	}

	run.WithActiveLimit(config.Workers)

	return &Dispatcher{
		macros: macros,
		runner: run,
		logger: logger.With("module", "trigger_dispatcher"),
		config: config,
		states: make(map[string]*macroState),
		runCtx: context.Background(),
	}
}

// Start records the lifecycle context executions run under. Cancelling it
// stops running executions at their next checkpoint and wakes suspended
// ones.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.runCtx = ctx
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Dispatcher started", "workers", d.config.Workers)
}

// Wait blocks until all execution goroutines have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch matches the event and starts or queues an execution per matched
// macro. An event explicitly targeting a non-reentrant-strict macro that is
// already running returns services.ErrMacroBusy.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.TriggerEvent) (*Result, error) {
	matched, err := d.matchMacros(ctx, event)
	if err != nil {
		return nil, err
	}

	targeted := event.MacroID() != ""
	result := &Result{EventID: event.ID, Matched: make([]MacroDispatch, 0, len(matched))}

	for _, macro := range matched {
		queued, err := d.admit(macro, event)
		if err != nil {
			if targeted {
				return nil, err
			}

			d.logger.WarnContext(ctx, "Macro busy, event rejected",
				"macro_id", macro.ID, "event_id", event.ID, "error", err)

			continue
		}

		result.Matched = append(result.Matched, MacroDispatch{MacroID: macro.ID, Queued: queued})
	}

	return result, nil
}

// matchMacros resolves the macros an event qualifies for. Events carrying
// an explicit macro id bypass filter matching for that macro.
func (d *Dispatcher) matchMacros(ctx context.Context, event *models.TriggerEvent) ([]*models.Macro, error) {
	if macroID := event.MacroID(); macroID != "" {
		macro, err := d.macros.MacroByID(ctx, macroID)
		if err != nil {
			return nil, err
		}

		if macro == nil {
			return nil, services.ErrMacroNotFound
		}

		if !macro.Enabled {
			return nil, fmt.Errorf("macro %s is disabled", macroID)
		}

		return []*models.Macro{macro}, nil
	}

	all, err := d.macros.Macros(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Macro, 0)

	for _, macro := range all {
		if macro.Enabled && macro.Trigger.Matches(event) {
			matched = append(matched, macro)
		}
	}

	return matched, nil
}

// admit applies the per-macro concurrency gate under the lock: start the
// macro if idle, queue the event if running, or reject when the macro is
// non-reentrant-strict or its queue is full.
func (d *Dispatcher) admit(macro *models.Macro, event *models.TriggerEvent) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.states[macro.ID]
	if !ok {
		state = &macroState{}
		d.states[macro.ID] = state
	}

	if !state.running {
		state.running = true
		d.launch(macro, event)

		return false, nil
	}

	if macro.NonReentrantStrict {
		return false, services.ErrMacroBusy
	}

	if len(state.queue) >= d.config.MacroQueueSize {
		return false, fmt.Errorf("macro %s queue is full", macro.ID)
	}

	state.queue = append(state.queue, event)

	return true, nil
}

// launch runs one execution in its own goroutine. Callers hold the lock.
func (d *Dispatcher) launch(macro *models.Macro, event *models.TriggerEvent) {
	ctx := d.runCtx

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		d.run(ctx, macro, event, d.logger)
	}()
}

func (d *Dispatcher) run(ctx context.Context, macro *models.Macro, event *models.TriggerEvent, logger *slog.Logger) {
	execution, err := d.runner.Execute(ctx, macro, event)
	if err != nil {
		logger.ErrorContext(ctx, "Execution error", "macro_id", macro.ID, "error", err)
	} else {
		logger.InfoContext(ctx, "Execution finished",
			"macro_id", macro.ID, "execution_id", execution.ID, "status", string(execution.Status))
	}

	d.finish(macro)
}

// finish releases the macro's gate or promotes the next queued event, in
// arrival order.
func (d *Dispatcher) finish(macro *models.Macro) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.states[macro.ID]
	if !ok {
		return
	}

	if len(state.queue) == 0 {
		state.running = false

		return
	}

	next := state.queue[0]
	state.queue = state.queue[1:]
	d.launch(macro, next)
}
