// Package scheduler drives time-based macro triggering: it periodically
// evaluates each enabled macro's schedule and publishes a scheduled trigger
// event when a due time is reached.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/workstack/macrod/pkg/eventbus"
	"github.com/workstack/macrod/pkg/events"
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/schedule"
)

// DefaultCheckInterval is how often due times are evaluated.
const DefaultCheckInterval = time.Minute

const sourceName = "scheduler"

// Scheduler tracks one due time per scheduled macro. A tick that arrives
// after several missed due times fires at most once per macro: the next due
// time is always recomputed from the current clock, never replayed.
type Scheduler struct {
	macros     persistence.MacroRepository
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
	interval   time.Duration
	now        func() time.Time

	due map[string]time.Time
}

func NewScheduler(
	macros persistence.MacroRepository,
	executions persistence.ExecutionRepository,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	interval time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	return &Scheduler{
		macros:     macros,
		executions: executions,
		publisher:  publisher,
		logger:     logger.With("module", "scheduler"),
		interval:   interval,
		now:        time.Now,
		due:        make(map[string]time.Time),
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now

	return s
}

// Start runs the evaluation loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Scheduler started", "check_interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Scheduler stopped")

			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every scheduled macro once against the current clock.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()

	macros, err := s.macros.Macros(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list macros", "error", err)

		return
	}

	seen := make(map[string]bool, len(macros))

	for _, macro := range macros {
		if !macro.Enabled || macro.Schedule == nil {
			continue
		}

		seen[macro.ID] = true
		s.evaluate(ctx, macro, now)
	}

	// Drop tracking for macros that disappeared or lost their schedule.
	for id := range s.due {
		if !seen[id] {
			delete(s.due, id)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context, macro *models.Macro, now time.Time) {
	next, tracked := s.due[macro.ID]
	if !tracked {
		computed, ok := schedule.NextExecution(macro.Schedule, now)
		if !ok {
			return
		}

		s.due[macro.ID] = computed

		return
	}

	if now.Before(next) {
		return
	}

	delete(s.due, macro.ID)

	if !s.underExecutionLimit(ctx, macro) {
		s.logger.InfoContext(ctx, "Macro reached its execution limit",
			"macro_id", macro.ID, "max_executions", macro.Schedule.MaxExecutions)

		return
	}

	s.fire(ctx, macro, next)

	if computed, ok := schedule.NextExecution(macro.Schedule, now); ok {
		s.due[macro.ID] = computed
	}
}

// underExecutionLimit enforces MaxExecutions against the persisted record
// count. Zero means unlimited.
func (s *Scheduler) underExecutionLimit(ctx context.Context, macro *models.Macro) bool {
	limit := macro.Schedule.MaxExecutions
	if limit <= 0 {
		return true
	}

	records, err := s.executions.ExecutionsByMacroID(ctx, macro.ID, persistence.ExecutionFilter{})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to count executions", "macro_id", macro.ID, "error", err)

		return false
	}

	return len(records) < limit
}

func (s *Scheduler) fire(ctx context.Context, macro *models.Macro, due time.Time) {
	trigger := models.NewTriggerEvent(models.TriggerScheduled, sourceName, map[string]any{
		models.PayloadKeyMacroID: macro.ID,
		"scheduled_for":          due.Format(time.RFC3339),
	})

	event := events.MacroTriggered{
		BaseEvent: events.NewBaseEvent(events.MacroTriggeredEvent, macro.ID),
		Trigger:   trigger,
	}

	if err := s.publisher.Publish(ctx, macro.ID, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish scheduled trigger", "macro_id", macro.ID, "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Scheduled trigger published", "macro_id", macro.ID, "due", due)
}
