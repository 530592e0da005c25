// Package schedule computes the next qualifying execution instant for macro
// schedules. The calculator is a pure function of the schedule definition
// and a reference time: no I/O, no mutable state, no clock.
package schedule

import (
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/workstack/macrod/pkg/models"
)

// weeklyScanDays bounds the day-by-day scan for weekly schedules.
const weeklyScanDays = 7

// monthlyScanMonths bounds how far ahead monthly schedules look for a month
// containing a configured day. A schedule on day 31 skips months with fewer
// days rather than clamping.
const monthlyScanMonths = 12

// NextExecution returns the next execution instant strictly determined by
// the schedule and the reference time. Computation happens in the
// schedule's configured zone; the returned time carries that zone. The
// second return is false when the schedule produces no further executions.
//
// MaxExecutions is deliberately not consulted here: execution counts are
// tracked by the scheduler loop.
func NextExecution(s *models.MacroSchedule, after time.Time) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}

	loc, err := s.Location()
	if err != nil {
		return time.Time{}, false
	}

	if s.EndDateTime != nil && after.After(*s.EndDateTime) {
		return time.Time{}, false
	}

	zoned := after.In(loc)

	var (
		next time.Time
		ok   bool
	)

	switch s.Type {
	case models.ScheduleOneTime:
		next, ok = nextOneTime(s, after)
	case models.ScheduleHourly:
		next, ok = nextHourly(s, zoned, loc)
	case models.ScheduleDaily:
		next, ok = nextDaily(s, zoned, loc)
	case models.ScheduleWeekly:
		next, ok = nextWeekly(s, zoned, loc)
	case models.ScheduleMonthly:
		next, ok = nextMonthly(s, zoned, loc)
	case models.ScheduleCron:
		next, ok = nextCron(s, zoned)
	default:
		return time.Time{}, false
	}

	if !ok {
		return time.Time{}, false
	}

	if s.EndDateTime != nil && next.After(*s.EndDateTime) {
		return time.Time{}, false
	}

	return next, true
}

func nextOneTime(s *models.MacroSchedule, after time.Time) (time.Time, bool) {
	if s.StartDateTime == nil || after.After(*s.StartDateTime) {
		return time.Time{}, false
	}

	return *s.StartDateTime, true
}

// nextHourly returns the next hour boundary at least Interval hours after
// the reference time.
func nextHourly(s *models.MacroSchedule, zoned time.Time, loc *time.Location) (time.Time, bool) {
	interval := s.Interval
	if interval <= 0 {
		interval = 1
	}

	target := zoned.Add(time.Duration(interval) * time.Hour)

	boundary := time.Date(target.Year(), target.Month(), target.Day(), target.Hour(), 0, 0, 0, loc)
	if boundary.Before(target) {
		boundary = boundary.Add(time.Hour)
	}

	return boundary, true
}

func nextDaily(s *models.MacroSchedule, zoned time.Time, loc *time.Location) (time.Time, bool) {
	tod := s.ClockTime()

	next := dateAt(zoned.AddDate(0, 0, 1), tod, loc)
	if !next.After(zoned) {
		next = next.AddDate(0, 0, 1)
	}

	return next, true
}

func nextWeekly(s *models.MacroSchedule, zoned time.Time, loc *time.Location) (time.Time, bool) {
	tod := s.ClockTime()

	days := make(map[time.Weekday]bool, len(s.DaysOfWeek))
	for _, d := range s.DaysOfWeek {
		days[d] = true
	}

	// Empty day sets fall back to Monday rather than producing no schedule.
	if len(days) == 0 {
		days[time.Monday] = true
	}

	candidate := zoned

	for range weeklyScanDays {
		candidate = candidate.AddDate(0, 0, 1)
		if days[candidate.Weekday()] {
			return dateAt(candidate, tod, loc), true
		}
	}

	return time.Time{}, false
}

func nextMonthly(s *models.MacroSchedule, zoned time.Time, loc *time.Location) (time.Time, bool) {
	tod := s.ClockTime()

	days := append([]int(nil), s.DaysOfMonth...)
	if len(days) == 0 {
		days = []int{1}
	}

	sort.Ints(days)

	// Try the remaining days of the current month first.
	for _, day := range days {
		if day > daysInMonth(zoned.Year(), zoned.Month()) {
			continue
		}

		candidate := time.Date(zoned.Year(), zoned.Month(), day, tod.Hour, tod.Minute, 0, 0, loc)
		if candidate.After(zoned) {
			return candidate, true
		}
	}

	// Advance month by month, skipping a day number that does not exist in
	// the target month rather than clamping to its last day.
	for offset := 1; offset <= monthlyScanMonths; offset++ {
		first := time.Date(zoned.Year(), zoned.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, offset, 0)

		for _, day := range days {
			if day <= daysInMonth(first.Year(), first.Month()) {
				return time.Date(first.Year(), first.Month(), day, tod.Hour, tod.Minute, 0, 0, loc), true
			}
		}
	}

	return time.Time{}, false
}

func nextCron(s *models.MacroSchedule, zoned time.Time) (time.Time, bool) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	sched, err := parser.Parse(s.CronExpression)
	if err != nil {
		return time.Time{}, false
	}

	next := sched.Next(zoned)
	if next.IsZero() {
		return time.Time{}, false
	}

	return next, true
}

func dateAt(day time.Time, tod models.TimeOfDay, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
