package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType represents the different kinds of macro schedules.
type ScheduleType string

const (
	ScheduleOneTime ScheduleType = "one_time" // Execute once at a specific time
	ScheduleHourly  ScheduleType = "hourly"   // Execute every X hours
	ScheduleDaily   ScheduleType = "daily"    // Execute every day at a specific time
	ScheduleWeekly  ScheduleType = "weekly"   // Execute on specific days of the week
	ScheduleMonthly ScheduleType = "monthly"  // Execute on specific days of the month
	ScheduleCron    ScheduleType = "cron"     // Execute per a standard 5-field cron expression
)

// TimeOfDay is a wall-clock time without a date, in the schedule's zone.
type TimeOfDay struct {
	Hour   int `json:"hour"   validate:"min=0,max=23"`
	Minute int `json:"minute" validate:"min=0,max=59"`
}

// MacroSchedule defines when a schedule-bearing macro should run. It is
// owned by the macro definition and read-only to the engine. Exactly one of
// the type-specific field groups is meaningful per Type.
type MacroSchedule struct {
	Type ScheduleType `json:"type" validate:"required"`

	// StartDateTime is the execution instant for ONE_TIME schedules.
	StartDateTime *time.Time `json:"start_date_time,omitempty"`

	// TimeOfDay applies to DAILY, WEEKLY and MONTHLY schedules. Nil means
	// midnight.
	TimeOfDay *TimeOfDay `json:"time_of_day,omitempty"`

	// DaysOfWeek applies to WEEKLY schedules. Empty behaves as if it
	// contained only Monday.
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`

	// DaysOfMonth applies to MONTHLY schedules (1-31). Empty behaves as if
	// it contained only day 1.
	DaysOfMonth []int `json:"days_of_month,omitempty"`

	// Interval is the hour step for HOURLY schedules. Non-positive values
	// behave as 1.
	Interval int `json:"interval,omitempty"`

	// CronExpression applies to CRON schedules, standard 5-field format.
	CronExpression string `json:"cron_expression,omitempty"`

	// TimeZone is an IANA zone name. Empty means UTC.
	TimeZone string `json:"time_zone,omitempty"`

	// EndDateTime, when set, stops the schedule from producing executions
	// past it.
	EndDateTime *time.Time `json:"end_date_time,omitempty"`

	// MaxExecutions, when positive, caps how many times the macro fires.
	// The cap is enforced by the scheduler loop, not the calculator.
	MaxExecutions int `json:"max_executions,omitempty"`
}

var (
	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
)

// Location resolves the schedule's time zone, defaulting to UTC.
func (s *MacroSchedule) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}

	return time.LoadLocation(s.TimeZone)
}

// ClockTime returns the configured time of day, defaulting to midnight.
func (s *MacroSchedule) ClockTime() TimeOfDay {
	if s.TimeOfDay == nil {
		return TimeOfDay{Hour: 0, Minute: 0}
	}

	return *s.TimeOfDay
}

// Validate performs structural validation on the schedule fields.
func (s *MacroSchedule) Validate() error {
	switch s.Type {
	case ScheduleOneTime:
		if s.StartDateTime == nil {
			return ErrInvalidSchedule
		}
	case ScheduleHourly, ScheduleDaily, ScheduleWeekly:
	case ScheduleMonthly:
		for _, day := range s.DaysOfMonth {
			if day < 1 || day > 31 {
				return ErrInvalidSchedule
			}
		}
	case ScheduleCron:
		if s.CronExpression == "" {
			return ErrInvalidSchedule
		}

		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(s.CronExpression); err != nil {
			return err
		}
	default:
		return ErrInvalidSchedule
	}

	if s.TimeZone != "" {
		if _, err := time.LoadLocation(s.TimeZone); err != nil {
			return err
		}
	}

	return nil
}
