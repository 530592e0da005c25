package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workstack/macrod/pkg/models"
)

func timeAt(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}

	return t
}

func TestNextExecutionOneTime(t *testing.T) {
	t.Parallel()

	start := timeAt("2026-09-01T10:00:00Z")

	tests := []struct {
		name     string
		after    time.Time
		expected time.Time
		fires    bool
	}{
		{
			name:     "before the start fires at the start",
			after:    timeAt("2026-08-30T00:00:00Z"),
			expected: start,
			fires:    true,
		},
		{
			name:     "exactly at the start still fires",
			after:    start,
			expected: start,
			fires:    true,
		},
		{
			name:  "past the start never fires",
			after: timeAt("2026-09-01T10:00:01Z"),
			fires: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &models.MacroSchedule{Type: models.ScheduleOneTime, StartDateTime: &start}

			next, ok := NextExecution(s, tt.after)
			assert.Equal(t, tt.fires, ok)

			if tt.fires {
				assert.True(t, next.Equal(tt.expected))
			}
		})
	}
}

func TestNextExecutionHourly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interval int
		after    string
		expected string
	}{
		{
			name:     "mid-hour rounds up to the next boundary",
			interval: 1,
			after:    "2026-08-23T10:30:00Z",
			expected: "2026-08-23T12:00:00Z",
		},
		{
			name:     "on the boundary lands exactly interval later",
			interval: 1,
			after:    "2026-08-23T10:00:00Z",
			expected: "2026-08-23T11:00:00Z",
		},
		{
			name:     "zero interval behaves as one",
			interval: 0,
			after:    "2026-08-23T10:00:00Z",
			expected: "2026-08-23T11:00:00Z",
		},
		{
			name:     "multi-hour interval",
			interval: 6,
			after:    "2026-08-23T10:15:00Z",
			expected: "2026-08-23T17:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &models.MacroSchedule{Type: models.ScheduleHourly, Interval: tt.interval}

			next, ok := NextExecution(s, timeAt(tt.after))
			require.True(t, ok)
			assert.True(t, next.Equal(timeAt(tt.expected)), "got %s", next)
		})
	}
}

func TestNextExecutionDaily(t *testing.T) {
	t.Parallel()

	s := &models.MacroSchedule{
		Type:      models.ScheduleDaily,
		TimeOfDay: &models.TimeOfDay{Hour: 9, Minute: 0},
	}

	next, ok := NextExecution(s, timeAt("2026-03-10T08:00:00Z"))
	require.True(t, ok)
	assert.True(t, next.Equal(timeAt("2026-03-11T09:00:00Z")), "got %s", next)

	// Strictly after: asking again from the result gives the following day.
	next2, ok := NextExecution(s, next)
	require.True(t, ok)
	assert.True(t, next2.Equal(timeAt("2026-03-12T09:00:00Z")), "got %s", next2)
}

func TestNextExecutionDailyDefaultsToMidnight(t *testing.T) {
	t.Parallel()

	s := &models.MacroSchedule{Type: models.ScheduleDaily}

	next, ok := NextExecution(s, timeAt("2026-03-10T23:59:00Z"))
	require.True(t, ok)
	assert.True(t, next.Equal(timeAt("2026-03-11T00:00:00Z")), "got %s", next)
}

func TestNextExecutionWeekly(t *testing.T) {
	t.Parallel()

	// 2026-08-23 is a Sunday.
	after := timeAt("2026-08-23T12:00:00Z")

	tests := []struct {
		name     string
		days     []time.Weekday
		expected string
	}{
		{
			name:     "next configured day",
			days:     []time.Weekday{time.Wednesday},
			expected: "2026-08-26T09:30:00Z",
		},
		{
			name:     "several days picks the soonest",
			days:     []time.Weekday{time.Friday, time.Tuesday},
			expected: "2026-08-25T09:30:00Z",
		},
		{
			name:     "same weekday comes a full week later",
			days:     []time.Weekday{time.Sunday},
			expected: "2026-08-30T09:30:00Z",
		},
		{
			name:     "empty day set falls back to Monday",
			days:     nil,
			expected: "2026-08-24T09:30:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &models.MacroSchedule{
				Type:       models.ScheduleWeekly,
				TimeOfDay:  &models.TimeOfDay{Hour: 9, Minute: 30},
				DaysOfWeek: tt.days,
			}

			next, ok := NextExecution(s, after)
			require.True(t, ok)
			assert.True(t, next.Equal(timeAt(tt.expected)), "got %s", next)
		})
	}
}

func TestNextExecutionMonthly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		days     []int
		after    string
		expected string
	}{
		{
			name:     "later day in the current month",
			days:     []int{15},
			after:    "2026-04-10T00:00:00Z",
			expected: "2026-04-15T08:00:00Z",
		},
		{
			name:     "day already passed rolls to next month",
			days:     []int{5},
			after:    "2026-04-10T00:00:00Z",
			expected: "2026-05-05T08:00:00Z",
		},
		{
			name:     "day 31 skips February entirely",
			days:     []int{31},
			after:    "2026-01-31T09:00:00Z",
			expected: "2026-03-31T08:00:00Z",
		},
		{
			name:     "empty day set falls back to the first",
			days:     nil,
			after:    "2026-04-10T00:00:00Z",
			expected: "2026-05-01T08:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &models.MacroSchedule{
				Type:        models.ScheduleMonthly,
				TimeOfDay:   &models.TimeOfDay{Hour: 8, Minute: 0},
				DaysOfMonth: tt.days,
			}

			next, ok := NextExecution(s, timeAt(tt.after))
			require.True(t, ok)
			assert.True(t, next.Equal(timeAt(tt.expected)), "got %s", next)
		})
	}
}

func TestNextExecutionCron(t *testing.T) {
	t.Parallel()

	s := &models.MacroSchedule{
		Type:           models.ScheduleCron,
		CronExpression: "0 9 * * 1-5",
	}

	// Friday evening rolls to Monday morning.
	next, ok := NextExecution(s, timeAt("2026-08-21T18:00:00Z"))
	require.True(t, ok)
	assert.True(t, next.Equal(timeAt("2026-08-24T09:00:00Z")), "got %s", next)
}

func TestNextExecutionEndDateTime(t *testing.T) {
	t.Parallel()

	end := timeAt("2026-03-11T00:00:00Z")
	s := &models.MacroSchedule{
		Type:        models.ScheduleDaily,
		TimeOfDay:   &models.TimeOfDay{Hour: 9, Minute: 0},
		EndDateTime: &end,
	}

	// The next daily slot falls past the end.
	_, ok := NextExecution(s, timeAt("2026-03-10T10:00:00Z"))
	assert.False(t, ok)

	// The reference time itself is past the end.
	_, ok = NextExecution(s, timeAt("2026-04-01T00:00:00Z"))
	assert.False(t, ok)
}

func TestNextExecutionTimeZone(t *testing.T) {
	t.Parallel()

	s := &models.MacroSchedule{
		Type:      models.ScheduleDaily,
		TimeOfDay: &models.TimeOfDay{Hour: 9, Minute: 0},
		TimeZone:  "America/New_York",
	}

	// 2026-06-10 12:00 UTC is 08:00 in New York; the next execution is the
	// following day 09:00 Eastern (13:00 UTC under EDT).
	next, ok := NextExecution(s, timeAt("2026-06-10T12:00:00Z"))
	require.True(t, ok)
	assert.True(t, next.Equal(timeAt("2026-06-11T13:00:00Z")), "got %s", next)
}

func TestNextExecutionIsPure(t *testing.T) {
	t.Parallel()

	s := &models.MacroSchedule{
		Type:        models.ScheduleMonthly,
		TimeOfDay:   &models.TimeOfDay{Hour: 6, Minute: 45},
		DaysOfMonth: []int{31, 15},
	}

	after := timeAt("2026-01-20T00:00:00Z")

	first, ok := NextExecution(s, after)
	require.True(t, ok)

	for range 5 {
		again, ok := NextExecution(s, after)
		require.True(t, ok)
		assert.True(t, again.Equal(first))
	}
}

func TestNextExecutionNilAndInvalid(t *testing.T) {
	t.Parallel()

	_, ok := NextExecution(nil, time.Now())
	assert.False(t, ok)

	_, ok = NextExecution(&models.MacroSchedule{Type: "bogus"}, time.Now())
	assert.False(t, ok)

	_, ok = NextExecution(&models.MacroSchedule{Type: models.ScheduleCron, CronExpression: "not cron"}, time.Now())
	assert.False(t, ok)
}
