package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacroScheduleValidate(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule MacroSchedule
		wantErr  bool
	}{
		{
			name:     "one time with start",
			schedule: MacroSchedule{Type: ScheduleOneTime, StartDateTime: &start},
		},
		{
			name:     "one time without start",
			schedule: MacroSchedule{Type: ScheduleOneTime},
			wantErr:  true,
		},
		{
			name:     "hourly needs nothing",
			schedule: MacroSchedule{Type: ScheduleHourly},
		},
		{
			name:     "monthly valid days",
			schedule: MacroSchedule{Type: ScheduleMonthly, DaysOfMonth: []int{1, 15, 31}},
		},
		{
			name:     "monthly day out of range",
			schedule: MacroSchedule{Type: ScheduleMonthly, DaysOfMonth: []int{0}},
			wantErr:  true,
		},
		{
			name:     "cron valid expression",
			schedule: MacroSchedule{Type: ScheduleCron, CronExpression: "0 9 * * 1-5"},
		},
		{
			name:     "cron empty expression",
			schedule: MacroSchedule{Type: ScheduleCron},
			wantErr:  true,
		},
		{
			name:     "cron malformed expression",
			schedule: MacroSchedule{Type: ScheduleCron, CronExpression: "not a cron"},
			wantErr:  true,
		},
		{
			name:     "unknown type",
			schedule: MacroSchedule{Type: "fortnightly"},
			wantErr:  true,
		},
		{
			name:     "bogus time zone",
			schedule: MacroSchedule{Type: ScheduleDaily, TimeZone: "Mars/Olympus"},
			wantErr:  true,
		},
		{
			name:     "valid time zone",
			schedule: MacroSchedule{Type: ScheduleDaily, TimeZone: "America/New_York"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.schedule.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMacroScheduleLocation(t *testing.T) {
	t.Parallel()

	utc := MacroSchedule{Type: ScheduleDaily}

	loc, err := utc.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	zoned := MacroSchedule{Type: ScheduleDaily, TimeZone: "America/New_York"}

	loc, err = zoned.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestMacroScheduleClockTime(t *testing.T) {
	t.Parallel()

	defaulted := MacroSchedule{Type: ScheduleDaily}
	assert.Equal(t, TimeOfDay{}, defaulted.ClockTime())

	set := MacroSchedule{Type: ScheduleDaily, TimeOfDay: &TimeOfDay{Hour: 9, Minute: 30}}
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 30}, set.ClockTime())
}
