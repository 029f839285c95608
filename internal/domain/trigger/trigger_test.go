// internal/domain/trigger/trigger_test.go
package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchZones(t *testing.T) {
	// 13:00 UTC on 2024-03-15: New York is on EDT (UTC-4), so its local
	// clock reads 09:00. London (UTC+0) reads 13:00.
	now := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	zones := []string{"America/New_York", "Europe/London", "UTC"}

	matches, unknown := MatchZones(now, zones, Target{Hour: 9, Minute: 0})

	require.Len(t, matches, 1)
	assert.Equal(t, "America/New_York", matches[0].Zone)
	assert.Equal(t, 9, matches[0].Local.Hour())
	assert.Equal(t, 0, matches[0].Local.Minute())
	assert.Equal(t, 15, matches[0].Local.Day())
	assert.Empty(t, unknown)
}

func TestMatchZones_HalfHourOffset(t *testing.T) {
	// Kolkata is UTC+5:30, so 03:30 UTC is 09:00 local there and nowhere
	// on a whole-hour offset.
	now := time.Date(2024, 3, 15, 3, 30, 0, 0, time.UTC)
	zones := []string{"Asia/Kolkata", "UTC", "Europe/Berlin"}

	matches, unknown := MatchZones(now, zones, Target{Hour: 9, Minute: 0})

	require.Len(t, matches, 1)
	assert.Equal(t, "Asia/Kolkata", matches[0].Zone)
	assert.Empty(t, unknown)
}

func TestMatchZones_UnknownZonesReportedNotFatal(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	zones := []string{"Not/AZone", "UTC"}

	matches, unknown := MatchZones(now, zones, Target{Hour: 9, Minute: 0})

	require.Len(t, matches, 1)
	assert.Equal(t, "UTC", matches[0].Zone)
	assert.Equal(t, []string{"Not/AZone"}, unknown)
}

func TestMatchZones_NoMatchOffTheMinute(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 1, 0, 0, time.UTC)

	matches, unknown := MatchZones(now, []string{"UTC"}, Target{Hour: 9, Minute: 0})

	assert.Empty(t, matches)
	assert.Empty(t, unknown)
}

func TestObservedBirthdays_RegularDay(t *testing.T) {
	local := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

	observed := ObservedBirthdays(local)

	assert.Equal(t, []MonthDay{{Month: 6, Day: 15}}, observed)
}

func TestObservedBirthdays_Feb28NonLeapIncludesLeapDay(t *testing.T) {
	local := time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC)

	observed := ObservedBirthdays(local)

	assert.Equal(t, []MonthDay{{Month: 2, Day: 28}, {Month: 2, Day: 29}}, observed)
}

func TestObservedBirthdays_Feb28LeapYearStaysDistinct(t *testing.T) {
	local := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)

	observed := ObservedBirthdays(local)

	assert.Equal(t, []MonthDay{{Month: 2, Day: 28}}, observed)
}

func TestObservedBirthdays_Feb29LeapYear(t *testing.T) {
	local := time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)

	observed := ObservedBirthdays(local)

	assert.Equal(t, []MonthDay{{Month: 2, Day: 29}}, observed)
}

func TestIsLeapYear(t *testing.T) {
	tests := []struct {
		year int
		want bool
	}{
		{2024, true},
		{2025, false},
		{2000, true},
		{1900, false},
		{2100, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLeapYear(tt.year), "year %d", tt.year)
	}
}

func TestGroupByObservedDate_MergesZonesOnSameDate(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	matches := []ZoneMatch{
		{Zone: "Europe/Paris", Local: time.Date(2024, 6, 15, 9, 0, 0, 0, paris)},
		{Zone: "Europe/Berlin", Local: time.Date(2024, 6, 15, 9, 0, 0, 0, berlin)},
	}

	groups := GroupByObservedDate(matches)

	require.Len(t, groups, 1)
	assert.Equal(t, 2024, groups[0].Year)
	assert.Equal(t, MonthDay{Month: 6, Day: 15}, groups[0].Birthday)
	assert.Equal(t, []string{"Europe/Berlin", "Europe/Paris"}, groups[0].Zones)
}

func TestGroupByObservedDate_SplitsAcrossDateLine(t *testing.T) {
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Auckland is already on the 16th while New York is still on the 15th.
	matches := []ZoneMatch{
		{Zone: "Pacific/Auckland", Local: time.Date(2024, 6, 16, 9, 0, 0, 0, auckland)},
		{Zone: "America/New_York", Local: time.Date(2024, 6, 15, 9, 0, 0, 0, newYork)},
	}

	groups := GroupByObservedDate(matches)

	require.Len(t, groups, 2)
	assert.Equal(t, MonthDay{Month: 6, Day: 15}, groups[0].Birthday)
	assert.Equal(t, []string{"America/New_York"}, groups[0].Zones)
	assert.Equal(t, MonthDay{Month: 6, Day: 16}, groups[1].Birthday)
	assert.Equal(t, []string{"Pacific/Auckland"}, groups[1].Zones)
}

func TestGroupByObservedDate_Feb28NonLeapProducesLeapDayGroup(t *testing.T) {
	matches := []ZoneMatch{
		{Zone: "UTC", Local: time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC)},
	}

	groups := GroupByObservedDate(matches)

	require.Len(t, groups, 2)
	assert.Equal(t, MonthDay{Month: 2, Day: 28}, groups[0].Birthday)
	assert.Equal(t, MonthDay{Month: 2, Day: 29}, groups[1].Birthday)
	assert.Equal(t, []string{"UTC"}, groups[0].Zones)
	assert.Equal(t, []string{"UTC"}, groups[1].Zones)
}
