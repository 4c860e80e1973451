package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-04T09:00:00Z", want},
		{"2025-03-04T09:00:00.000000Z", want},
		{"2025-03-04T11:00:00+02:00", want},
		{"2025-03-04T09:00:00", want},
		{"2025-03-04T09:00:00.250Z", want.Add(250 * time.Millisecond)},
		{"", time.Time{}},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestFormatTimestampIsUTC(t *testing.T) {
	loc := time.FixedZone("plus2", 2*3600)
	ts := time.Date(2025, 3, 4, 11, 0, 0, 0, loc)
	assert.Equal(t, "2025-03-04T09:00:00.000000Z", FormatTimestamp(ts))
}

func TestSettingsDefaults(t *testing.T) {
	s := DefaultSettings("a1")
	assert.Equal(t, 5*time.Minute, s.GracePeriod())
	assert.Equal(t, 7, s.LicenseReminderDays())
	assert.Equal(t, 10*time.Minute, s.GeofenceDelay())
	threshold, on := s.InactivityThreshold()
	assert.True(t, on)
	assert.Equal(t, 30*time.Minute, threshold)
	assert.False(t, s.AutoClockOut)
}

func TestSettingsMappings(t *testing.T) {
	str := func(v string) *string { return &v }
	zero := 0

	s := AgencySettings{
		ActivityReportFrequency: str("2hr"),
		LicenseExpiryReminder:   str("1month"),
		ClockInGracePeriod:      &zero,
	}
	threshold, on := s.InactivityThreshold()
	assert.True(t, on)
	assert.Equal(t, 2*time.Hour, threshold)
	assert.Equal(t, 30, s.LicenseReminderDays())
	assert.Equal(t, time.Duration(0), s.GracePeriod())

	s.ActivityReportFrequency = str("OFF")
	_, on = s.InactivityThreshold()
	assert.False(t, on)

	s.ActivityReportFrequency = str("weekly")
	threshold, _ = s.InactivityThreshold()
	assert.Equal(t, 30*time.Minute, threshold)

	s.LicenseExpiryReminder = str("2weeks")
	assert.Equal(t, 14, s.LicenseReminderDays())
}
