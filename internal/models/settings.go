package models

import "time"

const (
	FrequencyOff = "OFF"

	DefaultGracePeriodMinutes    = 5
	DefaultActivityFrequency     = "30min"
	DefaultLicenseReminder       = "1week"
	DefaultGeofenceDelayMinutes  = 10
	defaultActivityThresholdMins = 30
	defaultLicenseReminderDays   = 7
)

var activityThresholds = map[string]int{
	"30min": 30,
	"1hr":   60,
	"2hr":   120,
}

var licenseReminderDays = map[string]int{
	"1week":  7,
	"2weeks": 14,
	"1month": 30,
}

// AgencySettings is keyed by agency id. Nil fields fall back to defaults, so a
// missing document and an empty one behave the same.
type AgencySettings struct {
	AgencyID                string  `mapstructure:"id" json:"agencyId"`
	AutoClockOut            bool    `mapstructure:"autoClockOut" json:"autoClockOut"`
	ActivityReportFrequency *string `mapstructure:"activityReportFrequency" json:"activityReportFrequency"`
	LicenseExpiryReminder   *string `mapstructure:"licenseExpiryReminder" json:"licenseExpiryReminder"`
	ClockInGracePeriod      *int    `mapstructure:"clockInGracePeriod" json:"clockInGracePeriod"`
	GeofenceTriggerDelay    *int    `mapstructure:"geofenceTriggerDelay" json:"geofenceTriggerDelay"`
}

func DefaultSettings(agencyID string) AgencySettings {
	return AgencySettings{AgencyID: agencyID}
}

// GracePeriod returns the clock-in grace window. Zero disables the rule.
func (s AgencySettings) GracePeriod() time.Duration {
	minutes := DefaultGracePeriodMinutes
	if s.ClockInGracePeriod != nil {
		minutes = *s.ClockInGracePeriod
	}
	if minutes < 0 {
		minutes = 0
	}
	return time.Duration(minutes) * time.Minute
}

func (s AgencySettings) ActivityFrequency() string {
	if s.ActivityReportFrequency == nil {
		return DefaultActivityFrequency
	}
	return *s.ActivityReportFrequency
}

// InactivityThreshold maps the reporting frequency to a staleness threshold.
// ok is false when reporting is switched off. Unknown values use 30 minutes.
func (s AgencySettings) InactivityThreshold() (time.Duration, bool) {
	freq := s.ActivityFrequency()
	if freq == FrequencyOff {
		return 0, false
	}
	minutes, found := activityThresholds[freq]
	if !found {
		minutes = defaultActivityThresholdMins
	}
	return time.Duration(minutes) * time.Minute, true
}

func (s AgencySettings) LicenseReminderDays() int {
	reminder := DefaultLicenseReminder
	if s.LicenseExpiryReminder != nil {
		reminder = *s.LicenseExpiryReminder
	}
	if days, ok := licenseReminderDays[reminder]; ok {
		return days
	}
	return defaultLicenseReminderDays
}

func (s AgencySettings) GeofenceDelay() time.Duration {
	minutes := DefaultGeofenceDelayMinutes
	if s.GeofenceTriggerDelay != nil {
		minutes = *s.GeofenceTriggerDelay
	}
	return time.Duration(minutes) * time.Minute
}
