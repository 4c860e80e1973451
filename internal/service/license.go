package service

import (
	"context"
	"fmt"

	"github.com/securefront/compliance-scheduler/internal/alert"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/models"
)

// LicenseExpiry alerts on licenses expiring in exactly the agency's reminder
// number of days. It is meant to run once a day.
type LicenseExpiry struct {
	Env
}

func NewLicenseExpiry(env Env) *LicenseExpiry {
	return &LicenseExpiry{Env: env}
}

func (l *LicenseExpiry) Name() string { return NameLicenseReminder }

func (l *LicenseExpiry) Evaluate(ctx context.Context) (Summary, error) {
	var sum Summary
	log := l.logger(l.Name())
	now := l.Clock.Now()

	settings, err := l.listSettings(ctx, log)
	if err != nil {
		return sum, err
	}
	for _, s := range settings {
		days := s.LicenseReminderDays()
		alog := log.With().Str("agency", s.AgencyID).Logger()
		licenses, err := l.Store.Query(ctx, models.CollectionLicenses, []db.Predicate{db.Eq("agencyId", s.AgencyID)}, 0)
		if err != nil {
			l.skip(&sum, l.Name(), alog, err, "failed to list licenses")
			continue
		}
		for _, doc := range licenses {
			sum.Scanned++
			var lic models.License
			if err := db.Decode(doc, &lic); err != nil {
				l.skip(&sum, l.Name(), alog, err, "skipping malformed license")
				continue
			}
			if !models.Known(lic.ExpiryDate) || wholeDays(lic.ExpiryDate.Sub(now)) != days {
				continue
			}
			name := l.employeeName(ctx, lic.EmployeeID)
			if _, err := l.Alerts.Emit(ctx, alert.Alert{
				AgencyID: s.AgencyID,
				Title:    "License Expiry Reminder",
				Message:  fmt.Sprintf("%s's license expires in %d days.", name, days),
				Severity: alert.SeverityMedium,
				Category: alert.CategoryLicense,
			}); err != nil {
				l.skip(&sum, l.Name(), alog, err, "failed to emit license alert")
				continue
			}
			sum.Alerts++
		}
	}
	return sum, nil
}
