package service

import (
	"context"
	"fmt"

	"github.com/securefront/compliance-scheduler/internal/alert"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/models"
)

// InactivityReminder alerts on employees whose last location report is older
// than the agency's activity reporting frequency. It re-alerts on every run
// while the condition holds.
type InactivityReminder struct {
	Env
}

func NewInactivityReminder(env Env) *InactivityReminder {
	return &InactivityReminder{Env: env}
}

func (r *InactivityReminder) Name() string { return NameActivityReminder }

func (r *InactivityReminder) Evaluate(ctx context.Context) (Summary, error) {
	var sum Summary
	log := r.logger(r.Name())
	now := r.Clock.Now()

	settings, err := r.listSettings(ctx, log)
	if err != nil {
		return sum, err
	}
	for _, s := range settings {
		threshold, on := s.InactivityThreshold()
		if !on {
			continue
		}
		alog := log.With().Str("agency", s.AgencyID).Logger()
		employees, err := r.Store.Query(ctx, models.CollectionEmployees, []db.Predicate{db.Eq("agencyId", s.AgencyID)}, 0)
		if err != nil {
			r.skip(&sum, r.Name(), alog, err, "failed to list employees")
			continue
		}
		for _, doc := range employees {
			sum.Scanned++
			var emp models.Employee
			if err := db.Decode(doc, &emp); err != nil {
				r.skip(&sum, r.Name(), alog, err, "skipping malformed employee")
				continue
			}
			seen, ok := emp.LastSeen()
			if !ok || now.Sub(seen) <= threshold {
				continue
			}
			name := emp.Name
			if name == "" {
				name = "An employee"
			}
			if _, err := r.Alerts.Emit(ctx, alert.Alert{
				AgencyID: s.AgencyID,
				Title:    "Employee Inactivity",
				Message:  fmt.Sprintf("%s inactive for %s.", name, s.ActivityFrequency()),
				Severity: alert.SeverityMedium,
				Category: alert.CategoryInactivity,
				SiteID:   emp.AssignedSiteID,
			}); err != nil {
				r.skip(&sum, r.Name(), alog, err, "failed to emit inactivity alert")
				continue
			}
			sum.Alerts++
		}
	}
	return sum, nil
}
