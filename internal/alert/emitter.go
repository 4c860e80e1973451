// Package alert writes SystemAlert documents, the only output consumed outside
// the engine.
package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/securefront/compliance-scheduler/internal/clock"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/metrics"
	"github.com/securefront/compliance-scheduler/internal/models"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	CategoryGeneric        = "generic"
	CategoryGraceViolation = "clockin_grace_violation"
	CategoryAutoClockout   = "auto_clockout"
	CategoryInactivity     = "inactivity"
	CategoryGeofenceLeave  = "geofence_leave"
	CategoryLicense        = "license"
)

type Alert struct {
	AgencyID string
	Title    string
	Message  string
	Severity string
	Category string
	// SiteID is written as null when empty.
	SiteID   string
	DedupKey string
}

type Emitter struct {
	Store  db.Gateway
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Emit persists the alert and returns its document id.
func (e *Emitter) Emit(ctx context.Context, a Alert) (string, error) {
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}
	if a.Category == "" {
		a.Category = CategoryGeneric
	}
	var siteID any
	if a.SiteID != "" {
		siteID = a.SiteID
	}
	fields := map[string]any{
		"agencyId":  a.AgencyID,
		"title":     a.Title,
		"message":   a.Message,
		"severity":  a.Severity,
		"category":  a.Category,
		"siteId":    siteID,
		"timestamp": e.Clock.Now(),
		"read":      false,
	}
	if a.DedupKey != "" {
		fields["dedupKey"] = a.DedupKey
	}

	id, err := e.Store.Create(ctx, models.CollectionSystemAlerts, fields)
	if err != nil {
		return "", err
	}
	metrics.AlertsEmittedTotal.WithLabelValues(a.Category).Inc()
	e.Logger.Info().
		Str("alert_id", id).
		Str("agency", a.AgencyID).
		Str("category", a.Category).
		Str("severity", a.Severity).
		Msg(a.Title)
	return id, nil
}

// Seen reports whether an alert with key exists for the agency. A zero since
// matches alerts of any age.
func (e *Emitter) Seen(ctx context.Context, agencyID, key string, since time.Time) (bool, error) {
	preds := []db.Predicate{
		db.Eq("agencyId", agencyID),
		db.Eq("dedupKey", key),
	}
	if !since.IsZero() {
		preds = append(preds, db.Gte("timestamp", since))
	}
	docs, err := e.Store.Query(ctx, models.CollectionSystemAlerts, preds, 1)
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// Duplicate reports whether an alert with a.DedupKey was written for the agency
// within window, counting and logging the suppression when it was. A zero
// window matches alerts of any age.
func (e *Emitter) Duplicate(ctx context.Context, a Alert, window time.Duration) (bool, error) {
	if a.DedupKey == "" {
		return false, nil
	}
	var since time.Time
	if window > 0 {
		since = e.Clock.Now().Add(-window)
	}
	seen, err := e.Seen(ctx, a.AgencyID, a.DedupKey, since)
	if err != nil || !seen {
		return false, err
	}
	metrics.AlertsSuppressedTotal.WithLabelValues(a.Category).Inc()
	e.Logger.Debug().
		Str("agency", a.AgencyID).
		Str("category", a.Category).
		Str("dedup_key", a.DedupKey).
		Msg("duplicate alert suppressed")
	return true, nil
}

// EmitOnce writes the alert unless Duplicate finds an earlier one. The check and
// the write are not atomic, so two racing writers can both emit.
func (e *Emitter) EmitOnce(ctx context.Context, a Alert, window time.Duration) (bool, error) {
	dup, err := e.Duplicate(ctx, a, window)
	if err != nil || dup {
		return false, err
	}
	_, err = e.Emit(ctx, a)
	return err == nil, err
}
