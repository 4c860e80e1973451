// Package service holds the rule evaluators. Each one reads fresh state from the
// store on every call, decides which rules are violated and writes alerts
// through the emitter. Nothing is cached between calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/securefront/compliance-scheduler/internal/alert"
	"github.com/securefront/compliance-scheduler/internal/clock"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/metrics"
	"github.com/securefront/compliance-scheduler/internal/models"
)

const (
	NameGraceViolation   = "grace_violation"
	NameAutoClockout     = "auto_clockout"
	NameActivityReminder = "activity_reminder"
	NameGeofenceLeave    = "geofence_leave"
	NameLicenseReminder  = "license_reminder"
)

const (
	skipNotFound   = "not_found"
	skipMalformed  = "malformed"
	skipStoreError = "store_error"
	skipInvalid    = "invalid_polygon"
)

type Evaluator interface {
	Name() string
	// Evaluate runs one sweep. Failures on single records are logged and
	// counted in the summary; an error means the sweep itself could not run.
	Evaluate(ctx context.Context) (Summary, error)
}

type Summary struct {
	Scanned    int `json:"scanned"`
	Alerts     int `json:"alerts"`
	Suppressed int `json:"suppressed"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

func (s Summary) Map() map[string]any {
	return map[string]any{
		"scanned":    s.Scanned,
		"alerts":     s.Alerts,
		"suppressed": s.Suppressed,
		"updated":    s.Updated,
		"skipped":    s.Skipped,
		"errors":     s.Errors,
	}
}

// Env carries the collaborators every evaluator needs.
type Env struct {
	Store  db.Gateway
	Alerts *alert.Emitter
	Clock  clock.Clock
	Logger zerolog.Logger
}

// NewEnv wires an emitter onto the same store and clock.
func NewEnv(store db.Gateway, clk clock.Clock, logger zerolog.Logger) Env {
	return Env{
		Store:  store,
		Alerts: &alert.Emitter{Store: store, Clock: clk, Logger: logger},
		Clock:  clk,
		Logger: logger,
	}
}

// All returns the evaluators in their default run order.
func All(env Env) []Evaluator {
	return []Evaluator{
		NewAutoClockout(env),
		NewGraceViolation(env),
		NewInactivityReminder(env),
		NewGeofenceLeave(env),
		NewLicenseExpiry(env),
	}
}

func (e Env) logger(name string) zerolog.Logger {
	return e.Logger.With().Str("evaluator", name).Logger()
}

// skip records a record that could not be evaluated. Store failures count as
// errors, everything else as skips.
func (e Env) skip(sum *Summary, name string, log zerolog.Logger, err error, msg string) {
	reason := skipReason(err)
	metrics.RecordsSkippedTotal.WithLabelValues(name, reason).Inc()
	if reason == skipStoreError {
		sum.Errors++
		log.Warn().Err(err).Msg(msg)
		return
	}
	sum.Skipped++
	log.Debug().Err(err).Str("reason", reason).Msg(msg)
}

func skipReason(err error) string {
	switch {
	case db.IsNotFound(err):
		return skipNotFound
	case db.IsMalformed(err):
		return skipMalformed
	case errors.Is(err, errInvalidPolygon):
		return skipInvalid
	default:
		return skipStoreError
	}
}

var (
	errMissingTimestamp = fmt.Errorf("%w: missing timestamp", db.ErrMalformed)
	errMissingAgency    = fmt.Errorf("%w: no agency on employee or site", db.ErrMalformed)
	errInvalidPolygon   = errors.New("site polygon has fewer than 3 points")
)

// listSettings reads every settings document. Malformed ones are logged and
// dropped.
func (e Env) listSettings(ctx context.Context, log zerolog.Logger, preds ...db.Predicate) ([]models.AgencySettings, error) {
	docs, err := e.Store.Query(ctx, models.CollectionAgencySettings, preds, 0)
	if err != nil {
		return nil, fmt.Errorf("list agency settings: %w", err)
	}
	out := make([]models.AgencySettings, 0, len(docs))
	for _, doc := range docs {
		var s models.AgencySettings
		if err := db.Decode(doc, &s); err != nil {
			log.Warn().Err(err).Str("agency", doc.ID).Msg("skipping malformed agency settings")
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// settingsFor falls back to defaults when the agency has no usable settings.
func (e Env) settingsFor(ctx context.Context, agencyID string) (models.AgencySettings, error) {
	if agencyID == "" {
		return models.DefaultSettings(agencyID), nil
	}
	doc, err := e.Store.Get(ctx, models.CollectionAgencySettings, agencyID)
	if db.IsNotFound(err) {
		return models.DefaultSettings(agencyID), nil
	}
	if err != nil {
		return models.AgencySettings{}, err
	}
	var s models.AgencySettings
	if err := db.Decode(doc, &s); err != nil {
		return models.DefaultSettings(agencyID), nil
	}
	return s, nil
}

// employeeName resolves a display name, falling back to the raw id on any miss.
func (e Env) employeeName(ctx context.Context, id string) string {
	if id == "" {
		return "Unknown employee"
	}
	doc, err := e.Store.Get(ctx, models.CollectionEmployees, id)
	if err != nil {
		return id
	}
	var emp models.Employee
	if err := db.Decode(doc, &emp); err != nil || emp.Name == "" {
		return id
	}
	return emp.Name
}

// wholeDays floors d to whole days.
func wholeDays(d time.Duration) int {
	const day = 24 * time.Hour
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}
