package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/securefront/compliance-scheduler/internal/alert"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/models"
	"github.com/securefront/compliance-scheduler/internal/utils"
)

// GraceViolation alerts on today's shifts that started more than the agency's
// grace period ago without any clock-in. Each shift alerts at most once per
// grace window.
type GraceViolation struct {
	Env
}

func NewGraceViolation(env Env) *GraceViolation {
	return &GraceViolation{Env: env}
}

func (g *GraceViolation) Name() string { return NameGraceViolation }

func (g *GraceViolation) Evaluate(ctx context.Context) (Summary, error) {
	var sum Summary
	log := g.logger(g.Name())
	now := g.Clock.Now()
	dayStart := now.Truncate(24 * time.Hour)

	settings, err := g.listSettings(ctx, log)
	if err != nil {
		return sum, err
	}
	for _, s := range settings {
		grace := s.GracePeriod()
		if grace <= 0 {
			continue
		}
		alog := log.With().Str("agency", s.AgencyID).Logger()
		shifts, err := g.Store.Query(ctx, models.CollectionShifts, []db.Predicate{
			db.Eq("agencyId", s.AgencyID),
			db.Gte("shiftStart", dayStart),
			db.Lte("shiftStart", now.Add(-grace)),
		}, 0)
		if err != nil {
			g.skip(&sum, g.Name(), alog, err, "failed to list shifts")
			continue
		}
		for _, doc := range shifts {
			sum.Scanned++
			g.checkShift(ctx, &sum, alog, doc, grace)
		}
	}
	return sum, nil
}

func (g *GraceViolation) checkShift(ctx context.Context, sum *Summary, log zerolog.Logger, doc db.Document, grace time.Duration) {
	var shift models.Shift
	if err := db.Decode(doc, &shift); err != nil {
		g.skip(sum, g.Name(), log, err, "skipping malformed shift")
		return
	}
	if !models.Known(shift.ShiftStart) {
		g.skip(sum, g.Name(), log, errMissingTimestamp, "skipping shift without start")
		return
	}
	log = log.With().Str("shift", shift.ID).Logger()

	clockIns, err := g.Store.Query(ctx, models.CollectionAttendance, []db.Predicate{
		db.Eq("shiftId", shift.ID),
		db.Ne("clockIn", nil),
	}, 1)
	if err != nil {
		g.skip(sum, g.Name(), log, err, "failed to look up attendance")
		return
	}
	if len(clockIns) > 0 {
		return
	}

	a := alert.Alert{
		AgencyID: shift.AgencyID,
		Title:    "Missed Clock-In",
		Severity: alert.SeverityHigh,
		Category: alert.CategoryGraceViolation,
		SiteID:   shift.SiteID,
		DedupKey: utils.DedupKey(alert.CategoryGraceViolation, shift.ID),
	}
	dup, err := g.Alerts.Duplicate(ctx, a, grace)
	if err != nil {
		g.skip(sum, g.Name(), log, err, "failed to check for duplicate alert")
		return
	}
	if dup {
		sum.Suppressed++
		return
	}

	name := g.employeeName(ctx, shift.EmployeeID)
	a.Message = fmt.Sprintf("%s has not clocked in for shift %s scheduled at %s (grace period %d min).",
		name, shift.ID, shift.ShiftStart.UTC().Format("15:04"), int(grace/time.Minute))
	if _, err := g.Alerts.Emit(ctx, a); err != nil {
		g.skip(sum, g.Name(), log, err, "failed to emit grace violation alert")
		return
	}
	sum.Alerts++
}
