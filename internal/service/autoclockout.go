package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/securefront/compliance-scheduler/internal/alert"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/metrics"
	"github.com/securefront/compliance-scheduler/internal/models"
)

// AutoClockout closes attendance records whose shift has ended, for agencies
// that opted in. Closed records drop out of the open-record query, so a rerun
// on the same state does nothing.
type AutoClockout struct {
	Env
}

func NewAutoClockout(env Env) *AutoClockout {
	return &AutoClockout{Env: env}
}

func (a *AutoClockout) Name() string { return NameAutoClockout }

func (a *AutoClockout) Evaluate(ctx context.Context) (Summary, error) {
	var sum Summary
	log := a.logger(a.Name())

	settings, err := a.listSettings(ctx, log, db.Eq("autoClockOut", true))
	if err != nil {
		return sum, err
	}
	enabled := make(map[string]bool, len(settings))
	for _, s := range settings {
		if s.AutoClockOut {
			enabled[s.AgencyID] = true
		}
	}
	if len(enabled) == 0 {
		log.Debug().Msg("no agency has auto clock-out enabled")
		return sum, nil
	}

	open, err := a.Store.Query(ctx, models.CollectionAttendance, []db.Predicate{db.Eq("clockOut", nil)}, 0)
	if err != nil {
		return sum, fmt.Errorf("list open attendance: %w", err)
	}
	for _, doc := range open {
		sum.Scanned++
		a.closeIfEnded(ctx, &sum, log, doc, enabled)
	}
	return sum, nil
}

func (a *AutoClockout) closeIfEnded(ctx context.Context, sum *Summary, log zerolog.Logger, doc db.Document, enabled map[string]bool) {
	var att models.Attendance
	if err := db.Decode(doc, &att); err != nil {
		a.skip(sum, a.Name(), log, err, "skipping malformed attendance")
		return
	}
	if !enabled[att.AgencyID] || att.ShiftID == "" || !att.Open() {
		return
	}
	log = log.With().Str("attendance", att.ID).Str("shift", att.ShiftID).Logger()

	shiftDoc, err := a.Store.Get(ctx, models.CollectionShifts, att.ShiftID)
	if err != nil {
		a.skip(sum, a.Name(), log, err, "failed to load shift")
		return
	}
	var shift models.Shift
	if err := db.Decode(shiftDoc, &shift); err != nil {
		a.skip(sum, a.Name(), log, err, "skipping malformed shift")
		return
	}
	if !models.Known(shift.ShiftEnd) || !models.Known(att.ClockIn) {
		a.skip(sum, a.Name(), log, errMissingTimestamp, "skipping record without shift end or clock-in")
		return
	}

	now := a.Clock.Now()
	if !now.After(*shift.ShiftEnd) {
		return
	}
	hours := math.Round(now.Sub(*att.ClockIn).Hours()*100) / 100

	// The shift goes first so a failure leaves the attendance open for the
	// next run.
	if err := a.Store.Update(ctx, models.CollectionShifts, shift.ID, map[string]any{
		"status":    models.ShiftStatusCompleted,
		"updatedAt": now,
	}); err != nil {
		a.skip(sum, a.Name(), log, err, "failed to mark shift completed")
		return
	}
	if err := a.Store.Update(ctx, models.CollectionAttendance, att.ID, map[string]any{
		"clockOut":    now,
		"hoursWorked": hours,
		"updatedAt":   now,
	}); err != nil {
		a.skip(sum, a.Name(), log, err, "failed to close attendance")
		return
	}
	sum.Updated++
	metrics.AttendanceClosedTotal.Inc()

	log.Info().Float64("hours_worked", hours).Msg("auto clocked out")
	if _, err := a.Alerts.Emit(ctx, alert.Alert{
		AgencyID: att.AgencyID,
		Title:    "Auto Clock-Out Executed",
		Message:  fmt.Sprintf("Employee %s auto clocked out at shift end.", a.employeeName(ctx, att.UserID)),
		Severity: alert.SeverityLow,
		Category: alert.CategoryAutoClockout,
		SiteID:   shift.SiteID,
	}); err != nil {
		a.skip(sum, a.Name(), log, err, "failed to emit auto clock-out alert")
		return
	}
	sum.Alerts++
}
