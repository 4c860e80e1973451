package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/securefront/compliance-scheduler/internal/alert"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/models"
	"github.com/securefront/compliance-scheduler/internal/utils"
)

// GeofenceLeave alerts when an employee's last reported position is outside
// their assigned site and that report is older than the agency's trigger delay.
// The delay is measured from the last report, not from when the employee left.
// One alert is written per stale report.
type GeofenceLeave struct {
	Env
}

func NewGeofenceLeave(env Env) *GeofenceLeave {
	return &GeofenceLeave{Env: env}
}

func (g *GeofenceLeave) Name() string { return NameGeofenceLeave }

// geofenceSweep caches lookups for the duration of one Evaluate call.
type geofenceSweep struct {
	sites  map[string]models.Site
	delays map[string]time.Duration
}

func (g *GeofenceLeave) Evaluate(ctx context.Context) (Summary, error) {
	var sum Summary
	log := g.logger(g.Name())

	employees, err := g.Store.Query(ctx, models.CollectionEmployees, []db.Predicate{db.Ne("assignedSiteId", nil)}, 0)
	if err != nil {
		return sum, fmt.Errorf("list employees: %w", err)
	}
	sweep := &geofenceSweep{
		sites:  map[string]models.Site{},
		delays: map[string]time.Duration{},
	}
	for _, doc := range employees {
		sum.Scanned++
		g.checkEmployee(ctx, &sum, log, sweep, doc)
	}
	return sum, nil
}

func (g *GeofenceLeave) checkEmployee(ctx context.Context, sum *Summary, log zerolog.Logger, sweep *geofenceSweep, doc db.Document) {
	var emp models.Employee
	if err := db.Decode(doc, &emp); err != nil {
		g.skip(sum, g.Name(), log, err, "skipping malformed employee")
		return
	}
	pos, ok := emp.Position()
	if emp.AssignedSiteID == "" || !ok {
		return
	}
	log = log.With().Str("employee", emp.ID).Str("site", emp.AssignedSiteID).Logger()

	site, err := g.site(ctx, sweep, emp.AssignedSiteID)
	if err != nil {
		g.skip(sum, g.Name(), log, err, "skipping employee with unusable site")
		return
	}
	if utils.PointInPolygon(pos, site.Coordinates) {
		return
	}

	seen, ok := emp.LastSeen()
	if !ok {
		g.skip(sum, g.Name(), log, errMissingTimestamp, "skipping location without timestamp")
		return
	}
	agencyID := emp.AgencyID
	if agencyID == "" {
		agencyID = site.AgencyID
	}
	if agencyID == "" {
		g.skip(sum, g.Name(), log, errMissingAgency, "skipping employee without agency")
		return
	}
	delay, err := g.delay(ctx, sweep, agencyID)
	if err != nil {
		g.skip(sum, g.Name(), log, err, "failed to load geofence delay")
		return
	}
	stale := g.Clock.Now().Sub(seen)
	if stale <= delay {
		return
	}

	name := emp.Name
	if name == "" {
		name = emp.ID
	}
	siteName := site.Name
	if siteName == "" {
		siteName = site.ID
	}
	center := utils.Centroid(site.Coordinates)
	km := utils.DistanceKm(pos, center)

	emitted, err := g.Alerts.EmitOnce(ctx, alert.Alert{
		AgencyID: agencyID,
		Title:    "Geofence Exit",
		Message: fmt.Sprintf("%s is outside the geofence of site %s (%.2f km from site centre); last location update %d min ago.",
			name, siteName, km, int(stale/time.Minute)),
		Severity: alert.SeverityHigh,
		Category: alert.CategoryGeofenceLeave,
		SiteID:   site.ID,
		DedupKey: utils.DedupKey(alert.CategoryGeofenceLeave, emp.ID, site.ID, strconv.FormatInt(seen.Unix(), 10)),
	}, 0)
	switch {
	case err != nil:
		g.skip(sum, g.Name(), log, err, "failed to emit geofence alert")
	case emitted:
		sum.Alerts++
	default:
		sum.Suppressed++
	}
}

func (g *GeofenceLeave) site(ctx context.Context, sweep *geofenceSweep, id string) (models.Site, error) {
	if site, ok := sweep.sites[id]; ok {
		return site, nil
	}
	doc, err := g.Store.Get(ctx, models.CollectionSites, id)
	if err != nil {
		return models.Site{}, err
	}
	var site models.Site
	if err := db.Decode(doc, &site); err != nil {
		return models.Site{}, err
	}
	if len(site.Coordinates) < 3 {
		return models.Site{}, errInvalidPolygon
	}
	sweep.sites[id] = site
	return site, nil
}

func (g *GeofenceLeave) delay(ctx context.Context, sweep *geofenceSweep, agencyID string) (time.Duration, error) {
	if d, ok := sweep.delays[agencyID]; ok {
		return d, nil
	}
	s, err := g.settingsFor(ctx, agencyID)
	if err != nil {
		return 0, err
	}
	sweep.delays[agencyID] = s.GeofenceDelay()
	return sweep.delays[agencyID], nil
}
