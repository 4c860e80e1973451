package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securefront/compliance-scheduler/internal/alert"
	"github.com/securefront/compliance-scheduler/internal/models"
)

var unitSquare = []any{
	map[string]any{"lat": 0.0, "lng": 0.0},
	map[string]any{"lat": 0.0, "lng": 1.0},
	map[string]any{"lat": 1.0, "lng": 1.0},
	map[string]any{"lat": 1.0, "lng": 0.0},
}

func seedSite(f *fixture) {
	f.put(models.CollectionSites, "site-1", map[string]any{
		"agencyId": "a1", "name": "Depot", "coordinates": unitSquare,
	})
}

func TestGeofenceLeaveAlertsOnStaleOutsidePosition(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	seedSite(f)
	f.put(models.CollectionEmployees, "e1", map[string]any{
		"agencyId": "a1", "name": "Ana", "assignedSiteId": "site-1",
		"lastKnownLocation": location(2, 2, now.Add(-15*time.Minute)),
	})

	sum := f.run(NewGeofenceLeave(f.env))
	assert.Equal(t, 1, sum.Alerts)

	alerts := f.alerts()
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "a1", a.AgencyID)
	assert.Equal(t, alert.CategoryGeofenceLeave, a.Category)
	assert.Equal(t, alert.SeverityHigh, a.Severity)
	require.NotNil(t, a.SiteID)
	assert.Equal(t, "site-1", *a.SiteID)
	assert.Contains(t, a.Message, "Ana")
	assert.Contains(t, a.Message, "Depot")
	assert.Contains(t, a.Message, "15 min ago")
}

func TestGeofenceLeaveOneAlertPerReport(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	seedSite(f)
	f.put(models.CollectionEmployees, "e1", map[string]any{
		"agencyId": "a1", "assignedSiteId": "site-1",
		"lastKnownLocation": location(2, 2, now.Add(-15*time.Minute)),
	})
	g := NewGeofenceLeave(f.env)

	f.run(g)
	f.clock.Advance(10 * time.Minute)
	sum := f.run(g)
	assert.Equal(t, 0, sum.Alerts)
	assert.Equal(t, 1, sum.Suppressed)

	f.put(models.CollectionEmployees, "e1", map[string]any{
		"agencyId": "a1", "assignedSiteId": "site-1",
		"lastKnownLocation": location(2, 3, f.clock.Now().Add(-11*time.Minute)),
	})
	sum = f.run(g)
	assert.Equal(t, 1, sum.Alerts, "a new report is a new exit")
	assert.Len(t, f.alerts(), 2)
}

func TestGeofenceLeaveNoAlert(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		settings map[string]any
		loc      map[string]any
	}{
		{name: "inside", loc: location(0.5, 0.5, now.Add(-time.Hour))},
		{name: "on vertex", loc: location(0, 0, now.Add(-time.Hour))},
		{name: "on edge", loc: location(0.5, 1, now.Add(-time.Hour))},
		{name: "fresh", loc: location(2, 2, now.Add(-5*time.Minute))},
		{name: "exactly at delay", loc: location(2, 2, now.Add(-10*time.Minute))},
		{name: "longer delay", settings: map[string]any{"geofenceTriggerDelay": 30}, loc: location(2, 2, now.Add(-20*time.Minute))},
		{name: "no position", loc: map[string]any{"updatedAt": now.Add(-time.Hour)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, now)
			seedSite(f)
			if tc.settings != nil {
				f.put(models.CollectionAgencySettings, "a1", tc.settings)
			}
			f.put(models.CollectionEmployees, "e1", map[string]any{
				"agencyId": "a1", "assignedSiteId": "site-1", "lastKnownLocation": tc.loc,
			})

			sum := f.run(NewGeofenceLeave(f.env))
			assert.Equal(t, 0, sum.Alerts)
			assert.Empty(t, f.alerts())
		})
	}
}

func TestGeofenceLeaveSkipsUnusableSites(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	seedSite(f)
	f.put(models.CollectionSites, "line", map[string]any{
		"agencyId": "a1", "coordinates": unitSquare[:2],
	})
	stale := location(2, 2, now.Add(-time.Hour))
	f.put(models.CollectionEmployees, "e1", map[string]any{"agencyId": "a1", "assignedSiteId": "line", "lastKnownLocation": stale})
	f.put(models.CollectionEmployees, "e2", map[string]any{"agencyId": "a1", "assignedSiteId": "missing", "lastKnownLocation": stale})
	f.put(models.CollectionEmployees, "e3", map[string]any{"agencyId": "a1", "assignedSiteId": nil, "lastKnownLocation": stale})
	f.put(models.CollectionEmployees, "e4", map[string]any{"agencyId": "a1", "assignedSiteId": "site-1", "lastKnownLocation": stale})

	sum := f.run(NewGeofenceLeave(f.env))
	assert.Equal(t, 3, sum.Scanned)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 1, sum.Alerts)
}

func TestGeofenceLeaveFallsBackToSiteAgency(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	seedSite(f)
	f.put(models.CollectionEmployees, "e1", map[string]any{
		"assignedSiteId": "site-1", "lastKnownLocation": location(-1, -1, now.Add(-time.Hour)),
	})

	f.run(NewGeofenceLeave(f.env))
	alerts := f.alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].AgencyID)
	assert.Contains(t, alerts[0].Message, "e1")
}

func TestGeofenceLeaveSkipsRecordWithoutAgency(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.put(models.CollectionSites, "site-1", map[string]any{"name": "Depot", "coordinates": unitSquare})
	f.put(models.CollectionEmployees, "e1", map[string]any{
		"name": "Ana", "assignedSiteId": "site-1", "lastKnownLocation": location(-1, -1, now.Add(-time.Hour)),
	})

	sum := f.run(NewGeofenceLeave(f.env))
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Alerts)
	assert.Empty(t, f.alerts())
}
