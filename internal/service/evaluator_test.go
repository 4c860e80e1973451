package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/securefront/compliance-scheduler/internal/db"
)

func TestWholeDays(t *testing.T) {
	day := 24 * time.Hour
	cases := map[time.Duration]int{
		0:                    0,
		7 * day:              7,
		7*day - time.Second:  6,
		7*day + 23*time.Hour: 7,
		-time.Second:         -1,
		-day:                 -1,
		-day - time.Second:   -2,
	}
	for d, want := range cases {
		assert.Equal(t, want, wholeDays(d), d.String())
	}
}

func TestSkipReason(t *testing.T) {
	assert.Equal(t, skipNotFound, skipReason(&db.StoreError{Op: "get", Kind: db.ErrNotFound}))
	assert.Equal(t, skipMalformed, skipReason(errMissingTimestamp))
	assert.Equal(t, skipInvalid, skipReason(fmt.Errorf("site x: %w", errInvalidPolygon)))
	assert.Equal(t, skipStoreError, skipReason(errors.New("connection reset")))
}

func TestAllRunsInDefaultOrder(t *testing.T) {
	f := newFixture(t, time.Now())
	names := []string{}
	for _, e := range All(f.env) {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		NameAutoClockout, NameGraceViolation, NameActivityReminder, NameGeofenceLeave, NameLicenseReminder,
	}, names)
}

func TestEmptyStoreProducesNothing(t *testing.T) {
	f := newFixture(t, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	for _, e := range All(f.env) {
		sum := f.run(e)
		assert.Equal(t, Summary{}, sum, e.Name())
	}
	assert.Empty(t, f.alerts())
}
