package models

import "time"

const (
	CollectionAttendance     = "attendance"
	CollectionShifts         = "shifts"
	CollectionEmployees      = "employees"
	CollectionLicenses       = "licenses"
	CollectionAgencySettings = "agencySettings"
	CollectionSystemAlerts   = "systemAlerts"
	CollectionSites          = "sites"
	CollectionJobRuns        = "jobRuns"
)

const (
	ShiftStatusScheduled = "scheduled"
	ShiftStatusCompleted = "completed"
)

type Shift struct {
	ID         string     `mapstructure:"id" json:"id"`
	AgencyID   string     `mapstructure:"agencyId" json:"agencyId"`
	EmployeeID string     `mapstructure:"employeeId" json:"employeeId"`
	SiteID     string     `mapstructure:"siteId" json:"siteId"`
	ShiftStart *time.Time `mapstructure:"shiftStart" json:"shiftStart"`
	ShiftEnd   *time.Time `mapstructure:"shiftEnd" json:"shiftEnd"`
	Status     string     `mapstructure:"status" json:"status"`
}

type Attendance struct {
	ID          string     `mapstructure:"id" json:"id"`
	ShiftID     string     `mapstructure:"shiftId" json:"shiftId"`
	AgencyID    string     `mapstructure:"agencyId" json:"agencyId"`
	UserID      string     `mapstructure:"userId" json:"userId"`
	ClockIn     *time.Time `mapstructure:"clockIn" json:"clockIn"`
	ClockOut    *time.Time `mapstructure:"clockOut" json:"clockOut"`
	HoursWorked *float64   `mapstructure:"hoursWorked" json:"hoursWorked"`
}

// Open reports whether the record still has no clock-out.
func (a Attendance) Open() bool {
	return !Known(a.ClockOut)
}

type Location struct {
	Lat       *float64   `mapstructure:"lat" json:"lat"`
	Lng       *float64   `mapstructure:"lng" json:"lng"`
	UpdatedAt *time.Time `mapstructure:"updatedAt" json:"updatedAt"`
}

type Employee struct {
	ID                string    `mapstructure:"id" json:"id"`
	AgencyID          string    `mapstructure:"agencyId" json:"agencyId"`
	Name              string    `mapstructure:"name" json:"name"`
	AssignedSiteID    string    `mapstructure:"assignedSiteId" json:"assignedSiteId"`
	LastKnownLocation *Location `mapstructure:"lastKnownLocation" json:"lastKnownLocation"`
}

// Position returns the employee's last reported coordinates when both are present.
func (e Employee) Position() (Point, bool) {
	loc := e.LastKnownLocation
	if loc == nil || loc.Lat == nil || loc.Lng == nil {
		return Point{}, false
	}
	return Point{Lat: *loc.Lat, Lng: *loc.Lng}, true
}

// LastSeen returns lastKnownLocation.updatedAt when it is set.
func (e Employee) LastSeen() (time.Time, bool) {
	if e.LastKnownLocation == nil || !Known(e.LastKnownLocation.UpdatedAt) {
		return time.Time{}, false
	}
	return *e.LastKnownLocation.UpdatedAt, true
}

type Point struct {
	Lat float64 `mapstructure:"lat" json:"lat"`
	Lng float64 `mapstructure:"lng" json:"lng"`
}

type Site struct {
	ID          string  `mapstructure:"id" json:"id"`
	AgencyID    string  `mapstructure:"agencyId" json:"agencyId"`
	Name        string  `mapstructure:"name" json:"name"`
	Coordinates []Point `mapstructure:"coordinates" json:"coordinates"`
}

type License struct {
	ID         string     `mapstructure:"id" json:"id"`
	AgencyID   string     `mapstructure:"agencyId" json:"agencyId"`
	EmployeeID string     `mapstructure:"employeeId" json:"employeeId"`
	ExpiryDate *time.Time `mapstructure:"expiryDate" json:"expiryDate"`
}

// SystemAlert mirrors the document read by the alert viewer. Field names are a
// wire contract and must not change.
type SystemAlert struct {
	ID        string    `mapstructure:"id" json:"id,omitempty"`
	AgencyID  string    `mapstructure:"agencyId" json:"agencyId"`
	Title     string    `mapstructure:"title" json:"title"`
	Message   string    `mapstructure:"message" json:"message"`
	Severity  string    `mapstructure:"severity" json:"severity"`
	Category  string    `mapstructure:"category" json:"category"`
	SiteID    *string   `mapstructure:"siteId" json:"siteId"`
	Timestamp time.Time `mapstructure:"timestamp" json:"timestamp"`
	Read      bool      `mapstructure:"read" json:"read"`
	DedupKey  string    `mapstructure:"dedupKey" json:"dedupKey,omitempty"`
}

const (
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
	RunStatusPanic   = "PANIC"
)

// JobRun is one recorded scheduler invocation.
type JobRun struct {
	ID         string         `mapstructure:"id" json:"id"`
	Job        string         `mapstructure:"job" json:"job"`
	StartedAt  time.Time      `mapstructure:"startedAt" json:"startedAt"`
	FinishedAt *time.Time     `mapstructure:"finishedAt" json:"finishedAt"`
	Status     string         `mapstructure:"status" json:"status"`
	Error      string         `mapstructure:"error" json:"error,omitempty"`
	Trigger    string         `mapstructure:"trigger" json:"trigger"`
	Summary    map[string]any `mapstructure:"summary" json:"summary"`
}

// Known reports whether a nullable timestamp carries a value.
func Known(t *time.Time) bool {
	return t != nil && !t.IsZero()
}
