package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/models"
	"github.com/securefront/compliance-scheduler/internal/scheduler"
)

const (
	defaultAlertLimit = 50
	healthTimeout     = 3 * time.Second
)

// JobRunner is the part of the scheduler the admin API drives.
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	Job(name string) (scheduler.JobStatus, bool)
	Trigger(name string) error
}

type Handler struct {
	Store     db.Gateway
	Jobs      JobRunner
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type alertsQuery struct {
	AgencyID string    `form:"agencyId" validate:"required"`
	Category string    `form:"category" validate:"omitempty,oneof=generic clockin_grace_violation auto_clockout inactivity geofence_leave license"`
	Unread   bool      `form:"unread"`
	Since    time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit    int       `form:"limit" validate:"omitempty,min=1,max=500"`
}

// @Summary Health check
// @Description Pings the document store
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary List jobs
// @Description Registered jobs with cadence, next fire time and last outcome
// @Tags jobs
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/jobs [get]
func (h *Handler) JobsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.Jobs.Jobs()})
}

// @Summary Trigger a job
// @Description Queues a one-off run that the scheduler loop executes between scheduled jobs
// @Tags jobs
// @Produce json
// @Param name path string true "Job name"
// @Success 202 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/jobs/{name}/run [post]
func (h *Handler) TriggerJob(c *gin.Context) {
	name := c.Param("name")
	err := h.Jobs.Trigger(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Unknown job", name)
		return
	case errors.Is(err, scheduler.ErrAlreadyQueued):
		writeError(c, http.StatusConflict, "ALREADY_QUEUED", "Job already queued", name)
		return
	case err != nil:
		writeError(c, http.StatusInternalServerError, "TRIGGER_FAILED", "Failed to queue job", err.Error())
		return
	}
	h.Logger.Info().Str("job", name).Msg("manual run requested")
	c.JSON(http.StatusAccepted, gin.H{"job": name, "status": "queued"})
}

// @Summary Latest run
// @Description Most recent recorded run of a job
// @Tags jobs
// @Produce json
// @Param job query string true "Job name"
// @Success 200 {object} models.JobRun
// @Failure 404 {object} map[string]any
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	name := c.Query("job")
	if name == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "job is required", nil)
		return
	}
	st, ok := h.Jobs.Job(name)
	if !ok {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Unknown job", name)
		return
	}
	var (
		run   models.JobRun
		found bool
		err   error
	)
	if st.LastRunID != "" {
		run, found, err = h.runByID(c.Request.Context(), st.LastRunID)
	} else {
		// Nothing in memory yet, e.g. after a restart.
		run, found, err = h.latestStoredRun(c.Request.Context(), name)
	}
	if err != nil {
		writeStoreError(c, err, "Failed to load run")
		return
	}
	if !found {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", nil)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) runByID(ctx context.Context, id string) (models.JobRun, bool, error) {
	var run models.JobRun
	doc, err := h.Store.Get(ctx, models.CollectionJobRuns, id)
	if err != nil {
		return run, false, err
	}
	if err := db.Decode(doc, &run); err != nil {
		return run, false, err
	}
	return run, true, nil
}

func (h *Handler) latestStoredRun(ctx context.Context, name string) (models.JobRun, bool, error) {
	var latest models.JobRun
	docs, err := h.Store.Query(ctx, models.CollectionJobRuns, []db.Predicate{db.Eq("job", name)}, 0)
	if err != nil {
		return latest, false, err
	}
	found := false
	for _, doc := range docs {
		var run models.JobRun
		if err := db.Decode(doc, &run); err != nil {
			h.Logger.Warn().Err(err).Str("run", doc.ID).Msg("skipping malformed job run")
			continue
		}
		if !found || run.StartedAt.After(latest.StartedAt) {
			latest, found = run, true
		}
	}
	return latest, found, nil
}

// @Summary List alerts
// @Description System alerts for an agency, newest first
// @Tags alerts
// @Produce json
// @Param agencyId query string true "Agency ID"
// @Param category query string false "Alert category"
// @Param unread query bool false "Only unread alerts"
// @Param since query string false "RFC 3339 lower bound on timestamp"
// @Param limit query int false "Max items (default 50)"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/alerts [get]
func (h *Handler) AlertsList(c *gin.Context) {
	var q alertsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return
	}
	if err := h.Validator.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultAlertLimit
	}

	preds := []db.Predicate{db.Eq("agencyId", q.AgencyID)}
	if q.Category != "" {
		preds = append(preds, db.Eq("category", q.Category))
	}
	if q.Unread {
		preds = append(preds, db.Eq("read", false))
	}
	if !q.Since.IsZero() {
		preds = append(preds, db.Gte("timestamp", q.Since))
	}
	docs, err := h.Store.Query(c.Request.Context(), models.CollectionSystemAlerts, preds, 0)
	if err != nil {
		writeStoreError(c, err, "Failed to list alerts")
		return
	}

	items := make([]models.SystemAlert, 0, len(docs))
	for _, doc := range docs {
		var a models.SystemAlert
		if err := db.Decode(doc, &a); err != nil {
			h.Logger.Warn().Err(err).Str("alert_id", doc.ID).Msg("skipping malformed alert")
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	total := len(items)
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": q.Limit})
}

func writeStoreError(c *gin.Context, err error, message string) {
	switch {
	case db.IsNotFound(err):
		writeError(c, http.StatusNotFound, "NOT_FOUND", message, err.Error())
	case db.IsMalformed(err):
		writeError(c, http.StatusInternalServerError, "MALFORMED", message, err.Error())
	default:
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", message, err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
