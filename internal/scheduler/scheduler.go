// Package scheduler fires jobs on their cron cadence from a single loop. Jobs
// never overlap: when several are due they run one after another in
// registration order, and ticks that pass while a job is still running are
// dropped rather than queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"github.com/securefront/compliance-scheduler/internal/clock"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/metrics"
	"github.com/securefront/compliance-scheduler/internal/models"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// maxMissedCount bounds the missed tick walk for very short cadences.
const maxMissedCount = 10000

var (
	ErrUnknownJob    = errors.New("unknown job")
	ErrAlreadyQueued = errors.New("job already queued")
)

// PanicError is returned for an invocation that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name       string     `json:"name"`
	Spec       string     `json:"schedule"`
	Next       time.Time  `json:"nextRun"`
	Running    bool       `json:"running"`
	Queued     bool       `json:"queued"`
	Runs       int        `json:"runs"`
	LastRunID  string     `json:"lastRunId,omitempty"`
	LastStart  *time.Time `json:"lastStart,omitempty"`
	LastStatus string     `json:"lastStatus,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

type entry struct {
	job  Job
	next time.Time
}

type Scheduler struct {
	Store  db.Gateway
	Clock  clock.Clock
	Logger zerolog.Logger

	entries []*entry
	byName  map[string]*entry
	trigger chan string

	mu     sync.Mutex
	status map[string]*JobStatus
}

// New registers jobs in the order given. A nil store disables run records.
func New(store db.Gateway, clk clock.Clock, logger zerolog.Logger, jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{
		Store:   store,
		Clock:   clk,
		Logger:  logger.With().Str("component", "scheduler").Logger(),
		byName:  map[string]*entry{},
		trigger: make(chan string, len(jobs)),
		status:  map[string]*JobStatus{},
	}
	now := clk.Now()
	for _, job := range jobs {
		if job.Schedule == nil || job.Run == nil {
			return nil, fmt.Errorf("job %q is incomplete", job.Name)
		}
		if _, dup := s.byName[job.Name]; dup {
			return nil, fmt.Errorf("job %q registered twice", job.Name)
		}
		e := &entry{job: job, next: job.Schedule.Next(now)}
		s.entries = append(s.entries, e)
		s.byName[job.Name] = e
		s.status[job.Name] = &JobStatus{Name: job.Name, Spec: job.Spec, Next: e.next}
	}
	return s, nil
}

// Run drives the loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return errors.New("no jobs registered")
	}
	s.Logger.Info().Int("jobs", len(s.entries)).Msg("scheduler started")

	var (
		wake   <-chan time.Time
		wakeAt time.Time
	)
	for {
		next := s.earliest()
		if wake == nil || !next.Equal(wakeAt) {
			wake = s.Clock.After(next.Sub(s.Clock.Now()))
			wakeAt = next
		}

		select {
		case <-ctx.Done():
			s.Logger.Info().Msg("scheduler stopped")
			return nil
		case name := <-s.trigger:
			e := s.byName[name]
			s.setQueued(name, false)
			s.invoke(ctx, e, TriggerManual)
		case <-wake:
			wake = nil
		}
		s.runDue(ctx)
	}
}

// Trigger queues a one-off run of name for the loop to pick up between
// scheduled jobs.
func (s *Scheduler) Trigger(name string) error {
	if _, ok := s.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.mu.Lock()
	st := s.status[name]
	if st.Queued {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, name)
	}
	st.Queued = true
	s.mu.Unlock()

	s.trigger <- name
	s.Logger.Info().Str("job", name).Msg("manual run queued")
	return nil
}

// RunJob invokes name immediately on the calling goroutine. It is meant for
// one-off runs when the loop is not started.
func (s *Scheduler) RunJob(ctx context.Context, name string) (models.JobRun, error) {
	e, ok := s.byName[name]
	if !ok {
		return models.JobRun{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	run := s.invoke(ctx, e, TriggerManual)
	if run.Status != models.RunStatusSuccess {
		return run, errors.New(run.Error)
	}
	return run, nil
}

// Jobs returns a snapshot of every job in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *s.status[e.job.Name])
	}
	return out
}

// Job returns the snapshot for one job.
func (s *Scheduler) Job(name string) (JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[name]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

func (s *Scheduler) earliest() time.Time {
	next := s.entries[0].next
	for _, e := range s.entries[1:] {
		if e.next.Before(next) {
			next = e.next
		}
	}
	return next
}

func (s *Scheduler) runDue(ctx context.Context) {
	for _, e := range s.entries {
		if ctx.Err() != nil {
			return
		}
		if s.Clock.Now().Before(e.next) {
			continue
		}
		due := e.next
		s.invoke(ctx, e, TriggerSchedule)
		finished := s.Clock.Now()

		if missed := missedTicks(e.job.Schedule, due, finished); missed > 0 {
			metrics.TicksSkippedTotal.WithLabelValues(e.job.Name).Add(float64(missed))
			s.Logger.Warn().
				Str("job", e.job.Name).
				Int("missed", missed).
				Time("due", due).
				Time("finished", finished).
				Msg("job overran its cadence, skipping missed ticks")
		}
		e.next = e.job.Schedule.Next(finished)
		s.mu.Lock()
		s.status[e.job.Name].Next = e.next
		s.mu.Unlock()
	}
}

// missedTicks counts the fire times after due that are no later than finished.
func missedTicks(schedule cron.Schedule, due, finished time.Time) int {
	missed := 0
	for t := schedule.Next(due); !t.After(finished) && missed < maxMissedCount; t = schedule.Next(t) {
		if t.IsZero() {
			break
		}
		missed++
	}
	return missed
}

func (s *Scheduler) invoke(ctx context.Context, e *entry, trigger string) models.JobRun {
	name := e.job.Name
	log := s.Logger.With().Str("job", name).Str("trigger", trigger).Logger()
	run := models.JobRun{Job: name, StartedAt: s.Clock.Now(), Trigger: trigger}

	s.mu.Lock()
	st := s.status[name]
	st.Running = true
	st.LastStart = &run.StartedAt
	s.mu.Unlock()

	log.Debug().Msg("job started")
	summary, err := safeRun(ctx, e.job.Run)
	finished := s.Clock.Now()
	run.FinishedAt = &finished
	run.Summary = summary
	elapsed := finished.Sub(run.StartedAt)

	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		run.Status = models.RunStatusPanic
		run.Error = err.Error()
		log.Error().Str("panic", fmt.Sprint(pe.Value)).Bytes("stack", pe.Stack).Msg("job panicked")
	case err != nil:
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("job failed")
	default:
		run.Status = models.RunStatusSuccess
		metrics.JobLastSuccess.WithLabelValues(name).Set(float64(finished.Unix()))
		log.Info().Dur("elapsed", elapsed).Interface("summary", summary).Msg("job finished")
	}
	metrics.JobRunsTotal.WithLabelValues(name, run.Status).Inc()
	metrics.JobDurationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())

	run.ID = s.record(ctx, log, run)

	s.mu.Lock()
	st.Running = false
	st.Runs++
	st.LastStatus = run.Status
	st.LastError = run.Error
	if run.ID != "" {
		st.LastRunID = run.ID
	}
	s.mu.Unlock()
	return run
}

func safeRun(ctx context.Context, run RunFunc) (summary map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return run(ctx)
}

// record stores the run. Failures are logged only.
func (s *Scheduler) record(ctx context.Context, log zerolog.Logger, run models.JobRun) string {
	if s.Store == nil {
		return ""
	}
	fields := map[string]any{
		"job":        run.Job,
		"startedAt":  run.StartedAt,
		"finishedAt": *run.FinishedAt,
		"status":     run.Status,
		"trigger":    run.Trigger,
		"summary":    run.Summary,
	}
	if run.Error != "" {
		fields["error"] = run.Error
	}
	id, err := s.Store.Create(context.WithoutCancel(ctx), models.CollectionJobRuns, fields)
	if err != nil {
		log.Warn().Err(err).Msg("failed to record job run")
		return ""
	}
	return id
}

func (s *Scheduler) setQueued(name string, queued bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name].Queued = queued
}
