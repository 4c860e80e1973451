package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron"

	"github.com/securefront/compliance-scheduler/internal/service"
)

// RunFunc performs one invocation and returns a summary for the run record.
type RunFunc func(ctx context.Context) (map[string]any, error)

// Job is a named unit of work fired on a cron cadence.
type Job struct {
	Name     string
	Spec     string
	Schedule cron.Schedule
	Run      RunFunc
}

// NewJob parses spec as a standard five-field cron line or a descriptor such as
// "@every 15m" or "@daily".
func NewJob(name, spec string, run RunFunc) (Job, error) {
	if name == "" {
		return Job{}, errors.New("job name is required")
	}
	if run == nil {
		return Job{}, fmt.Errorf("job %s: run func is required", name)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return Job{}, fmt.Errorf("job %s: parse schedule %q: %w", name, spec, err)
	}
	return Job{Name: name, Spec: spec, Schedule: schedule, Run: run}, nil
}

// EvaluatorJob adapts a rule evaluator into a job.
func EvaluatorJob(e service.Evaluator, spec string) (Job, error) {
	return NewJob(e.Name(), spec, func(ctx context.Context) (map[string]any, error) {
		sum, err := e.Evaluate(ctx)
		return sum.Map(), err
	})
}
