package cron

import (
	"context"
	"fmt"

	robfigcron "github.com/robfig/cron/v3"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job      Job
	schedule string
}

// Registry tracks registered cron jobs and their schedules.
type Registry struct {
	entries []entry
}

// NewRegistry builds a registry preloaded with jobs on the default interval.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job that runs on the service interval.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.entries = append(r.entries, entry{job: job})
}

// RegisterSchedule adds a job driven by a five-field cron expression or a
// descriptor such as "@daily".
func (r *Registry) RegisterSchedule(job Job, schedule string) error {
	if job == nil {
		return nil
	}
	if _, err := robfigcron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("job %s: parse schedule %q: %w", job.Name(), schedule, err)
	}
	r.entries = append(r.entries, entry{job: job, schedule: schedule})
	return nil
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// Lookup finds a job by name.
func (r *Registry) Lookup(name string) (Job, bool) {
	for _, e := range r.entries {
		if e.job.Name() == name {
			return e.job, true
		}
	}
	return nil, false
}
