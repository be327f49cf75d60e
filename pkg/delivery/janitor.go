package delivery

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// StartJanitor schedules periodic purging of finished jobs older than the
// retention window. The returned cron is already running; callers stop it on
// shutdown.
func (o *Orchestrator) StartJanitor(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		o.PurgeFinishedJobs(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	o.logger.Info("email job janitor started", "schedule", spec, "retention", o.retention)

	return c, nil
}

// SetRetention overrides the retention window.
func (o *Orchestrator) SetRetention(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retention = d
}

// PurgeFinishedJobs removes finished jobs whose completion is older than the
// retention window, returning how many were purged.
func (o *Orchestrator) PurgeFinishedJobs(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-o.retention)

	o.mu.Lock()

	var purged []string

	for id, handle := range o.jobs {
		job := handle.job
		if job.Status.IsFinished() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(o.jobs, id)
			purged = append(purged, id)
		}
	}

	o.mu.Unlock()

	for _, id := range purged {
		if o.repo != nil {
			if err := o.repo.Delete(ctx, id); err != nil {
				o.logger.Warn("failed to purge persisted job", "job_id", id, "error", err)
			}
		}
	}

	if len(purged) > 0 {
		o.logger.Info("purged finished email jobs", "count", len(purged))
	}

	return len(purged)
}
