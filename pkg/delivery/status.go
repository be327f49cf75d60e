package delivery

import (
	"context"
	"time"

	"github.com/meetflow/meetflow/pkg/events"
	"github.com/meetflow/meetflow/pkg/models"
)

// JobStatus is the progress view returned to pollers.
type JobStatus struct {
	JobID                  string                `json:"job_id"`
	Status                 models.EmailJobStatus `json:"status"`
	TotalAttendees         int                   `json:"total_attendees"`
	EmailsSent             int                   `json:"emails_sent"`
	EmailsFailed           int                   `json:"emails_failed"`
	Progress               float64               `json:"progress"`
	RetryCount             int                   `json:"retry_count"`
	Errors                 []string              `json:"errors,omitempty"`
	EstimatedTimeRemaining *time.Duration        `json:"estimated_time_remaining,omitempty"`
}

// GetEmailSendingStatus derives progress and an estimated time remaining
// from elapsed time and processed count. The estimate is nil until at least
// one recipient has been processed, avoiding a divide by zero.
func (o *Orchestrator) GetEmailSendingStatus(jobID string) (*JobStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	handle, ok := o.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	job := handle.job
	total := len(job.Attendees)

	succeeded := job.SucceededEmails()
	permanent := job.PermanentlyFailedEmails()
	processed := 0

	for _, a := range job.Attendees {
		if succeeded[a.Email] || permanent[a.Email] {
			processed++
		}
	}

	status := &JobStatus{
		JobID:          job.ID,
		Status:         job.Status,
		TotalAttendees: total,
		EmailsSent:     len(succeeded),
		EmailsFailed:   job.EmailsFailed,
		RetryCount:     job.RetryCount,
		Errors:         append([]string(nil), job.Errors...),
	}

	if job.Status.IsFinished() {
		status.EmailsSent = job.EmailsSent
		status.EmailsFailed = job.EmailsFailed
		status.Progress = 100

		return status, nil
	}

	if total > 0 {
		status.Progress = float64(processed) / float64(total) * 100
	}

	if processed > 0 && job.StartedAt != nil {
		elapsed := time.Since(*job.StartedAt)
		perItem := elapsed / time.Duration(processed)
		remaining := perItem * time.Duration(total-processed)
		status.EstimatedTimeRemaining = &remaining
	}

	return status, nil
}

// CancelEmailSendingJob marks an in-flight, non-completed job as failed with
// a cancellation error and stops further retry waves. Cancellation is
// cooperative: a send already issued to the gateway cannot be aborted.
// Already-finished jobs are left untouched.
func (o *Orchestrator) CancelEmailSendingJob(ctx context.Context, jobID string) error {
	o.mu.Lock()

	handle, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()

		return ErrJobNotFound
	}

	job := handle.job
	if job.Status.IsFinished() {
		o.mu.Unlock()

		return ErrJobFinished
	}

	job.Status = models.EmailJobFailed
	job.Errors = append(job.Errors, "cancelled by user")
	now := time.Now().UTC()
	job.CompletedAt = &now
	o.deriveCounts(job)
	delete(o.jobs, jobID)
	o.mu.Unlock()

	handle.cancel()
	o.persist(ctx, job)

	if o.bus != nil {
		err := o.bus.Publish(ctx, job.UserID, events.EmailJobCancelled{
			BaseEvent: events.BaseEvent{
				ID:        job.ID,
				Type:      events.EmailJobCancelledEvent,
				Timestamp: now,
				UserID:    job.UserID,
			},
			JobID: job.ID,
		})
		if err != nil {
			o.logger.Warn("failed to publish job cancelled event", "job_id", job.ID, "error", err)
		}
	}

	return nil
}

// RetryEmailSendingJob resets a failed or partially failed job back to
// pending and relaunches processing. The retry counter is incremented and
// accumulated errors are cleared, not appended.
func (o *Orchestrator) RetryEmailSendingJob(ctx context.Context, jobID string) error {
	o.mu.Lock()

	handle, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()

		return ErrJobNotFound
	}

	job := handle.job

	if job.Status != models.EmailJobFailed && job.Status != models.EmailJobPartiallyFailed {
		o.mu.Unlock()

		return ErrJobNotRetryable
	}

	if job.RetryCount >= job.MaxRetries {
		o.mu.Unlock()

		return ErrRetriesExceeded
	}

	job.ResetForRetry()

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle.cancel = cancel
	o.mu.Unlock()

	o.persist(ctx, job)

	o.logger.Info("email job retry requested", "job_id", job.ID, "retry_count", job.RetryCount)

	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		defer cancel()
		o.processEmailJob(jobCtx, jobID)
	}()

	return nil
}

// Stats counts jobs per status for operational dashboards.
func (o *Orchestrator) Stats() map[models.EmailJobStatus]int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := make(map[models.EmailJobStatus]int)

	for _, handle := range o.jobs {
		stats[handle.job.Status]++
	}

	return stats
}

// Job returns a snapshot of one job.
func (o *Orchestrator) Job(jobID string) (*models.EmailSendingJob, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	handle, ok := o.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	snapshot := *handle.job

	return &snapshot, nil
}
