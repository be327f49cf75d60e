package models

import "time"

// EmailJobStatus is the lifecycle state of a batch email-sending job.
type EmailJobStatus string

const (
	EmailJobPending         EmailJobStatus = "pending"
	EmailJobInProgress      EmailJobStatus = "in_progress"
	EmailJobCompleted       EmailJobStatus = "completed"
	EmailJobFailed          EmailJobStatus = "failed"
	EmailJobPartiallyFailed EmailJobStatus = "partially_failed"
)

// IsFinished reports whether the job reached a terminal status.
func (s EmailJobStatus) IsFinished() bool {
	return s == EmailJobCompleted || s == EmailJobFailed || s == EmailJobPartiallyFailed
}

// EmailSendResult is the per-recipient outcome of one send attempt.
type EmailSendResult struct {
	Email     string `json:"email"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Attempt   int    `json:"attempt"`
	Permanent bool   `json:"permanent,omitempty"` // non-retryable failure
}

// EmailSendingJob is one batch-send unit of work. It is created when the
// workflow reaches the creation step and mutated only by the delivery
// orchestrator.
type EmailSendingJob struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"        validate:"required"`
	MeetingID     string            `json:"meeting_id"     validate:"required"`
	Attendees     []Attendee        `json:"attendees"`
	MeetingData   MeetingData       `json:"meeting_data"`
	AgendaContent string            `json:"agenda_content"`
	Status        EmailJobStatus    `json:"status"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	Errors        []string          `json:"errors,omitempty"`
	Results       []EmailSendResult `json:"results,omitempty"`
	EmailsSent    int               `json:"emails_sent"`
	EmailsFailed  int               `json:"emails_failed"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// SucceededEmails returns the set of addresses with a recorded successful
// send. Retry waves must never re-target these.
func (j *EmailSendingJob) SucceededEmails() map[string]bool {
	sent := make(map[string]bool)

	for _, r := range j.Results {
		if r.Success {
			sent[r.Email] = true
		}
	}

	return sent
}

// PermanentlyFailedEmails returns addresses whose failure was classified
// non-retryable.
func (j *EmailSendingJob) PermanentlyFailedEmails() map[string]bool {
	failed := make(map[string]bool)

	for _, r := range j.Results {
		if !r.Success && r.Permanent {
			failed[r.Email] = true
		}
	}

	return failed
}

// ResetForRetry rewinds a failed or partially failed job back to pending.
// Accumulated errors are cleared, not appended, so a retried run reports its
// own outcome only. Successful results are kept so the new run never
// re-sends to a recipient that already received the email; failures are
// dropped to give those recipients a fresh chance.
func (j *EmailSendingJob) ResetForRetry() {
	j.Status = EmailJobPending
	j.RetryCount++
	j.Errors = nil
	j.CompletedAt = nil
	j.EmailsSent = 0
	j.EmailsFailed = 0

	kept := make([]EmailSendResult, 0, len(j.Results))

	for _, r := range j.Results {
		if r.Success {
			kept = append(kept, r)
		}
	}

	j.Results = kept
}
