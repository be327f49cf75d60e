// Package delivery implements the email delivery orchestrator: asynchronous
// batch agenda-email jobs with per-recipient retry, partial-failure
// accounting, progress reporting, cooperative cancellation and retention
// housekeeping.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meetflow/meetflow/pkg/eventbus"
	"github.com/meetflow/meetflow/pkg/events"
	"github.com/meetflow/meetflow/pkg/gateways/mail"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/otelhelper"
	"github.com/meetflow/meetflow/pkg/persistence"
	"github.com/meetflow/meetflow/pkg/retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	ErrJobNotFound     = errors.New("email job not found")
	ErrJobFinished     = errors.New("email job already finished")
	ErrJobNotRetryable = errors.New("email job is not in a retryable state")
	ErrRetriesExceeded = errors.New("email job retry limit reached")
)

// DefaultRetryableErrors is the substring allow-list deciding whether a
// per-recipient failure is worth another wave.
var DefaultRetryableErrors = []string{
	"rate limit",
	"rateLimitExceeded",
	"too many requests",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"service unavailable",
	"connection reset",
	"network",
	"429",
	"502",
	"503",
}

// RetryConfig bounds the per-job retry behavior.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RetryableErrors []string
}

// DefaultRetryConfig matches the product defaults: three waves, one second
// base delay, capped at thirty seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		RetryableErrors: DefaultRetryableErrors,
	}
}

type jobHandle struct {
	job    *models.EmailSendingJob
	user   mail.User
	config RetryConfig
	cancel context.CancelFunc
}

// Orchestrator owns the job table. Jobs run as detached background tasks;
// callers poll GetEmailSendingStatus instead of blocking.
type Orchestrator struct {
	mu      sync.RWMutex
	jobs    map[string]*jobHandle
	gateway mail.Gateway
	repo    persistence.EmailJobRepository
	bus     eventbus.EventBus
	logger  *slog.Logger
	tracer  trace.Tracer

	retention time.Duration
	wg        sync.WaitGroup
}

// NewOrchestrator wires the orchestrator. The repository may be nil in
// tests; persistence is best-effort and never fails a job.
func NewOrchestrator(gateway mail.Gateway, repo persistence.EmailJobRepository, bus eventbus.EventBus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      make(map[string]*jobHandle),
		gateway:   gateway,
		repo:      repo,
		bus:       bus,
		logger:    logger.With("module", "email_delivery"),
		tracer:    noop.NewTracerProvider().Tracer("email_delivery"),
		retention: 24 * time.Hour,
	}
}

// SetTracer enables span creation for job processing. Without it the
// orchestrator uses a no-op tracer.
func (o *Orchestrator) SetTracer(tracer trace.Tracer) {
	o.tracer = tracer
}

// Wait blocks until every in-flight job has finished. Test helper and
// shutdown hook.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// StartEmailSendingWorkflow filters the attendees down to validated
// addresses, registers the job, emits the started notification and launches
// processing without blocking. The job id is returned immediately.
func (o *Orchestrator) StartEmailSendingWorkflow(
	ctx context.Context,
	user mail.User,
	meetingID string,
	attendees []models.Attendee,
	data models.MeetingData,
	agendaContent string,
	cfg *RetryConfig,
) (string, error) {
	config := DefaultRetryConfig()
	if cfg != nil {
		config = *cfg

		if config.MaxRetries <= 0 {
			config.MaxRetries = DefaultRetryConfig().MaxRetries
		}

		if config.BaseDelay <= 0 {
			config.BaseDelay = DefaultRetryConfig().BaseDelay
		}

		if config.MaxDelay <= 0 {
			config.MaxDelay = DefaultRetryConfig().MaxDelay
		}

		if len(config.RetryableErrors) == 0 {
			config.RetryableErrors = DefaultRetryableErrors
		}
	}

	validated := make([]models.Attendee, 0, len(attendees))

	for _, a := range attendees {
		if a.Validated {
			validated = append(validated, a)
		}
	}

	job := &models.EmailSendingJob{
		ID:            "job-" + uuid.New().String()[:8],
		UserID:        user.ID,
		MeetingID:     meetingID,
		Attendees:     validated,
		MeetingData:   data,
		AgendaContent: agendaContent,
		Status:        models.EmailJobPending,
		MaxRetries:    config.MaxRetries,
		CreatedAt:     time.Now().UTC(),
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	o.mu.Lock()
	o.jobs[job.ID] = &jobHandle{job: job, user: user, config: config, cancel: cancel}
	o.mu.Unlock()

	o.persist(ctx, job)
	o.notifyStarted(ctx, job)

	o.logger.Info("email job accepted",
		"job_id", job.ID,
		"meeting_id", meetingID,
		"attendees", len(validated))

	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		defer cancel()
		o.processEmailJob(jobCtx, job.ID)
	}()

	return job.ID, nil
}

// processEmailJob validates the prerequisites, then runs the batch send and
// retry loop. Prerequisite failures fail fast with a descriptive error.
func (o *Orchestrator) processEmailJob(ctx context.Context, jobID string) {
	handle := o.handle(jobID)
	if handle == nil {
		return
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "email batch send",
		attribute.String(otelhelper.JobIDKey, jobID),
		attribute.String(otelhelper.MeetingIDKey, handle.job.MeetingID),
	)
	defer span.End()

	o.mu.Lock()
	job := handle.job

	if job.Status != models.EmailJobPending {
		o.mu.Unlock()

		return
	}

	if err := o.checkPrerequisites(handle); err != nil {
		job.Status = models.EmailJobFailed
		job.Errors = append(job.Errors, err.Error())
		now := time.Now().UTC()
		job.CompletedAt = &now
		o.mu.Unlock()

		o.logger.Error("email job prerequisites failed", "job_id", job.ID, "error", err)
		o.persist(ctx, job)
		o.notifyCompleted(ctx, job)

		return
	}

	job.Status = models.EmailJobInProgress
	now := time.Now().UTC()
	job.StartedAt = &now
	o.mu.Unlock()

	o.persist(ctx, job)
	o.sendEmailsWithRetry(ctx, handle)

	o.mu.Lock()
	o.finalize(job)
	o.mu.Unlock()

	o.persist(ctx, job)
	o.notifyCompleted(ctx, job)
}

func (o *Orchestrator) checkPrerequisites(handle *jobHandle) error {
	switch {
	case handle.user.AccessToken == "":
		return errors.New("mail access token is missing; re-authenticate and retry")
	case len(handle.job.Attendees) == 0:
		return errors.New("no validated attendees to send to")
	case handle.job.MeetingData.Title == "":
		return errors.New("meeting title is missing")
	case strings.TrimSpace(handle.job.AgendaContent) == "":
		return errors.New("agenda content is empty")
	default:
		return nil
	}
}

// sendEmailsWithRetry runs up to MaxRetries send waves. Recipients that
// already succeeded in a prior wave are removed from the retry set, so no
// recipient receives more than one send per wave. Failures not matching the
// retryable allow-list are recorded as permanent and excluded from later
// waves.
func (o *Orchestrator) sendEmailsWithRetry(ctx context.Context, handle *jobHandle) {
	job := handle.job
	policy := retry.Policy{
		BaseDelay:  handle.config.BaseDelay,
		Multiplier: 2.0,
		MaxDelay:   handle.config.MaxDelay,
	}

	for attempt := 1; attempt <= handle.config.MaxRetries; attempt++ {
		remaining := o.remainingRecipients(job)
		if len(remaining) == 0 {
			return
		}

		if attempt > 1 {
			select {
			case <-ctx.Done():
				o.recordCancelled(job, remaining, attempt)

				return
			case <-time.After(policy.Delay(attempt)):
			}
		}

		if ctx.Err() != nil {
			o.recordCancelled(job, remaining, attempt)

			return
		}

		o.logger.Info("sending email batch",
			"job_id", job.ID,
			"attempt", attempt,
			"recipients", len(remaining))

		result, err := o.gateway.SendBatch(ctx, handle.user, remaining, job.MeetingData, job.AgendaContent)
		if err != nil {
			o.mu.Lock()
			job.Errors = append(job.Errors, fmt.Sprintf("batch send attempt %d failed: %v", attempt, err))
			o.mu.Unlock()

			if !o.isRetryable(err.Error(), handle.config.RetryableErrors) {
				return
			}

			continue
		}

		retryable := o.recordWave(job, result, attempt, handle.config.RetryableErrors)
		if !retryable {
			return
		}
	}
}

// remainingRecipients is the retry set: everyone not yet succeeded and not
// permanently failed.
func (o *Orchestrator) remainingRecipients(job *models.EmailSendingJob) []models.Attendee {
	o.mu.RLock()
	defer o.mu.RUnlock()

	succeeded := job.SucceededEmails()
	permanent := job.PermanentlyFailedEmails()

	remaining := make([]models.Attendee, 0, len(job.Attendees))

	for _, a := range job.Attendees {
		if !succeeded[a.Email] && !permanent[a.Email] {
			remaining = append(remaining, a)
		}
	}

	return remaining
}

// recordWave stores the per-recipient outcomes of one wave and reports
// whether any failure warrants another wave.
func (o *Orchestrator) recordWave(job *models.EmailSendingJob, result *mail.BatchResult, attempt int, allowList []string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	var anyRetryable bool

	for _, r := range result.Results {
		entry := models.EmailSendResult{
			Email:   r.Email,
			Success: r.Success,
			Error:   r.Error,
			Attempt: attempt,
		}

		if !r.Success {
			if o.isRetryable(r.Error, allowList) {
				anyRetryable = true
			} else {
				entry.Permanent = true
				job.Errors = append(job.Errors, fmt.Sprintf("%s: %s", r.Email, r.Error))
			}
		}

		job.Results = append(job.Results, entry)
	}

	return anyRetryable
}

func (o *Orchestrator) recordCancelled(job *models.EmailSendingJob, remaining []models.Attendee, attempt int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, a := range remaining {
		job.Results = append(job.Results, models.EmailSendResult{
			Email:     a.Email,
			Success:   false,
			Error:     "cancelled by user",
			Attempt:   attempt,
			Permanent: true,
		})
	}
}

func (o *Orchestrator) isRetryable(errMsg string, allowList []string) bool {
	msg := strings.ToLower(errMsg)

	for _, marker := range allowList {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}

	return false
}

// finalize derives the terminal status and the sent/failed counts. The
// invariant EmailsSent + EmailsFailed == len(Attendees) holds on exit.
// Caller holds the lock.
func (o *Orchestrator) finalize(job *models.EmailSendingJob) {
	if job.Status == models.EmailJobFailed {
		// Cancelled mid-flight; counts still need deriving.
		o.deriveCounts(job)

		return
	}

	o.deriveCounts(job)

	switch {
	case job.EmailsFailed == 0:
		job.Status = models.EmailJobCompleted
	case job.EmailsSent == 0:
		job.Status = models.EmailJobFailed
	default:
		job.Status = models.EmailJobPartiallyFailed
	}

	now := time.Now().UTC()
	job.CompletedAt = &now
}

func (o *Orchestrator) deriveCounts(job *models.EmailSendingJob) {
	succeeded := job.SucceededEmails()

	job.EmailsSent = 0

	for _, a := range job.Attendees {
		if succeeded[a.Email] {
			job.EmailsSent++
		}
	}

	job.EmailsFailed = len(job.Attendees) - job.EmailsSent
}

func (o *Orchestrator) handle(jobID string) *jobHandle {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.jobs[jobID]
}

func (o *Orchestrator) persist(ctx context.Context, job *models.EmailSendingJob) {
	if o.repo == nil {
		return
	}

	o.mu.RLock()
	snapshot := *job
	o.mu.RUnlock()

	if err := o.repo.Save(ctx, &snapshot); err != nil {
		o.logger.Warn("failed to persist email job", "job_id", job.ID, "error", err)
	}
}

func (o *Orchestrator) notifyStarted(ctx context.Context, job *models.EmailSendingJob) {
	if o.bus == nil {
		return
	}

	err := o.bus.Publish(ctx, job.UserID, events.EmailJobStarted{
		BaseEvent: events.BaseEvent{
			ID:        job.ID,
			Type:      events.EmailJobStartedEvent,
			Timestamp: time.Now().UTC(),
			UserID:    job.UserID,
		},
		JobID:         job.ID,
		AttendeeCount: len(job.Attendees),
	})
	if err != nil {
		o.logger.Warn("failed to publish job started event", "job_id", job.ID, "error", err)
	}
}

func (o *Orchestrator) notifyCompleted(ctx context.Context, job *models.EmailSendingJob) {
	if o.bus == nil {
		return
	}

	o.mu.RLock()
	event := events.EmailJobCompleted{
		BaseEvent: events.BaseEvent{
			ID:        job.ID,
			Type:      events.EmailJobCompletedEvent,
			Timestamp: time.Now().UTC(),
			UserID:    job.UserID,
		},
		JobID:        job.ID,
		Status:       job.Status,
		EmailsSent:   job.EmailsSent,
		EmailsFailed: job.EmailsFailed,
	}
	o.mu.RUnlock()

	if err := o.bus.Publish(ctx, job.UserID, event); err != nil {
		o.logger.Warn("failed to publish job completed event", "job_id", job.ID, "error", err)
	}
}
