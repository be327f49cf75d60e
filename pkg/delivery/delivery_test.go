package delivery_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/gateways/mail"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/persistence/file"
	"github.com/meetflow/meetflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) (*delivery.Orchestrator, *mail.InMemoryGateway) {
	t.Helper()

	gateway := mail.NewInMemoryGateway()
	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return delivery.NewOrchestrator(gateway, store.EmailJobs(), nil, logger), gateway
}

func fastRetryConfig() *delivery.RetryConfig {
	return &delivery.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func testUser() mail.User {
	return mail.User{ID: "user-1", Email: "organizer@example.com", AccessToken: "token"}
}

func testAttendees() []models.Attendee {
	return []models.Attendee{
		{Email: "alice@example.com", Validated: true, Required: true},
		{Email: "bob@example.com", Validated: true, Required: true},
	}
}

func startJob(t *testing.T, o *delivery.Orchestrator, attendees []models.Attendee, cfg *delivery.RetryConfig) string {
	t.Helper()

	data := testutil.CreateTestMeetingData(func(d *models.MeetingData) {
		d.Attendees = attendees
	})

	jobID, err := o.StartEmailSendingWorkflow(t.Context(), testUser(), "evt-1", attendees, data, data.Agenda, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	return jobID
}

func TestJobCompletesWhenAllSendsSucceed(t *testing.T) {
	o, gateway := newTestOrchestrator(t)

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobCompleted, job.Status)
	assert.Equal(t, 2, job.EmailsSent)
	assert.Zero(t, job.EmailsFailed)
	assert.NotNil(t, job.CompletedAt)

	assert.Equal(t, 1, gateway.SentTo("alice@example.com"))
	assert.Equal(t, 1, gateway.SentTo("bob@example.com"))

	status, err := o.GetEmailSendingStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), status.Progress)
	assert.Nil(t, status.EstimatedTimeRemaining)
}

func TestJobPartiallyFailsOnPermanentError(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailRecipient("bob@example.com", "invalid address")

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobPartiallyFailed, job.Status)
	assert.Equal(t, 1, job.EmailsSent)
	assert.Equal(t, 1, job.EmailsFailed)
	assert.Contains(t, job.Errors, "bob@example.com: invalid address")

	// Partial-failure accounting invariant.
	assert.Equal(t, len(job.Attendees), job.EmailsSent+job.EmailsFailed)

	// Non-retryable failures get exactly one attempt.
	assert.Equal(t, 1, gateway.SentTo("alice@example.com"))
	assert.Zero(t, gateway.SentTo("bob@example.com"))
}

func TestRetryWaveSkipsAlreadySucceededRecipients(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailRecipientOnce("bob@example.com", "request timeout")

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobCompleted, job.Status)
	assert.Equal(t, 2, job.EmailsSent)

	// The second wave re-targets only the failed recipient.
	assert.Equal(t, 1, gateway.SentTo("alice@example.com"))
	assert.Equal(t, 1, gateway.SentTo("bob@example.com"))
}

func TestJobFailsWhenAllRetriesExhausted(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailRecipient("alice@example.com", "request timeout")
	gateway.FailRecipient("bob@example.com", "service unavailable")

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobFailed, job.Status)
	assert.Zero(t, job.EmailsSent)
	assert.Equal(t, 2, job.EmailsFailed)
}

func TestJobFailsFastWithoutAccessToken(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	data := testutil.CreateTestMeetingData()
	user := mail.User{ID: "user-1", Email: "organizer@example.com"}

	jobID, err := o.StartEmailSendingWorkflow(t.Context(), user, "evt-1", testAttendees(), data, data.Agenda, fastRetryConfig())
	require.NoError(t, err)

	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobFailed, job.Status)
	assert.Contains(t, job.Errors, "mail access token is missing; re-authenticate and retry")
}

func TestJobFailsFastWithoutValidatedAttendees(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	attendees := []models.Attendee{{Email: "alice@example.com", Validated: false}}
	jobID := startJob(t, o, attendees, fastRetryConfig())

	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobFailed, job.Status)
	assert.Contains(t, job.Errors, "no validated attendees to send to")
}

func TestJobFailsFastWithEmptyAgenda(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	data := testutil.CreateTestMeetingData(testutil.WithoutAgenda())

	jobID, err := o.StartEmailSendingWorkflow(t.Context(), testUser(), "evt-1", testAttendees(), data, "", fastRetryConfig())
	require.NoError(t, err)

	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobFailed, job.Status)
	assert.Contains(t, job.Errors, "agenda content is empty")
}

func TestCancelStopsRetriesAndMarksFailed(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailRecipient("alice@example.com", "request timeout")

	cfg := &delivery.RetryConfig{MaxRetries: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: time.Second}
	jobID := startJob(t, o, testAttendees()[:1], cfg)

	// Let the first wave fail, then cancel while the job sits in backoff.
	time.Sleep(100 * time.Millisecond)

	status, err := o.GetEmailSendingStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobInProgress, status.Status)
	assert.Nil(t, status.EstimatedTimeRemaining)

	require.NoError(t, o.CancelEmailSendingJob(t.Context(), jobID))
	o.Wait()

	// Cancelled jobs leave the active set.
	_, err = o.GetEmailSendingStatus(jobID)
	require.ErrorIs(t, err, delivery.ErrJobNotFound)

	err = o.CancelEmailSendingJob(t.Context(), jobID)
	require.ErrorIs(t, err, delivery.ErrJobNotFound)
}

func TestCancelFinishedJobFails(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	err := o.CancelEmailSendingJob(t.Context(), jobID)
	require.ErrorIs(t, err, delivery.ErrJobFinished)
}

func TestRetryJobReattemptsOnlyFailures(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailRecipient("bob@example.com", "invalid address")

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	require.Equal(t, models.EmailJobPartiallyFailed, job.Status)

	gateway.ClearRecipient("bob@example.com")

	require.NoError(t, o.RetryEmailSendingJob(t.Context(), jobID))
	o.Wait()

	job, err = o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobCompleted, job.Status)
	assert.Equal(t, 2, job.EmailsSent)
	assert.Equal(t, 1, job.RetryCount)
	assert.Empty(t, job.Errors)

	// A job-level retry never re-sends to recipients that already succeeded.
	assert.Equal(t, 1, gateway.SentTo("alice@example.com"))
	assert.Equal(t, 1, gateway.SentTo("bob@example.com"))
}

func TestRetryRejectsNonRetryableStates(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	err := o.RetryEmailSendingJob(t.Context(), jobID)
	require.ErrorIs(t, err, delivery.ErrJobNotRetryable)

	err = o.RetryEmailSendingJob(t.Context(), "job-missing")
	require.ErrorIs(t, err, delivery.ErrJobNotFound)
}

func TestRetryLimitEnforced(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailRecipient("alice@example.com", "invalid address")

	cfg := fastRetryConfig()
	cfg.MaxRetries = 1

	jobID := startJob(t, o, testAttendees()[:1], cfg)
	o.Wait()

	require.NoError(t, o.RetryEmailSendingJob(t.Context(), jobID))
	o.Wait()

	err := o.RetryEmailSendingJob(t.Context(), jobID)
	require.ErrorIs(t, err, delivery.ErrRetriesExceeded)
}

func TestBatchTransportErrorNotRetryableFailsJob(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailAllWith(errors.New("invalid credentials"))

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	job, err := o.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobFailed, job.Status)
	require.NotEmpty(t, job.Errors)
	assert.Contains(t, job.Errors[0], "batch send attempt 1 failed")
}

func TestStatsCountsJobsPerStatus(t *testing.T) {
	o, gateway := newTestOrchestrator(t)
	gateway.FailRecipient("bob@example.com", "invalid address")

	startJob(t, o, testAttendees(), fastRetryConfig())
	startJob(t, o, testAttendees()[:1], fastRetryConfig())
	o.Wait()

	stats := o.Stats()
	assert.Equal(t, 1, stats[models.EmailJobCompleted])
	assert.Equal(t, 1, stats[models.EmailJobPartiallyFailed])
}

func TestPurgeFinishedJobs(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	jobID := startJob(t, o, testAttendees(), fastRetryConfig())
	o.Wait()

	// Nothing purged while the retention window covers the job.
	assert.Zero(t, o.PurgeFinishedJobs(t.Context()))

	o.SetRetention(0)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, o.PurgeFinishedJobs(t.Context()))

	_, err := o.Job(jobID)
	require.ErrorIs(t, err, delivery.ErrJobNotFound)
}
