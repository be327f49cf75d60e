package models_test

import (
	"testing"
	"time"

	"github.com/meetflow/meetflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestEmailJobStatusIsFinished(t *testing.T) {
	assert.False(t, models.EmailJobPending.IsFinished())
	assert.False(t, models.EmailJobInProgress.IsFinished())
	assert.True(t, models.EmailJobCompleted.IsFinished())
	assert.True(t, models.EmailJobFailed.IsFinished())
	assert.True(t, models.EmailJobPartiallyFailed.IsFinished())
}

func TestSucceededAndPermanentlyFailedEmails(t *testing.T) {
	job := &models.EmailSendingJob{
		Results: []models.EmailSendResult{
			{Email: "alice@example.com", Success: true, Attempt: 1},
			{Email: "bob@example.com", Success: false, Attempt: 1, Error: "invalid address", Permanent: true},
			{Email: "carol@example.com", Success: false, Attempt: 2, Error: "timeout"},
		},
	}

	sent := job.SucceededEmails()
	assert.True(t, sent["alice@example.com"])
	assert.False(t, sent["bob@example.com"])

	permanent := job.PermanentlyFailedEmails()
	assert.True(t, permanent["bob@example.com"])
	assert.False(t, permanent["carol@example.com"])
}

func TestResetForRetryKeepsOnlySuccesses(t *testing.T) {
	done := time.Now().UTC()

	job := &models.EmailSendingJob{
		Status:       models.EmailJobPartiallyFailed,
		RetryCount:   1,
		Errors:       []string{"bob@example.com: invalid address"},
		EmailsSent:   1,
		EmailsFailed: 1,
		CompletedAt:  &done,
		Results: []models.EmailSendResult{
			{Email: "alice@example.com", Success: true, Attempt: 1},
			{Email: "bob@example.com", Success: false, Attempt: 1, Permanent: true},
		},
	}

	job.ResetForRetry()

	assert.Equal(t, models.EmailJobPending, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	assert.Empty(t, job.Errors)
	assert.Nil(t, job.CompletedAt)
	assert.Zero(t, job.EmailsSent)
	assert.Zero(t, job.EmailsFailed)

	// Failures are dropped so the retried run gives them a fresh chance;
	// successes stay so they are never re-sent.
	assert.Len(t, job.Results, 1)
	assert.Equal(t, "alice@example.com", job.Results[0].Email)
}
