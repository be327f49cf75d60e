// Package mail defines the mail gateway contract consumed by the email
// delivery orchestrator. The provider HTTP client lives outside the core.
package mail

import (
	"context"

	"github.com/meetflow/meetflow/pkg/models"
)

// User identifies the sending account. An empty AccessToken means the user
// has no mail authorization and batch sends must fail fast.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AccessToken string `json:"-"`
}

// SendResult is the per-recipient outcome of a batch send.
type SendResult struct {
	Email   string `json:"email"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchResult summarizes one batch send call.
type BatchResult struct {
	TotalSent   int          `json:"total_sent"`
	TotalFailed int          `json:"total_failed"`
	Results     []SendResult `json:"results"`
}

// Gateway is the mail collaborator contract. A call may fail wholesale
// (transport error) or partially (per-recipient results).
type Gateway interface {
	SendBatch(ctx context.Context, user User, attendees []models.Attendee, data models.MeetingData, agenda string) (*BatchResult, error)
}
