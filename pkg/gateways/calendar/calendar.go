// Package calendar defines the calendar gateway contract consumed by the
// workflow orchestrator. The real HTTP client lives outside the core; the
// in-memory implementation here backs tests and local development.
package calendar

import (
	"context"
	"time"

	"github.com/meetflow/meetflow/pkg/models"
)

// Window is a candidate meeting time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Conflict describes an existing event overlapping the requested window.
type Conflict struct {
	EventID string    `json:"event_id"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Availability is the result of an availability query.
type Availability struct {
	IsAvailable bool       `json:"is_available"`
	Conflicts   []Conflict `json:"conflicts,omitempty"`
}

// Gateway is the calendar collaborator contract. CheckAvailability may fail
// transiently; CreateEvent throws on failure with no fallback possible.
type Gateway interface {
	CheckAvailability(ctx context.Context, userID string, window Window) (*Availability, error)
	CreateEvent(ctx context.Context, userID string, data models.MeetingData) (string, error)
}
