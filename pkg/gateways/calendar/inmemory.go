package calendar

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/meetflow/meetflow/pkg/models"
)

// InMemoryGateway is a process-local calendar for tests and development.
// Events can be seeded per user to produce conflicts, and the next call of
// either operation can be scripted to fail.
type InMemoryGateway struct {
	mu      sync.Mutex
	events  map[string][]Conflict // userID -> events
	created map[string]models.MeetingData

	failAvailability error
	failCreate       error
}

// NewInMemoryGateway creates an empty in-memory calendar.
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		events:  make(map[string][]Conflict),
		created: make(map[string]models.MeetingData),
	}
}

// SeedEvent registers an existing event for the user.
func (g *InMemoryGateway) SeedEvent(userID string, c Conflict) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c.EventID == "" {
		c.EventID = uuid.New().String()
	}

	g.events[userID] = append(g.events[userID], c)
}

// FailAvailabilityWith scripts an error for subsequent availability checks.
func (g *InMemoryGateway) FailAvailabilityWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAvailability = err
}

// FailCreateWith scripts an error for subsequent event creations.
func (g *InMemoryGateway) FailCreateWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCreate = err
}

// CreatedEvents returns every event created through the gateway.
func (g *InMemoryGateway) CreatedEvents() map[string]models.MeetingData {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]models.MeetingData, len(g.created))
	for id, data := range g.created {
		out[id] = data
	}

	return out
}

func (g *InMemoryGateway) CheckAvailability(_ context.Context, userID string, window Window) (*Availability, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failAvailability != nil {
		return nil, g.failAvailability
	}

	availability := &Availability{IsAvailable: true}

	for _, event := range g.events[userID] {
		if event.Start.Before(window.End) && window.Start.Before(event.End) {
			availability.Conflicts = append(availability.Conflicts, event)
		}
	}

	availability.IsAvailable = len(availability.Conflicts) == 0

	return availability, nil
}

func (g *InMemoryGateway) CreateEvent(_ context.Context, userID string, data models.MeetingData) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failCreate != nil {
		return "", g.failCreate
	}

	if data.StartTime == nil || data.EndTime == nil {
		return "", fmt.Errorf("cannot create event without start and end time")
	}

	eventID := "evt-" + uuid.New().String()[:8]
	g.created[eventID] = data
	g.events[userID] = append(g.events[userID], Conflict{
		EventID: eventID,
		Title:   data.Title,
		Start:   *data.StartTime,
		End:     *data.EndTime,
	})

	return eventID, nil
}
