package mail

import (
	"context"
	"sync"

	"github.com/meetflow/meetflow/pkg/models"
)

// SentMessage is one delivered email recorded by the in-memory gateway.
type SentMessage struct {
	To        string
	Subject   string
	Agenda    string
	MeetingID string
}

// InMemoryGateway records sends and supports scripted per-recipient failures
// for exercising the retry paths.
type InMemoryGateway struct {
	mu   sync.Mutex
	sent []SentMessage

	// failures maps recipient -> error message; the recipient fails until
	// cleared. failuresOnce fails each listed recipient exactly once.
	failures     map[string]string
	failuresOnce map[string]string
	failAll      error
}

// NewInMemoryGateway creates an empty in-memory mail gateway.
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		failures:     make(map[string]string),
		failuresOnce: make(map[string]string),
	}
}

// FailRecipient makes every send to the recipient fail with msg.
func (g *InMemoryGateway) FailRecipient(email, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[email] = msg
}

// FailRecipientOnce makes the next send to the recipient fail with msg.
func (g *InMemoryGateway) FailRecipientOnce(email, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failuresOnce[email] = msg
}

// ClearRecipient removes any scripted failure for the recipient.
func (g *InMemoryGateway) ClearRecipient(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, email)
	delete(g.failuresOnce, email)
}

// FailAllWith makes the whole batch call fail with err.
func (g *InMemoryGateway) FailAllWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAll = err
}

// Sent returns every recorded delivery.
func (g *InMemoryGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]SentMessage, len(g.sent))
	copy(out, g.sent)

	return out
}

// SentTo counts deliveries to one recipient.
func (g *InMemoryGateway) SentTo(email string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var n int

	for _, m := range g.sent {
		if m.To == email {
			n++
		}
	}

	return n
}

func (g *InMemoryGateway) SendBatch(_ context.Context, _ User, attendees []models.Attendee, data models.MeetingData, agenda string) (*BatchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failAll != nil {
		return nil, g.failAll
	}

	result := &BatchResult{}

	for _, a := range attendees {
		if msg, ok := g.failuresOnce[a.Email]; ok {
			delete(g.failuresOnce, a.Email)
			result.TotalFailed++
			result.Results = append(result.Results, SendResult{Email: a.Email, Success: false, Error: msg})

			continue
		}

		if msg, ok := g.failures[a.Email]; ok {
			result.TotalFailed++
			result.Results = append(result.Results, SendResult{Email: a.Email, Success: false, Error: msg})

			continue
		}

		g.sent = append(g.sent, SentMessage{
			To:      a.Email,
			Subject: "Agenda: " + data.Title,
			Agenda:  agenda,
		})
		result.TotalSent++
		result.Results = append(result.Results, SendResult{Email: a.Email, Success: true})
	}

	return result, nil
}
