// Package ai defines the provider-agnostic contract for natural-language
// generation. Two interchangeable backends implement Provider; the router
// package decides which one serves each logical function.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/meetflow/meetflow/pkg/models"
)

// Logical function names used for routing configuration and decision logs.
const (
	FuncExtractMeetingIntent  = "extractMeetingIntent"
	FuncGenerateMeetingTitles = "generateMeetingTitles"
	FuncGenerateMeetingAgenda = "generateMeetingAgenda"
	FuncGenerateActionItems   = "generateActionItems"
	FuncChat                  = "chat"
	FuncVerifyAttendees       = "verifyAttendees"
)

// Intent is the extracted purpose of the conversation so far.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// AgendaSection is one timed block of a generated agenda.
type AgendaSection struct {
	Title           string   `json:"title"`
	DurationMinutes int      `json:"duration_minutes"`
	Items           []string `json:"items,omitempty"`
}

// AgendaContent is a structured agenda as returned by a provider.
type AgendaContent struct {
	Objective string          `json:"objective"`
	Sections  []AgendaSection `json:"sections"`
}

// Format renders the agenda as the plain text stored on the meeting.
func (a AgendaContent) Format() string {
	var b strings.Builder

	if a.Objective != "" {
		b.WriteString("Objective: " + a.Objective + "\n\n")
	}

	for i, s := range a.Sections {
		fmt.Fprintf(&b, "%d. %s (%d min)\n", i+1, s.Title, s.DurationMinutes)

		for _, item := range s.Items {
			b.WriteString("   - " + item + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// ActionItem is a follow-up task suggested for the meeting.
type ActionItem struct {
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
}

// AttendeeVerification is the per-address outcome of attendee verification.
type AttendeeVerification struct {
	Email   string `json:"email"`
	Valid   bool   `json:"valid"`
	Trusted bool   `json:"trusted"`
}

// Provider is the shared logical contract both AI backends implement. Each
// call may fail with a *ProviderError carrying the error class.
type Provider interface {
	Name() string

	ExtractMeetingIntent(ctx context.Context, messages []models.Message) (*Intent, error)
	GenerateMeetingTitles(ctx context.Context, context_ string, attendees []string, extra string) ([]string, error)
	GenerateMeetingAgenda(ctx context.Context, title, purpose string, attendees []string, durationMinutes int, extra string) (*AgendaContent, error)
	GenerateActionItems(ctx context.Context, title, purpose string, attendees, topics []string, extra string) ([]ActionItem, error)
	Chat(ctx context.Context, messages []models.Message) (string, error)
	VerifyAttendees(ctx context.Context, emails []string) ([]AttendeeVerification, error)
}
