package models

import "time"

// MeetingType distinguishes online meetings from physical ones.
type MeetingType string

const (
	MeetingTypeOnline   MeetingType = "online"
	MeetingTypePhysical MeetingType = "physical"
)

// Attendee is a single meeting participant.
type Attendee struct {
	Email       string `json:"email"        validate:"required,email"`
	DisplayName string `json:"display_name"`
	Validated   bool   `json:"validated"`
	Required    bool   `json:"required"`
}

// MeetingData accumulates everything collected over the conversation. Fields
// start empty and are filled in step by step; per-step guards decide which
// fields must be present before a transition can pass.
type MeetingData struct {
	Title           string      `json:"title"`
	Type            MeetingType `json:"type"`
	Location        string      `json:"location,omitempty"`
	StartTime       *time.Time  `json:"start_time,omitempty"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	DurationMinutes int         `json:"duration_minutes,omitempty"`
	Purpose         string      `json:"purpose,omitempty"`
	Attendees       []Attendee  `json:"attendees"`
	Agenda          string      `json:"agenda"`
	AgendaApproved  bool        `json:"agenda_approved"`
	FinalApproved   bool        `json:"final_approved"`
	CalendarEventID string      `json:"calendar_event_id,omitempty"`
}

// ValidatedAttendees returns only attendees whose address passed validation.
func (m MeetingData) ValidatedAttendees() []Attendee {
	out := make([]Attendee, 0, len(m.Attendees))

	for _, a := range m.Attendees {
		if a.Validated {
			out = append(out, a)
		}
	}

	return out
}

// AttendeeEmails returns the plain address list, validated or not.
func (m MeetingData) AttendeeEmails() []string {
	emails := make([]string, 0, len(m.Attendees))
	for _, a := range m.Attendees {
		emails = append(emails, a.Email)
	}

	return emails
}

// Merge applies the non-zero fields of partial on top of m, returning the
// merged copy. Attendees and agenda are replaced wholesale when provided.
func (m MeetingData) Merge(partial MeetingData) MeetingData {
	if partial.Title != "" {
		m.Title = partial.Title
	}

	if partial.Type != "" {
		m.Type = partial.Type
	}

	if partial.Location != "" {
		m.Location = partial.Location
	}

	if partial.StartTime != nil {
		m.StartTime = partial.StartTime
	}

	if partial.EndTime != nil {
		m.EndTime = partial.EndTime
	}

	if partial.DurationMinutes != 0 {
		m.DurationMinutes = partial.DurationMinutes
	}

	if partial.Purpose != "" {
		m.Purpose = partial.Purpose
	}

	if len(partial.Attendees) > 0 {
		m.Attendees = partial.Attendees
	}

	if partial.Agenda != "" {
		m.Agenda = partial.Agenda
	}

	return m
}
