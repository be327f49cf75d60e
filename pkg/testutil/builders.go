// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/meetflow/meetflow/pkg/models"
)

// CreateTestMeetingData builds meeting data that passes every business rule:
// a titled online meeting tomorrow with one validated attendee and an agenda
// long enough for the quality linter.
func CreateTestMeetingData(overrides ...func(*models.MeetingData)) models.MeetingData {
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)
	end := start.Add(time.Hour)

	data := models.MeetingData{
		Title:           "Quarterly Planning Sync",
		Type:            models.MeetingTypeOnline,
		StartTime:       &start,
		EndTime:         &end,
		DurationMinutes: 60,
		Purpose:         "Align on next quarter priorities",
		Attendees: []models.Attendee{
			{Email: "alice@example.com", DisplayName: "Alice", Validated: true, Required: true},
		},
		Agenda: CreateTestAgenda(),
	}

	for _, override := range overrides {
		override(&data)
	}

	return data
}

// CreateTestAgenda returns agenda text comfortably above the fifty-word
// minimum, spread over multiple sections.
func CreateTestAgenda() string {
	return "1. Welcome and introductions (5 min)\n" +
		"   - Review the goals for this session and confirm everyone can attend the full hour\n" +
		"2. Review of last quarter outcomes (20 min)\n" +
		"   - Walk through the delivered milestones, the slipped items, and the lessons the team captured\n" +
		"3. Priorities for next quarter (25 min)\n" +
		"   - Discuss the proposed roadmap, assign owners for each initiative, and agree on success measures\n" +
		"4. Wrap up and action items (10 min)\n" +
		"   - Summarize the decisions taken and schedule the follow-up checkpoints for the coming weeks"
}

// WithAttendees replaces the attendee list.
func WithAttendees(attendees ...models.Attendee) func(*models.MeetingData) {
	return func(d *models.MeetingData) {
		d.Attendees = attendees
	}
}

// WithWindow sets the meeting window.
func WithWindow(start, end time.Time) func(*models.MeetingData) {
	return func(d *models.MeetingData) {
		d.StartTime = &start
		d.EndTime = &end
		d.DurationMinutes = int(end.Sub(start).Minutes())
	}
}

// WithAgenda sets the agenda text.
func WithAgenda(text string) func(*models.MeetingData) {
	return func(d *models.MeetingData) {
		d.Agenda = text
	}
}

// WithoutAgenda clears the agenda.
func WithoutAgenda() func(*models.MeetingData) {
	return func(d *models.MeetingData) {
		d.Agenda = ""
	}
}

// CreateTestWorkflowState builds a state at the given step carrying the
// default meeting data.
func CreateTestWorkflowState(step models.Step, overrides ...func(*models.WorkflowState)) *models.WorkflowState {
	state := models.NewWorkflowState("conv-"+uuid.New().String()[:8], "user-1")
	state.CurrentStep = step
	state.MeetingData = CreateTestMeetingData()

	for _, override := range overrides {
		override(state)
	}

	return state
}

// CreateTestEmailJob builds a pending job for the default meeting data.
func CreateTestEmailJob(overrides ...func(*models.EmailSendingJob)) *models.EmailSendingJob {
	data := CreateTestMeetingData()

	job := &models.EmailSendingJob{
		ID:            "job-" + uuid.New().String()[:8],
		UserID:        "user-1",
		MeetingID:     "evt-" + uuid.New().String()[:8],
		Attendees:     data.Attendees,
		MeetingData:   data,
		AgendaContent: data.Agenda,
		Status:        models.EmailJobPending,
		MaxRetries:    3,
		CreatedAt:     time.Now().UTC(),
	}

	for _, override := range overrides {
		override(job)
	}

	return job
}
