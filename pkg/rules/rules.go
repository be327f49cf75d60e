// Package rules holds the pure business validation rules consumed by the
// workflow orchestrator: per-step required fields, lead time and duration
// bounds, and attendee address validation.
package rules

import (
	"fmt"
	"time"

	"github.com/meetflow/meetflow/pkg/models"
)

// Engine evaluates meeting data against scheduling rules. It is stateless
// and safe for concurrent use.
type Engine struct {
	MinLeadTime  time.Duration
	MinDuration  time.Duration
	MaxDuration  time.Duration
	MaxAttendees int
}

// NewEngine returns an engine with the product defaults: 30 minutes lead
// time, meetings between 15 minutes and 8 hours, at most 50 attendees.
func NewEngine() *Engine {
	return &Engine{
		MinLeadTime:  30 * time.Minute,
		MinDuration:  15 * time.Minute,
		MaxDuration:  8 * time.Hour,
		MaxAttendees: 50,
	}
}

// RequiredFields names the meetingData fields a step's guard expects.
func (e *Engine) RequiredFields(step models.Step) []string {
	switch step {
	case models.StepTimeDateCollection:
		return []string{"type"}
	case models.StepAvailabilityCheck, models.StepConflictResolution:
		return []string{"start_time", "end_time"}
	case models.StepAttendeeCollection:
		return []string{"start_time", "end_time"}
	case models.StepMeetingDetailsCollection:
		return []string{"attendees"}
	case models.StepValidation:
		return []string{"title", "attendees"}
	case models.StepAgendaGeneration, models.StepAgendaApproval:
		return []string{"title"}
	case models.StepApproval:
		return []string{"agenda"}
	case models.StepCreation:
		return []string{"title", "type", "start_time", "end_time", "attendees", "agenda"}
	default:
		return nil
	}
}

// ValidateStep checks the required fields plus the rules that apply to the
// step, returning a recorded validation result.
func (e *Engine) ValidateStep(step models.Step, data models.MeetingData) models.ValidationResult {
	result := models.ValidationResult{
		Step:      step,
		CheckedAt: time.Now().UTC(),
	}

	for _, field := range e.RequiredFields(step) {
		if err := checkField(field, data); err != "" {
			result.Errors = append(result.Errors, err)
		}
	}

	if data.StartTime != nil && data.EndTime != nil {
		result.Errors = append(result.Errors, e.validateTimes(*data.StartTime, *data.EndTime)...)
	}

	if len(data.Attendees) > e.MaxAttendees {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Meeting cannot have more than %d attendees", e.MaxAttendees))
	}

	if data.Type == models.MeetingTypePhysical && data.Location == "" {
		result.Warnings = append(result.Warnings, "Physical meeting has no location set")
	}

	result.IsValid = len(result.Errors) == 0

	return result
}

func checkField(field string, data models.MeetingData) string {
	switch field {
	case "title":
		if data.Title == "" {
			return "Meeting title is required"
		}
	case "type":
		if data.Type == "" {
			return "Meeting type (online or physical) is required"
		}
	case "start_time":
		if data.StartTime == nil {
			return "Meeting start time is required"
		}
	case "end_time":
		if data.EndTime == nil {
			return "Meeting end time is required"
		}
	case "attendees":
		if len(data.Attendees) == 0 {
			return "At least one attendee is required"
		}
	case "agenda":
		if data.Agenda == "" {
			return "Agenda is required"
		}
	}

	return ""
}

func (e *Engine) validateTimes(start, end time.Time) []string {
	var errs []string

	if !end.After(start) {
		errs = append(errs, "Meeting end time must be after the start time")

		return errs
	}

	if duration := end.Sub(start); duration < e.MinDuration {
		errs = append(errs, fmt.Sprintf("Meeting must be at least %s long", e.MinDuration))
	} else if duration > e.MaxDuration {
		errs = append(errs, fmt.Sprintf("Meeting cannot be longer than %s", e.MaxDuration))
	}

	if lead := time.Until(start); lead < e.MinLeadTime {
		errs = append(errs, fmt.Sprintf("Meeting must be scheduled at least %s in advance", e.MinLeadTime))
	}

	return errs
}
