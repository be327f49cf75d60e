// Package models defines the core domain models for the conversational
// meeting-scheduling workflow.
package models

// Step is one named stage of the fixed meeting-creation sequence.
type Step string

const (
	StepIntentDetection           Step = "intent_detection"
	StepCalendarAccessVerify      Step = "calendar_access_verification"
	StepMeetingTypeSelection      Step = "meeting_type_selection"
	StepTimeDateCollection        Step = "time_date_collection"
	StepAvailabilityCheck         Step = "availability_check"
	StepConflictResolution        Step = "conflict_resolution"
	StepAttendeeCollection        Step = "attendee_collection"
	StepMeetingDetailsCollection  Step = "meeting_details_collection"
	StepValidation                Step = "validation"
	StepAgendaGeneration          Step = "agenda_generation"
	StepAgendaApproval            Step = "agenda_approval"
	StepApproval                  Step = "approval"
	StepCreation                  Step = "creation"
	StepCompleted                 Step = "completed"
)

// Steps lists every step in forward order. StepConflictResolution is
// conditional and only entered when the availability check reports conflicts.
var Steps = []Step{
	StepIntentDetection,
	StepCalendarAccessVerify,
	StepMeetingTypeSelection,
	StepTimeDateCollection,
	StepAvailabilityCheck,
	StepConflictResolution,
	StepAttendeeCollection,
	StepMeetingDetailsCollection,
	StepValidation,
	StepAgendaGeneration,
	StepAgendaApproval,
	StepApproval,
	StepCreation,
	StepCompleted,
}

// IsValid reports whether s is a known workflow step.
func (s Step) IsValid() bool {
	for _, step := range Steps {
		if step == s {
			return true
		}
	}

	return false
}

// Index returns the position of s in the forward order, or -1 for an
// unknown step.
func (s Step) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}

	return -1
}

// IsTerminal reports whether s ends the workflow.
func (s Step) IsTerminal() bool {
	return s == StepCompleted
}
