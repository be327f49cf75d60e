package workflow

import (
	"fmt"

	"github.com/meetflow/meetflow/pkg/models"
)

// GuardFunc is a pure predicate over the workflow state. It returns the
// concrete reasons the transition cannot happen; an empty slice means the
// guard passes. Guards never mutate state.
type GuardFunc func(state *models.WorkflowState) []string

// Transition is one edge of the step machine. The closed table below is the
// only source of legal transitions; anything not listed is illegal.
type Transition struct {
	From  models.Step
	To    models.Step
	Guard GuardFunc
}

func noGuard(*models.WorkflowState) []string { return nil }

func requireType(state *models.WorkflowState) []string {
	if state.MeetingData.Type == "" {
		return []string{"Meeting type (online or physical) is required"}
	}

	return nil
}

func requireWindow(state *models.WorkflowState) []string {
	var errs []string

	if state.MeetingData.StartTime == nil {
		errs = append(errs, "Meeting start time is required")
	}

	if state.MeetingData.EndTime == nil {
		errs = append(errs, "Meeting end time is required")
	}

	return errs
}

func requireValidatedAttendees(state *models.WorkflowState) []string {
	if len(state.MeetingData.ValidatedAttendees()) == 0 {
		return []string{"At least one validated attendee is required"}
	}

	return nil
}

func requireTitle(state *models.WorkflowState) []string {
	if state.MeetingData.Title == "" {
		return []string{"Meeting title is required"}
	}

	return nil
}

func requireValidationPassed(state *models.WorkflowState) []string {
	last := state.LastValidation(models.StepValidation)
	if last == nil || !last.IsValid {
		return []string{"Meeting details must pass validation first"}
	}

	return nil
}

func requireAgenda(state *models.WorkflowState) []string {
	if state.MeetingData.Agenda == "" {
		return []string{"Agenda is required"}
	}

	return nil
}

// requireApprovedAgenda gates the path into final approval and creation: the
// agenda must exist and its last validation must be valid.
func requireApprovedAgenda(state *models.WorkflowState) []string {
	if state.MeetingData.Agenda == "" {
		return []string{"Agenda must be approved before final approval"}
	}

	last := state.LastValidation(models.StepAgendaApproval)
	if last == nil || !last.IsValid {
		return []string{"Agenda must be approved before final approval"}
	}

	return nil
}

func requireCreationReady(state *models.WorkflowState) []string {
	errs := requireApprovedAgenda(state)
	errs = append(errs, requireTitle(state)...)
	errs = append(errs, requireType(state)...)
	errs = append(errs, requireWindow(state)...)
	errs = append(errs, requireValidatedAttendees(state)...)

	return errs
}

// transitions is the closed transition table. Backward edges exist for
// agenda regeneration and conflict re-picking only.
var transitions = []Transition{
	{From: models.StepIntentDetection, To: models.StepCalendarAccessVerify, Guard: noGuard},
	{From: models.StepCalendarAccessVerify, To: models.StepMeetingTypeSelection, Guard: noGuard},
	{From: models.StepMeetingTypeSelection, To: models.StepTimeDateCollection, Guard: requireType},
	{From: models.StepTimeDateCollection, To: models.StepAvailabilityCheck, Guard: requireWindow},
	{From: models.StepAvailabilityCheck, To: models.StepConflictResolution, Guard: requireWindow},
	{From: models.StepAvailabilityCheck, To: models.StepAttendeeCollection, Guard: requireWindow},
	{From: models.StepConflictResolution, To: models.StepTimeDateCollection, Guard: noGuard},
	{From: models.StepConflictResolution, To: models.StepAttendeeCollection, Guard: requireWindow},
	{From: models.StepAttendeeCollection, To: models.StepMeetingDetailsCollection, Guard: requireValidatedAttendees},
	{From: models.StepMeetingDetailsCollection, To: models.StepValidation, Guard: requireTitle},
	{From: models.StepValidation, To: models.StepAgendaGeneration, Guard: requireValidationPassed},
	{From: models.StepAgendaGeneration, To: models.StepAgendaApproval, Guard: requireAgenda},
	{From: models.StepAgendaApproval, To: models.StepAgendaGeneration, Guard: noGuard},
	{From: models.StepAgendaApproval, To: models.StepApproval, Guard: requireApprovedAgenda},
	{From: models.StepApproval, To: models.StepCreation, Guard: requireApprovedAgenda},
	{From: models.StepCreation, To: models.StepCompleted, Guard: requireCreationReady},
}

// findTransition looks up the edge for a from/to pair.
func findTransition(from, to models.Step) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}

	return Transition{}, false
}

// ValidateTransition evaluates the guard for moving the given state to the
// target step without mutating anything. Used internally before every
// transition and exposed for callers probing whether they can advance.
func ValidateTransition(state *models.WorkflowState, to models.Step) models.TransitionCheck {
	if state.CurrentStep == to {
		return models.TransitionCheck{IsValid: true}
	}

	t, ok := findTransition(state.CurrentStep, to)
	if !ok {
		return models.TransitionCheck{
			IsValid: false,
			Errors:  []string{fmt.Sprintf("cannot transition from %s to %s", state.CurrentStep, to)},
		}
	}

	if errs := t.Guard(state); len(errs) > 0 {
		return models.TransitionCheck{IsValid: false, Errors: errs}
	}

	return models.TransitionCheck{IsValid: true}
}
