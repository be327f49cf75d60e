package models

import "time"

// ValidationResult records the outcome of one attempted step validation.
type ValidationResult struct {
	Step      Step      `json:"step"`
	IsValid   bool      `json:"is_valid"`
	Errors    []string  `json:"errors,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// UIBlock describes an interactive widget the UI layer should render.
// Rendering is entirely external; the core only produces the descriptor.
type UIBlock struct {
	Type    string         `json:"type"`
	Mode    string         `json:"mode,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// StepResponse is the structured result of executing one workflow step.
type StepResponse struct {
	Message           string   `json:"message"`
	UIBlock           *UIBlock `json:"ui_block,omitempty"`
	NextStep          Step     `json:"next_step"`
	RequiresUserInput bool     `json:"requires_user_input"`
	ValidationErrors  []string `json:"validation_errors,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
	SuggestedActions  []string `json:"suggested_actions,omitempty"`
}

// TransitionCheck is the non-mutating answer to "can I advance".
type TransitionCheck struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// WorkflowState is the single source of truth for one conversation. It is
// exclusively owned by the conversation it belongs to; collaborators receive
// it as read input and return results which the orchestrator applies.
type WorkflowState struct {
	ConversationID    string             `json:"conversation_id" validate:"required"`
	UserID            string             `json:"user_id"`
	CurrentStep       Step               `json:"current_step"`
	MeetingData       MeetingData        `json:"meeting_data"`
	ValidationResults []ValidationResult `json:"validation_results,omitempty"`
	PendingActions    []string           `json:"pending_actions,omitempty"`
	Errors            []string           `json:"errors,omitempty"`
	IsComplete        bool               `json:"is_complete"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewWorkflowState starts a fresh workflow at intent detection.
func NewWorkflowState(conversationID, userID string) *WorkflowState {
	now := time.Now().UTC()

	return &WorkflowState{
		ConversationID: conversationID,
		UserID:         userID,
		CurrentStep:    StepIntentDetection,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RecordValidation appends a validation outcome, keeping the list ordered by
// attempt time.
func (w *WorkflowState) RecordValidation(result ValidationResult) {
	w.ValidationResults = append(w.ValidationResults, result)
	w.UpdatedAt = time.Now().UTC()
}

// LastValidation returns the most recent validation outcome for a step, or
// nil when the step was never validated.
func (w *WorkflowState) LastValidation(step Step) *ValidationResult {
	for i := len(w.ValidationResults) - 1; i >= 0; i-- {
		if w.ValidationResults[i].Step == step {
			return &w.ValidationResults[i]
		}
	}

	return nil
}

// AdvanceTo moves the workflow to the given step. Callers are expected to
// have validated the transition first.
func (w *WorkflowState) AdvanceTo(step Step) {
	w.CurrentStep = step
	w.IsComplete = step.IsTerminal()
	w.UpdatedAt = time.Now().UTC()
}
