package workflow

import (
	"context"

	"github.com/meetflow/meetflow/pkg/conversation"
	"github.com/meetflow/meetflow/pkg/models"
)

// handleAgendaApproval presents the current agenda for approval. Without an
// agenda the workflow is redirected back to generation; with an invalid one
// the user stays here and sees the concrete errors.
func (o *Orchestrator) handleAgendaApproval(state *models.WorkflowState) *models.StepResponse {
	if state.MeetingData.Agenda == "" {
		return &models.StepResponse{
			Message:           "There's no agenda yet; let me generate one first.",
			NextStep:          models.StepAgendaGeneration,
			RequiresUserInput: false,
			ValidationErrors:  []string{"Agenda is required"},
		}
	}

	result := o.agendaValidator.Validate(state.MeetingData.Agenda)
	state.RecordValidation(result)

	if !result.IsValid {
		return &models.StepResponse{
			Message:           "The current agenda has problems that need fixing before approval.",
			NextStep:          models.StepAgendaApproval,
			RequiresUserInput: true,
			ValidationErrors:  result.Errors,
			Warnings:          result.Warnings,
		}
	}

	return &models.StepResponse{
		Message: "Here's the agenda. Approve it, edit it, or ask me to regenerate.",
		UIBlock: &models.UIBlock{
			Type:    "agenda_editor",
			Mode:    "approval",
			Payload: map[string]any{"agenda": state.MeetingData.Agenda},
		},
		NextStep:          models.StepAgendaApproval,
		RequiresUserInput: true,
		Warnings:          result.Warnings,
	}
}

// updateAgenda stores edited agenda text and re-validates it. The step never
// advances here; approval is a separate explicit action.
func (o *Orchestrator) updateAgenda(state *models.WorkflowState, text string) *models.StepResponse {
	result := o.agendaValidator.Validate(text)
	state.RecordValidation(result)

	state.MeetingData.Agenda = text
	state.MeetingData.AgendaApproved = false

	if !result.IsValid {
		return &models.StepResponse{
			Message:           "Agenda updated, but it has problems that need fixing before approval.",
			NextStep:          models.StepAgendaApproval,
			RequiresUserInput: true,
			ValidationErrors:  result.Errors,
			Warnings:          result.Warnings,
		}
	}

	return &models.StepResponse{
		Message: "Agenda updated. Approve it when you're happy with it.",
		UIBlock: &models.UIBlock{
			Type:    "agenda_editor",
			Mode:    "approval",
			Payload: map[string]any{"agenda": text},
		},
		NextStep:          models.StepAgendaApproval,
		RequiresUserInput: true,
		Warnings:          result.Warnings,
	}
}

// regenerateAgenda asks the router for a fresh agenda using the conversation
// history as context. On provider failure the previous agenda is left
// untouched and the user gets a manual-edit fallback.
func (o *Orchestrator) regenerateAgenda(ctx context.Context, state *models.WorkflowState, conv *conversation.Context) *models.StepResponse {
	content, err := o.router.GenerateMeetingAgenda(ctx,
		state.MeetingData.Title,
		state.MeetingData.Purpose,
		state.MeetingData.AttendeeEmails(),
		state.MeetingData.DurationMinutes,
		recentUserContext(conv))
	if err != nil {
		o.logger.Warn("agenda regeneration failed",
			"conversation_id", state.ConversationID, "error", err)

		return &models.StepResponse{
			Message:           "Failed to regenerate agenda. Please edit the current agenda manually.",
			NextStep:          models.StepAgendaApproval,
			RequiresUserInput: true,
			ValidationErrors:  []string{"Agenda regeneration failed"},
			SuggestedActions:  []string{"Edit the agenda manually", "Try again"},
		}
	}

	text := content.Format()
	result := o.agendaValidator.Validate(text)
	state.RecordValidation(result)

	state.MeetingData.Agenda = text
	state.MeetingData.AgendaApproved = false

	return &models.StepResponse{
		Message: "Here's a fresh agenda draft. Approve it, edit it, or regenerate again.",
		UIBlock: &models.UIBlock{
			Type:    "agenda_editor",
			Mode:    "approval",
			Payload: map[string]any{"agenda": text},
		},
		NextStep:          models.StepAgendaApproval,
		RequiresUserInput: true,
		ValidationErrors:  result.Errors,
		Warnings:          result.Warnings,
	}
}

// approveAgenda re-validates the submitted text and, only on success, stores
// it and advances to final approval. An invalid agenda mutates nothing.
func (o *Orchestrator) approveAgenda(state *models.WorkflowState, text string) *models.StepResponse {
	result := o.agendaValidator.Validate(text)

	if !result.IsValid {
		state.RecordValidation(result)

		return &models.StepResponse{
			Message:           "The agenda can't be approved yet.",
			NextStep:          models.StepAgendaApproval,
			RequiresUserInput: true,
			ValidationErrors:  result.Errors,
			Warnings:          result.Warnings,
		}
	}

	state.MeetingData.Agenda = text
	state.MeetingData.AgendaApproved = true
	state.RecordValidation(result)

	return &models.StepResponse{
		Message:           "Agenda approved. Review the final summary and confirm to create the meeting.",
		NextStep:          models.StepApproval,
		RequiresUserInput: false,
		Warnings:          result.Warnings,
	}
}

// HandleAgendaApproval is the external entry point for re-presenting the
// agenda approval step.
func (o *Orchestrator) HandleAgendaApproval(ctx context.Context, conversationID string) (*models.StepResponse, error) {
	return o.agendaOperation(ctx, conversationID, func(state *models.WorkflowState) *models.StepResponse {
		return o.handleAgendaApproval(state)
	})
}

// UpdateAgenda stores edited agenda text without advancing the workflow.
func (o *Orchestrator) UpdateAgenda(ctx context.Context, conversationID, text string) (*models.StepResponse, error) {
	return o.agendaOperation(ctx, conversationID, func(state *models.WorkflowState) *models.StepResponse {
		return o.updateAgenda(state, text)
	})
}

// RegenerateAgenda replaces the draft with a newly generated one, keeping
// the old draft when generation fails.
func (o *Orchestrator) RegenerateAgenda(ctx context.Context, conversationID string) (*models.StepResponse, error) {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	conv, err := conversation.Load(ctx, conversationID, o.conversations)
	if err != nil {
		return nil, err
	}

	resp := o.regenerateAgenda(ctx, state, conv)
	o.applyTransition(ctx, state, resp)

	if err := o.states.Save(ctx, state); err != nil {
		return nil, err
	}

	return resp, nil
}

// ApproveAgenda validates and, on success, approves the given agenda text.
func (o *Orchestrator) ApproveAgenda(ctx context.Context, conversationID, text string) (*models.StepResponse, error) {
	return o.agendaOperation(ctx, conversationID, func(state *models.WorkflowState) *models.StepResponse {
		return o.approveAgenda(state, text)
	})
}

func (o *Orchestrator) agendaOperation(ctx context.Context, conversationID string, fn func(state *models.WorkflowState) *models.StepResponse) (*models.StepResponse, error) {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	resp := fn(state)
	o.applyTransition(ctx, state, resp)

	if err := o.states.Save(ctx, state); err != nil {
		return nil, err
	}

	return resp, nil
}
