package web

import "github.com/meetflow/meetflow/pkg/models"

// ProcessMessageRequest is one user turn in a conversation.
type ProcessMessageRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// UIInteractionRequest maps a rendered widget action back to the workflow.
type UIInteractionRequest struct {
	Action  string         `json:"action" validate:"required"`
	Payload map[string]any `json:"payload"`
}

// UpdateAgendaRequest replaces the draft agenda text.
type UpdateAgendaRequest struct {
	Agenda string `json:"agenda" validate:"required"`
}

// ApproveAgendaRequest approves the given text, or the stored draft when
// empty.
type ApproveAgendaRequest struct {
	Agenda string `json:"agenda"`
}

// UpdateMeetingDataRequest is a partial meeting-data merge.
type UpdateMeetingDataRequest struct {
	MeetingData models.MeetingData `json:"meeting_data"`
}
