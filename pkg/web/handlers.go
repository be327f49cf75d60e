// Package web provides the HTTP handlers exposing the workflow, delivery and
// AI routing surfaces to the UI layer.
package web

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/meetflow/meetflow/pkg/ai/router"
	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/workflow"
)

const defaultAnalyticsWindow = time.Hour

type APIHandlers struct {
	orchestrator *workflow.Orchestrator
	delivery     *delivery.Orchestrator
	router       *router.Router
	validator    *validator.Validate
}

func NewAPIHandlers(
	orchestrator *workflow.Orchestrator,
	deliveryOrchestrator *delivery.Orchestrator,
	aiRouter *router.Router,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		orchestrator: orchestrator,
		delivery:     deliveryOrchestrator,
		router:       aiRouter,
		validator:    validate,
	}
}

// ProcessMessage applies one user message to a conversation's workflow.
func (h *APIHandlers) ProcessMessage(c fiber.Ctx) error {
	var req ProcessMessageRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.orchestrator.ProcessMessage(c.Context(), c.Params("id"), req.UserID, req.Message)
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(resp)
}

// AdvanceStep executes the current step without user input.
func (h *APIHandlers) AdvanceStep(c fiber.Ctx) error {
	resp, err := h.orchestrator.AdvanceWorkflowStep(c.Context(), c.Params("id"))
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(resp)
}

// UIInteraction maps a widget action back onto the workflow.
func (h *APIHandlers) UIInteraction(c fiber.Ctx) error {
	var req UIInteractionRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.orchestrator.HandleUIBlockInteraction(c.Context(), c.Params("id"), req.Action, req.Payload)
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(resp)
}

// GetWorkflowState returns the conversation's full state snapshot.
func (h *APIHandlers) GetWorkflowState(c fiber.Ctx) error {
	state, err := h.orchestrator.GetWorkflowState(c.Context(), c.Params("id"))
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(state)
}

// ResetWorkflow discards the conversation's workflow state and history.
func (h *APIHandlers) ResetWorkflow(c fiber.Ctx) error {
	if err := h.orchestrator.ResetWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleCoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateMeetingData merges a partial meeting-data update.
func (h *APIHandlers) UpdateMeetingData(c fiber.Ctx) error {
	var req UpdateMeetingDataRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	state, err := h.orchestrator.UpdateMeetingData(c.Context(), c.Params("id"), req.MeetingData)
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(state)
}

// GetAgendaApproval re-presents the agenda approval step.
func (h *APIHandlers) GetAgendaApproval(c fiber.Ctx) error {
	resp, err := h.orchestrator.HandleAgendaApproval(c.Context(), c.Params("id"))
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(resp)
}

// UpdateAgenda replaces the agenda draft without advancing the workflow.
func (h *APIHandlers) UpdateAgenda(c fiber.Ctx) error {
	var req UpdateAgendaRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.orchestrator.UpdateAgenda(c.Context(), c.Params("id"), req.Agenda)
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(resp)
}

// RegenerateAgenda asks for a fresh agenda draft.
func (h *APIHandlers) RegenerateAgenda(c fiber.Ctx) error {
	resp, err := h.orchestrator.RegenerateAgenda(c.Context(), c.Params("id"))
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(resp)
}

// ApproveAgenda approves the submitted (or stored) agenda text.
func (h *APIHandlers) ApproveAgenda(c fiber.Ctx) error {
	var req ApproveAgendaRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	agendaText := req.Agenda
	if agendaText == "" {
		state, err := h.orchestrator.GetWorkflowState(c.Context(), c.Params("id"))
		if err != nil {
			return handleCoreError(c, err)
		}

		agendaText = state.MeetingData.Agenda
	}

	resp, err := h.orchestrator.ApproveAgenda(c.Context(), c.Params("id"), agendaText)
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(resp)
}

// GetEmailJob returns the live status view of one email job.
func (h *APIHandlers) GetEmailJob(c fiber.Ctx) error {
	status, err := h.delivery.GetEmailSendingStatus(c.Params("id"))
	if err != nil {
		return handleCoreError(c, err)
	}

	return c.JSON(status)
}

// CancelEmailJob cancels an in-flight job.
func (h *APIHandlers) CancelEmailJob(c fiber.Ctx) error {
	if err := h.delivery.CancelEmailSendingJob(c.Context(), c.Params("id")); err != nil {
		return handleCoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RetryEmailJob re-runs a failed or partially failed job.
func (h *APIHandlers) RetryEmailJob(c fiber.Ctx) error {
	if err := h.delivery.RetryEmailSendingJob(c.Context(), c.Params("id")); err != nil {
		return handleCoreError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// GetEmailJobStats counts jobs per status for dashboards.
func (h *APIHandlers) GetEmailJobStats(c fiber.Ctx) error {
	return c.JSON(h.delivery.Stats())
}

// GetAIHealth actively probes both providers.
func (h *APIHandlers) GetAIHealth(c fiber.Ctx) error {
	health := h.router.GetServiceHealth(c.Context())

	status := fiber.StatusOK
	if !health.Healthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(health)
}

// GetAIAnalytics aggregates routing decisions over a window (default 1h).
func (h *APIHandlers) GetAIAnalytics(c fiber.Ctx) error {
	window := defaultAnalyticsWindow

	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return badRequest(c, "Invalid window duration: "+err.Error())
		}

		window = parsed
	}

	return c.JSON(fiber.Map{
		"stats":           h.router.Stats(window),
		"recommendations": h.router.Recommendations(window),
	})
}
