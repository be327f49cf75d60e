// Package workflow implements the meeting-creation state machine: a fixed
// fourteen-step sequence driven one user message at a time. Steps validate
// their transitions through a closed guard table, call out to the AI router
// and the calendar gateway, and hand off to the delivery orchestrator at the
// terminal step. At most one transition happens per incoming message.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meetflow/meetflow/pkg/agenda"
	"github.com/meetflow/meetflow/pkg/ai/router"
	"github.com/meetflow/meetflow/pkg/conversation"
	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/eventbus"
	"github.com/meetflow/meetflow/pkg/events"
	"github.com/meetflow/meetflow/pkg/gateways/calendar"
	"github.com/meetflow/meetflow/pkg/gateways/mail"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/persistence"
	"github.com/meetflow/meetflow/pkg/rules"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// UserResolver maps a workflow user id onto the mail account used for the
// agenda batch send.
type UserResolver interface {
	MailUser(ctx context.Context, userID string) (mail.User, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(ctx context.Context, userID string) (mail.User, error)

func (f UserResolverFunc) MailUser(ctx context.Context, userID string) (mail.User, error) {
	return f(ctx, userID)
}

// Deps collects the orchestrator's collaborators. States, Router, Calendar
// and Delivery are required; the rest degrade gracefully when nil.
type Deps struct {
	States        persistence.WorkflowStateRepository
	Conversations persistence.ConversationRepository
	Router        *router.Router
	Calendar      calendar.Gateway
	Delivery      *delivery.Orchestrator
	Bus           eventbus.EventBus
	Users         UserResolver
	Logger        *slog.Logger
}

// Orchestrator drives one workflow per conversation. Distinct conversations
// proceed fully in parallel; within one conversation messages are processed
// strictly one at a time.
type Orchestrator struct {
	states        persistence.WorkflowStateRepository
	conversations persistence.ConversationRepository
	router        *router.Router
	calendar      calendar.Gateway
	delivery      *delivery.Orchestrator
	bus           eventbus.EventBus
	users         UserResolver

	rules           *rules.Engine
	agendaValidator *agenda.Validator
	attendees       *rules.AttendeeValidator

	logger *slog.Logger
	tracer trace.Tracer

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New wires the orchestrator with product-default rules.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.States == nil:
		return nil, errors.New("workflow: state repository is required")
	case deps.Conversations == nil:
		return nil, errors.New("workflow: conversation repository is required")
	case deps.Router == nil:
		return nil, errors.New("workflow: ai router is required")
	case deps.Calendar == nil:
		return nil, errors.New("workflow: calendar gateway is required")
	case deps.Delivery == nil:
		return nil, errors.New("workflow: delivery orchestrator is required")
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Orchestrator{
		states:          deps.States,
		conversations:   deps.Conversations,
		router:          deps.Router,
		calendar:        deps.Calendar,
		delivery:        deps.Delivery,
		bus:             deps.Bus,
		users:           deps.Users,
		rules:           rules.NewEngine(),
		agendaValidator: agenda.NewValidator(),
		attendees:       rules.NewAttendeeValidator(),
		logger:          deps.Logger.With("module", "workflow"),
		tracer:          noop.NewTracerProvider().Tracer("workflow"),
	}, nil
}

// SetTracer enables span creation around step execution. Without it the
// orchestrator uses a no-op tracer.
func (o *Orchestrator) SetTracer(tracer trace.Tracer) {
	o.tracer = tracer
}

// lockConversation serializes message processing per conversation id.
func (o *Orchestrator) lockConversation(conversationID string) func() {
	o.lockMu.Lock()

	if o.locks == nil {
		o.locks = make(map[string]*sync.Mutex)
	}

	mu, ok := o.locks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		o.locks[conversationID] = mu
	}

	o.lockMu.Unlock()

	mu.Lock()

	return mu.Unlock
}

// loadState fetches the conversation's workflow state, starting a fresh one
// at intent detection when none exists yet.
func (o *Orchestrator) loadState(ctx context.Context, conversationID, userID string) (*models.WorkflowState, error) {
	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err == nil {
		return state, nil
	}

	if persistence.IsNotFound(err) {
		return models.NewWorkflowState(conversationID, userID), nil
	}

	return nil, err
}

// ProcessMessage applies one user message to the conversation's workflow:
// it records the message, executes the current step with it, applies at most
// one validated transition, and persists both state and history.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, userID, message string) (*models.StepResponse, error) {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	state, err := o.loadState(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	conv, err := conversation.Load(ctx, conversationID, o.conversations)
	if err != nil {
		return nil, err
	}

	conv.AddMessage("user", message)

	resp := o.executeStep(ctx, state, conv, message)
	o.applyTransition(ctx, state, resp)

	conv.AddMessage("assistant", resp.Message)

	if err := o.states.Save(ctx, state); err != nil {
		return nil, err
	}

	if err := conv.Save(ctx); err != nil {
		o.logger.Warn("failed to persist conversation history",
			"conversation_id", conversationID, "error", err)
	}

	return resp, nil
}

// AdvanceWorkflowStep executes the current step without user input. Used by
// the API layer after a response with requiresUserInput=false, so automatic
// steps (availability check, validation, creation) run on their own turn.
func (o *Orchestrator) AdvanceWorkflowStep(ctx context.Context, conversationID string) (*models.StepResponse, error) {
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

	resp := o.executeStep(ctx, state, conv, "")
	o.applyTransition(ctx, state, resp)

	if err := o.states.Save(ctx, state); err != nil {
		return nil, err
	}

	return resp, nil
}

// HandleUIBlockInteraction maps a widget action back onto the workflow.
func (o *Orchestrator) HandleUIBlockInteraction(ctx context.Context, conversationID, action string, payload map[string]any) (*models.StepResponse, error) {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var resp *models.StepResponse

	switch action {
	case "select_meeting_type":
		choice, _ := payload["type"].(string)
		resp = o.stepMeetingTypeSelection(state, choice)
	case "keep_time":
		resp = o.stepConflictResolution(state, "keep")
	case "repick_time":
		resp = o.stepConflictResolution(state, "pick another time")
	case "update_agenda":
		text, _ := payload["agenda"].(string)
		resp = o.updateAgenda(state, text)
	case "regenerate_agenda":
		conv, convErr := conversation.Load(ctx, conversationID, o.conversations)
		if convErr != nil {
			return nil, convErr
		}

		resp = o.regenerateAgenda(ctx, state, conv)
	case "approve_agenda":
		text, _ := payload["agenda"].(string)
		if text == "" {
			text = state.MeetingData.Agenda
		}

		resp = o.approveAgenda(state, text)
	case "confirm_meeting":
		resp = o.stepApproval(state, "confirm")
	default:
		return nil, errors.New("unknown ui action: " + action)
	}

	o.applyTransition(ctx, state, resp)

	if err := o.states.Save(ctx, state); err != nil {
		return nil, err
	}

	return resp, nil
}

// GetWorkflowState returns a snapshot of the conversation's state.
func (o *Orchestrator) GetWorkflowState(ctx context.Context, conversationID string) (*models.WorkflowState, error) {
	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	snapshot := *state

	return &snapshot, nil
}

// ResetWorkflow discards the workflow state and message history for a
// conversation. In-flight email jobs are unaffected.
func (o *Orchestrator) ResetWorkflow(ctx context.Context, conversationID string) error {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err != nil && !persistence.IsNotFound(err) {
		return err
	}

	if err := o.states.Delete(ctx, conversationID); err != nil && !persistence.IsNotFound(err) {
		return err
	}

	if err := o.conversations.Delete(ctx, conversationID); err != nil && !persistence.IsNotFound(err) {
		o.logger.Warn("failed to discard conversation history",
			"conversation_id", conversationID, "error", err)
	}

	userID := ""
	if state != nil {
		userID = state.UserID
	}

	o.publish(ctx, conversationID, events.WorkflowReset{
		BaseEvent: o.baseEvent(events.WorkflowResetEvent, conversationID, userID),
	})

	return nil
}

// UpdateMeetingData merges a partial update into the accumulated meeting
// data without advancing the step.
func (o *Orchestrator) UpdateMeetingData(ctx context.Context, conversationID string, partial models.MeetingData) (*models.WorkflowState, error) {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	state.MeetingData = state.MeetingData.Merge(partial)
	state.UpdatedAt = time.Now().UTC()

	if err := o.states.Save(ctx, state); err != nil {
		return nil, err
	}

	snapshot := *state

	return &snapshot, nil
}

// ValidateTransition answers "can this conversation advance to the given
// step" without mutating anything.
func (o *Orchestrator) ValidateTransition(ctx context.Context, conversationID string, to models.Step) (models.TransitionCheck, error) {
	state, err := o.states.GetByConversationID(ctx, conversationID)
	if err != nil {
		return models.TransitionCheck{}, err
	}

	return ValidateTransition(state, to), nil
}

// applyTransition moves the state to the response's next step after checking
// the guard one final time. A guard failure downgrades the response to a
// stay-in-place with the concrete errors attached; the state never changes on
// a failed guard.
func (o *Orchestrator) applyTransition(ctx context.Context, state *models.WorkflowState, resp *models.StepResponse) {
	if resp.NextStep == "" {
		resp.NextStep = state.CurrentStep
	}

	if resp.NextStep == state.CurrentStep {
		return
	}

	check := ValidateTransition(state, resp.NextStep)
	if !check.IsValid {
		resp.ValidationErrors = append(resp.ValidationErrors, check.Errors...)
		resp.NextStep = state.CurrentStep
		resp.RequiresUserInput = true

		return
	}

	from := state.CurrentStep
	state.AdvanceTo(resp.NextStep)

	o.logger.Info("workflow step advanced",
		"conversation_id", state.ConversationID,
		"from", from,
		"to", state.CurrentStep)

	o.publish(ctx, state.ConversationID, events.WorkflowStepAdvanced{
		BaseEvent: o.baseEvent(events.WorkflowStepAdvancedEvent, state.ConversationID, state.UserID),
		FromStep:  from,
		ToStep:    state.CurrentStep,
	})

	if state.IsComplete {
		o.publish(ctx, state.ConversationID, events.WorkflowCompleted{
			BaseEvent: o.baseEvent(events.WorkflowCompletedEvent, state.ConversationID, state.UserID),
			MeetingID: state.MeetingData.CalendarEventID,
		})
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, conversationID, userID string) events.BaseEvent {
	return events.BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		ConversationID: conversationID,
		UserID:         userID,
	}
}

// publish is fire-and-forget: a failed publish is logged, never propagated.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.bus == nil {
		return
	}

	if err := o.bus.Publish(ctx, key, event); err != nil {
		o.logger.Warn("failed to publish workflow event",
			"event_type", event.GetType(), "error", err)
	}
}

// mailUser resolves the sending account for the agenda batch. Without a
// resolver the job is created with a bare user id and fails its access-token
// prerequisite, which surfaces as a descriptive job error.
func (o *Orchestrator) mailUser(ctx context.Context, userID string) mail.User {
	if o.users == nil {
		return mail.User{ID: userID}
	}

	user, err := o.users.MailUser(ctx, userID)
	if err != nil {
		o.logger.Warn("failed to resolve mail user", "user_id", userID, "error", err)

		return mail.User{ID: userID}
	}

	return user
}
