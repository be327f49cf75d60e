package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/meetflow/meetflow/pkg/ai"
	"github.com/meetflow/meetflow/pkg/ai/router"
	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/gateways/calendar"
	"github.com/meetflow/meetflow/pkg/gateways/mail"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/persistence"
	"github.com/meetflow/meetflow/pkg/persistence/file"
	"github.com/meetflow/meetflow/pkg/retry"
	"github.com/meetflow/meetflow/pkg/testutil"
	"github.com/meetflow/meetflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	orch     *workflow.Orchestrator
	states   persistence.WorkflowStateRepository
	calendar *calendar.InMemoryGateway
	mail     *mail.InMemoryGateway
	delivery *delivery.Orchestrator
	complex  *ai.MockProvider
	simple   *ai.MockProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	complex := ai.NewMockProvider("complex")
	simple := ai.NewMockProvider("simple")

	cfg := router.DefaultConfig("complex", "simple")
	cfg.Retry = retry.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   ai.IsRetryable,
	}

	r, err := router.New(cfg, logger, complex, simple)
	require.NoError(t, err)

	mailGateway := mail.NewInMemoryGateway()
	calendarGateway := calendar.NewInMemoryGateway()
	deliveryOrch := delivery.NewOrchestrator(mailGateway, store.EmailJobs(), nil, logger)

	orch, err := workflow.New(workflow.Deps{
		States:        store.WorkflowStates(),
		Conversations: store.Conversations(),
		Router:        r,
		Calendar:      calendarGateway,
		Delivery:      deliveryOrch,
		Users: workflow.UserResolverFunc(func(_ context.Context, userID string) (mail.User, error) {
			return mail.User{ID: userID, Email: "organizer@example.com", AccessToken: "token"}, nil
		}),
		Logger: logger,
	})
	require.NoError(t, err)

	return &testEnv{
		orch:     orch,
		states:   store.WorkflowStates(),
		calendar: calendarGateway,
		mail:     mailGateway,
		delivery: deliveryOrch,
		complex:  complex,
		simple:   simple,
	}
}

// seedState persists a prepared state and returns its conversation id.
func (e *testEnv) seedState(t *testing.T, state *models.WorkflowState) string {
	t.Helper()
	require.NoError(t, e.states.Save(t.Context(), state))

	return state.ConversationID
}

func TestValidateTransitionRejectsUnapprovedAgenda(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval, func(s *models.WorkflowState) {
		s.MeetingData.Agenda = ""
	}))

	check, err := env.orch.ValidateTransition(t.Context(), convID, models.StepApproval)
	require.NoError(t, err)
	require.False(t, check.IsValid)
	assert.Contains(t, check.Errors, "Agenda must be approved before final approval")
}

func TestValidateTransitionRejectsUnknownEdge(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepIntentDetection))

	check, err := env.orch.ValidateTransition(t.Context(), convID, models.StepCreation)
	require.NoError(t, err)
	require.False(t, check.IsValid)
	assert.Contains(t, check.Errors, "cannot transition from intent_detection to creation")
}

func TestValidateTransitionAcceptsSameStep(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepValidation))

	check, err := env.orch.ValidateTransition(t.Context(), convID, models.StepValidation)
	require.NoError(t, err)
	assert.True(t, check.IsValid)
}

func TestApproveAgendaRejectsInvalidTextWithoutMutating(t *testing.T) {
	env := newTestEnv(t)

	original := testutil.CreateTestAgenda()
	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval))

	resp, err := env.orch.ApproveAgenda(t.Context(), convID, "Too short")
	require.NoError(t, err)

	assert.Equal(t, models.StepAgendaApproval, resp.NextStep)
	assert.True(t, resp.RequiresUserInput)
	require.NotEmpty(t, resp.ValidationErrors)
	assert.Contains(t, resp.ValidationErrors[0], "Agenda must be at least 50 words")

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.Equal(t, models.StepAgendaApproval, state.CurrentStep)
	assert.Equal(t, original, state.MeetingData.Agenda)
	assert.False(t, state.MeetingData.AgendaApproved)
}

func TestApproveAgendaAdvancesToFinalApproval(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval))

	resp, err := env.orch.ApproveAgenda(t.Context(), convID, testutil.CreateTestAgenda())
	require.NoError(t, err)

	assert.Equal(t, models.StepApproval, resp.NextStep)
	assert.False(t, resp.RequiresUserInput)
	assert.Empty(t, resp.ValidationErrors)

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.Equal(t, models.StepApproval, state.CurrentStep)
	assert.True(t, state.MeetingData.AgendaApproved)
}

func TestRegenerateAgendaFailureLeavesDraftUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.complex.FailWith(ai.FuncGenerateMeetingAgenda, errors.New("request timeout"))
	env.simple.FailWith(ai.FuncGenerateMeetingAgenda, errors.New("request timeout"))

	original := testutil.CreateTestAgenda()
	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval))

	resp, err := env.orch.RegenerateAgenda(t.Context(), convID)
	require.NoError(t, err)

	assert.Equal(t, "Failed to regenerate agenda. Please edit the current agenda manually.", resp.Message)
	assert.Equal(t, []string{"Agenda regeneration failed"}, resp.ValidationErrors)
	assert.Equal(t, models.StepAgendaApproval, resp.NextStep)
	assert.True(t, resp.RequiresUserInput)
	assert.NotEmpty(t, resp.SuggestedActions)

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.Equal(t, original, state.MeetingData.Agenda)
	assert.Equal(t, models.StepAgendaApproval, state.CurrentStep)
}

func TestRegenerateAgendaReplacesDraftOnSuccess(t *testing.T) {
	env := newTestEnv(t)

	original := testutil.CreateTestAgenda()
	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval))

	resp, err := env.orch.RegenerateAgenda(t.Context(), convID)
	require.NoError(t, err)

	require.NotNil(t, resp.UIBlock)
	assert.Equal(t, "agenda_editor", resp.UIBlock.Type)

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.NotEqual(t, original, state.MeetingData.Agenda)
	assert.False(t, state.MeetingData.AgendaApproved)
}

func TestHandleAgendaApprovalWithoutAgendaRedirectsToGeneration(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval, func(s *models.WorkflowState) {
		s.MeetingData.Agenda = ""
	}))

	resp, err := env.orch.HandleAgendaApproval(t.Context(), convID)
	require.NoError(t, err)

	assert.Equal(t, models.StepAgendaGeneration, resp.NextStep)
	assert.Contains(t, resp.ValidationErrors, "Agenda is required")

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.Equal(t, models.StepAgendaGeneration, state.CurrentStep)
}

func TestUpdateAgendaStoresTextWithoutAdvancing(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval))

	edited := testutil.CreateTestAgenda() + "\n5. Parking lot (5 min)\n   - Collect topics that did not fit into the agenda today"

	resp, err := env.orch.UpdateAgenda(t.Context(), convID, edited)
	require.NoError(t, err)
	assert.Equal(t, models.StepAgendaApproval, resp.NextStep)

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.Equal(t, edited, state.MeetingData.Agenda)
	assert.False(t, state.MeetingData.AgendaApproved)
	assert.Equal(t, models.StepAgendaApproval, state.CurrentStep)
}

func TestConflictResolutionRepickClearsWindow(t *testing.T) {
	env := newTestEnv(t)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	clash := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 13, 30, 0, 0, time.UTC)

	env.calendar.SeedEvent("user-1", calendar.Conflict{
		Title: "Standup",
		Start: clash,
		End:   clash.Add(time.Hour),
	})

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepTimeDateCollection, func(s *models.WorkflowState) {
		s.MeetingData.StartTime = nil
		s.MeetingData.EndTime = nil
	}))

	resp, err := env.orch.ProcessMessage(t.Context(), convID, "user-1", "tomorrow at 14:00 for 60 minutes")
	require.NoError(t, err)
	require.Equal(t, models.StepAvailabilityCheck, resp.NextStep)
	require.False(t, resp.RequiresUserInput)

	resp, err = env.orch.AdvanceWorkflowStep(t.Context(), convID)
	require.NoError(t, err)
	require.Equal(t, models.StepConflictResolution, resp.NextStep)
	require.NotNil(t, resp.UIBlock)
	assert.Equal(t, "conflict_list", resp.UIBlock.Type)
	assert.Contains(t, resp.SuggestedActions, "Pick another time")

	resp, err = env.orch.ProcessMessage(t.Context(), convID, "user-1", "pick another time")
	require.NoError(t, err)
	assert.Equal(t, models.StepTimeDateCollection, resp.NextStep)

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.Equal(t, models.StepTimeDateCollection, state.CurrentStep)
	assert.Nil(t, state.MeetingData.StartTime)
	assert.Nil(t, state.MeetingData.EndTime)
}

func TestConflictResolutionKeepTimeProceeds(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepConflictResolution))

	resp, err := env.orch.ProcessMessage(t.Context(), convID, "user-1", "keep this time")
	require.NoError(t, err)
	assert.Equal(t, models.StepAttendeeCollection, resp.NextStep)
}

func TestChatIntentStaysAtIntentDetection(t *testing.T) {
	env := newTestEnv(t)
	env.complex.Intent = &ai.Intent{Intent: "chat", Confidence: 0.8}

	resp, err := env.orch.ProcessMessage(t.Context(), "conv-chat", "user-1", "what's the weather like?")
	require.NoError(t, err)

	assert.Equal(t, models.StepIntentDetection, resp.NextStep)
	assert.True(t, resp.RequiresUserInput)
	assert.Equal(t, env.simple.ChatText, resp.Message)

	state, err := env.orch.GetWorkflowState(t.Context(), "conv-chat")
	require.NoError(t, err)
	assert.Equal(t, models.StepIntentDetection, state.CurrentStep)
}

func TestIntentDetectionUnavailableDegradesGracefully(t *testing.T) {
	env := newTestEnv(t)
	env.complex.FailWith(ai.FuncExtractMeetingIntent, errors.New("request timeout"))
	env.simple.FailWith(ai.FuncExtractMeetingIntent, errors.New("service unavailable"))

	resp, err := env.orch.ProcessMessage(t.Context(), "conv-down", "user-1", "schedule a meeting")
	require.NoError(t, err)

	assert.Equal(t, models.StepIntentDetection, resp.NextStep)
	assert.Contains(t, resp.Warnings, "Intent detection is temporarily unavailable")
}

func TestHandleUIBlockInteractionUnknownAction(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval))

	_, err := env.orch.HandleUIBlockInteraction(t.Context(), convID, "launch_rocket", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ui action")
}

func TestHandleUIBlockApproveAgendaFallsBackToStoredDraft(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepAgendaApproval))

	resp, err := env.orch.HandleUIBlockInteraction(t.Context(), convID, "approve_agenda", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, models.StepApproval, resp.NextStep)
}

func TestResetWorkflowDiscardsState(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepValidation))

	require.NoError(t, env.orch.ResetWorkflow(t.Context(), convID))

	_, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))
}

func TestUpdateMeetingDataMergesPartial(t *testing.T) {
	env := newTestEnv(t)

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepMeetingDetailsCollection))

	state, err := env.orch.UpdateMeetingData(t.Context(), convID, models.MeetingData{
		Location: "Room 4B",
		Purpose:  "Review the launch checklist",
	})
	require.NoError(t, err)

	assert.Equal(t, "Room 4B", state.MeetingData.Location)
	assert.Equal(t, "Review the launch checklist", state.MeetingData.Purpose)
	assert.Equal(t, "Quarterly Planning Sync", state.MeetingData.Title)
	assert.Equal(t, models.StepMeetingDetailsCollection, state.CurrentStep)
}

// advance runs the automatic follow-up step after a requiresUserInput=false
// response, asserting the expected landing step.
func advance(t *testing.T, env *testEnv, convID string, want models.Step) *models.StepResponse {
	t.Helper()

	resp, err := env.orch.AdvanceWorkflowStep(t.Context(), convID)
	require.NoError(t, err)
	require.Equal(t, want, resp.NextStep, "unexpected step after advance: %s", resp.Message)

	return resp
}

func TestScheduleMeetingEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	convID := "conv-e2e"
	userID := "user-1"

	resp, err := env.orch.ProcessMessage(t.Context(), convID, userID,
		"Schedule a 60-minute online sync tomorrow with alice@co.com")
	require.NoError(t, err)
	require.Equal(t, models.StepCalendarAccessVerify, resp.NextStep)
	require.False(t, resp.RequiresUserInput)

	resp = advance(t, env, convID, models.StepMeetingTypeSelection)
	require.NotNil(t, resp.UIBlock)
	assert.Equal(t, "choice", resp.UIBlock.Type)

	resp, err = env.orch.ProcessMessage(t.Context(), convID, userID, "online")
	require.NoError(t, err)
	require.Equal(t, models.StepTimeDateCollection, resp.NextStep)

	resp, err = env.orch.ProcessMessage(t.Context(), convID, userID, "tomorrow at 14:00 for 60 minutes")
	require.NoError(t, err)
	require.Equal(t, models.StepAvailabilityCheck, resp.NextStep)
	require.False(t, resp.RequiresUserInput)

	advance(t, env, convID, models.StepAttendeeCollection)

	resp, err = env.orch.ProcessMessage(t.Context(), convID, userID, "alice@co.com")
	require.NoError(t, err)
	require.Equal(t, models.StepMeetingDetailsCollection, resp.NextStep)
	require.Empty(t, resp.ValidationErrors)

	resp, err = env.orch.ProcessMessage(t.Context(), convID, userID, "Quarterly Sync")
	require.NoError(t, err)
	require.Equal(t, models.StepValidation, resp.NextStep)
	require.False(t, resp.RequiresUserInput)

	advance(t, env, convID, models.StepAgendaGeneration)

	resp = advance(t, env, convID, models.StepAgendaApproval)
	require.NotNil(t, resp.UIBlock)
	assert.Equal(t, "agenda_editor", resp.UIBlock.Type)

	resp, err = env.orch.ProcessMessage(t.Context(), convID, userID, "approve")
	require.NoError(t, err)
	require.Equal(t, models.StepApproval, resp.NextStep)
	require.False(t, resp.RequiresUserInput)

	resp, err = env.orch.ProcessMessage(t.Context(), convID, userID, "confirm")
	require.NoError(t, err)
	require.Equal(t, models.StepCreation, resp.NextStep)
	require.False(t, resp.RequiresUserInput)

	resp = advance(t, env, convID, models.StepCompleted)
	require.NotNil(t, resp.UIBlock)
	require.Equal(t, "job_status", resp.UIBlock.Type)

	jobID, ok := resp.UIBlock.Payload["job_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, jobID)

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.True(t, state.IsComplete)
	assert.Equal(t, models.StepCompleted, state.CurrentStep)
	assert.NotEmpty(t, state.MeetingData.CalendarEventID)
	require.Len(t, env.calendar.CreatedEvents(), 1)

	env.delivery.Wait()

	status, err := env.orch.EmailJobStatus(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailJobCompleted, status.Status)
	assert.Equal(t, 1, status.EmailsSent)
	assert.Zero(t, status.EmailsFailed)
	assert.Equal(t, 1, env.mail.SentTo("alice@co.com"))
}

func TestCreationFailureHoldsStep(t *testing.T) {
	env := newTestEnv(t)
	env.calendar.FailCreateWith(errors.New("calendar backend unavailable"))

	convID := env.seedState(t, testutil.CreateTestWorkflowState(models.StepCreation, func(s *models.WorkflowState) {
		s.MeetingData.AgendaApproved = true
		s.RecordValidation(models.ValidationResult{Step: models.StepAgendaApproval, IsValid: true})
	}))

	resp, err := env.orch.AdvanceWorkflowStep(t.Context(), convID)
	require.NoError(t, err)

	assert.Equal(t, models.StepCreation, resp.NextStep)
	assert.Contains(t, resp.Warnings, "Calendar event creation failed")

	state, err := env.orch.GetWorkflowState(t.Context(), convID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCreation, state.CurrentStep)
	assert.False(t, state.IsComplete)
}
