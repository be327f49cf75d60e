package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/meetflow/meetflow/pkg/conversation"
	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/events"
	"github.com/meetflow/meetflow/pkg/gateways/calendar"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// executeStep dispatches the message to the handler for the current step.
// Handlers never return raw collaborator errors; failures become warnings or
// validation errors on the structured response and the step holds position.
func (o *Orchestrator) executeStep(ctx context.Context, state *models.WorkflowState, conv *conversation.Context, message string) *models.StepResponse {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow step",
		attribute.String(otelhelper.ConversationIDKey, state.ConversationID),
		attribute.String(otelhelper.StepKey, string(state.CurrentStep)),
	)
	defer span.End()

	switch state.CurrentStep {
	case models.StepIntentDetection:
		return o.stepIntentDetection(ctx, state, conv)
	case models.StepCalendarAccessVerify:
		return o.stepCalendarAccessVerify(ctx, state)
	case models.StepMeetingTypeSelection:
		return o.stepMeetingTypeSelection(state, message)
	case models.StepTimeDateCollection:
		return o.stepTimeDateCollection(state, message)
	case models.StepAvailabilityCheck:
		return o.stepAvailabilityCheck(ctx, state)
	case models.StepConflictResolution:
		return o.stepConflictResolution(state, message)
	case models.StepAttendeeCollection:
		return o.stepAttendeeCollection(ctx, state, message)
	case models.StepMeetingDetailsCollection:
		return o.stepMeetingDetailsCollection(ctx, state, message)
	case models.StepValidation:
		return o.stepValidation(state)
	case models.StepAgendaGeneration:
		return o.stepAgendaGeneration(ctx, state, conv)
	case models.StepAgendaApproval:
		return o.stepAgendaApprovalInput(ctx, state, conv, message)
	case models.StepApproval:
		return o.stepApproval(state, message)
	case models.StepCreation:
		return o.stepCreation(ctx, state)
	case models.StepCompleted:
		return &models.StepResponse{
			Message:          "This meeting is already scheduled. Start a new conversation to schedule another one.",
			NextStep:         models.StepCompleted,
			SuggestedActions: []string{"Reset the conversation"},
		}
	default:
		return &models.StepResponse{
			Message:           fmt.Sprintf("Unknown workflow step %q; please reset the conversation.", state.CurrentStep),
			NextStep:          state.CurrentStep,
			RequiresUserInput: true,
			SuggestedActions:  []string{"Reset the conversation"},
		}
	}
}

// stepIntentDetection asks the router what the user wants. Scheduling moves
// the workflow forward; chat stays in place and answers conversationally.
func (o *Orchestrator) stepIntentDetection(ctx context.Context, state *models.WorkflowState, conv *conversation.Context) *models.StepResponse {
	intent, err := o.router.ExtractMeetingIntent(ctx, conv.Messages())
	if err != nil {
		o.logger.Warn("intent extraction failed",
			"conversation_id", state.ConversationID, "error", err)

		return &models.StepResponse{
			Message:           "I couldn't work out what you'd like to do. Are you trying to schedule a meeting?",
			NextStep:          models.StepIntentDetection,
			RequiresUserInput: true,
			Warnings:          []string{"Intent detection is temporarily unavailable"},
			SuggestedActions:  []string{"Say \"schedule a meeting\" to get started"},
		}
	}

	switch intent.Intent {
	case "schedule", "reschedule":
		conv.SetMode(conversation.ModeScheduling)

		return &models.StepResponse{
			Message:           "I'll help you schedule a meeting. Let me verify your calendar access first.",
			NextStep:          models.StepCalendarAccessVerify,
			RequiresUserInput: false,
		}
	case "cancel":
		return &models.StepResponse{
			Message:           "It sounds like you want to cancel a meeting. I can only help with scheduling here; reset the conversation to start over.",
			NextStep:          models.StepIntentDetection,
			RequiresUserInput: true,
			SuggestedActions:  []string{"Reset the conversation"},
		}
	default:
		conv.SetMode(conversation.ModeChat)

		reply, chatErr := o.router.Chat(ctx, conv.Messages())
		if chatErr != nil {
			reply = "I'm here to help you schedule meetings. Tell me when you'd like to meet."
		}

		return &models.StepResponse{
			Message:           reply,
			NextStep:          models.StepIntentDetection,
			RequiresUserInput: true,
		}
	}
}

// stepCalendarAccessVerify probes the calendar with a throwaway availability
// query. Failure keeps the user here with a re-authenticate suggestion.
func (o *Orchestrator) stepCalendarAccessVerify(ctx context.Context, state *models.WorkflowState) *models.StepResponse {
	probe := calendar.Window{
		Start: time.Now().UTC().Add(time.Hour),
		End:   time.Now().UTC().Add(2 * time.Hour),
	}

	if _, err := o.calendar.CheckAvailability(ctx, state.UserID, probe); err != nil {
		o.logger.Warn("calendar access verification failed",
			"conversation_id", state.ConversationID, "error", err)

		return &models.StepResponse{
			Message:           "I couldn't access your calendar. Please re-authenticate and try again.",
			NextStep:          models.StepCalendarAccessVerify,
			RequiresUserInput: true,
			Warnings:          []string{"Calendar access could not be verified"},
			SuggestedActions:  []string{"Re-authenticate your calendar account", "Try again"},
		}
	}

	return &models.StepResponse{
		Message: "Calendar access confirmed. Will this be an online or a physical meeting?",
		UIBlock: &models.UIBlock{
			Type: "choice",
			Payload: map[string]any{
				"options": []string{string(models.MeetingTypeOnline), string(models.MeetingTypePhysical)},
			},
		},
		NextStep:          models.StepMeetingTypeSelection,
		RequiresUserInput: true,
	}
}

func (o *Orchestrator) stepMeetingTypeSelection(state *models.WorkflowState, message string) *models.StepResponse {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "online") || strings.Contains(lower, "virtual") || strings.Contains(lower, "video"):
		state.MeetingData.Type = models.MeetingTypeOnline
	case strings.Contains(lower, "physical") || strings.Contains(lower, "in person") || strings.Contains(lower, "in-person") || strings.Contains(lower, "office"):
		state.MeetingData.Type = models.MeetingTypePhysical
	}

	if state.MeetingData.Type == "" {
		return &models.StepResponse{
			Message:           "Should this meeting be online or physical?",
			NextStep:          models.StepMeetingTypeSelection,
			RequiresUserInput: true,
			ValidationErrors:  []string{"Meeting type (online or physical) is required"},
		}
	}

	return &models.StepResponse{
		Message:           "Got it. When should the meeting take place? For example: \"tomorrow at 14:00 for 60 minutes\".",
		NextStep:          models.StepTimeDateCollection,
		RequiresUserInput: true,
	}
}

func (o *Orchestrator) stepTimeDateCollection(state *models.WorkflowState, message string) *models.StepResponse {
	start, end, minutes, ok := parseTimeWindow(message, time.Now().UTC())
	if !ok {
		return &models.StepResponse{
			Message:           "I couldn't understand that time. Try something like \"tomorrow at 14:00 for 60 minutes\" or \"2026-09-01 10:00\".",
			NextStep:          models.StepTimeDateCollection,
			RequiresUserInput: true,
			ValidationErrors:  []string{"Meeting start time is required"},
		}
	}

	state.MeetingData.StartTime = &start
	state.MeetingData.EndTime = &end
	state.MeetingData.DurationMinutes = minutes

	return &models.StepResponse{
		Message: fmt.Sprintf("Checking your availability for %s to %s.",
			start.Format("Mon Jan 2 15:04"), end.Format("15:04")),
		NextStep:          models.StepAvailabilityCheck,
		RequiresUserInput: false,
	}
}

// stepAvailabilityCheck queries the calendar for the collected window. A
// clear window skips conflict resolution entirely.
func (o *Orchestrator) stepAvailabilityCheck(ctx context.Context, state *models.WorkflowState) *models.StepResponse {
	window := calendar.Window{Start: *state.MeetingData.StartTime, End: *state.MeetingData.EndTime}

	availability, err := o.calendar.CheckAvailability(ctx, state.UserID, window)
	if err != nil {
		o.logger.Warn("availability check failed",
			"conversation_id", state.ConversationID, "error", err)

		return &models.StepResponse{
			Message:           "I couldn't check your calendar right now. Try again in a moment.",
			NextStep:          models.StepAvailabilityCheck,
			RequiresUserInput: true,
			Warnings:          []string{"Availability check failed"},
			SuggestedActions:  []string{"Try again", "Pick another time"},
		}
	}

	if availability.IsAvailable {
		return &models.StepResponse{
			Message:           "That time is free. Who should attend? List their email addresses.",
			NextStep:          models.StepAttendeeCollection,
			RequiresUserInput: true,
		}
	}

	conflicts := make([]map[string]any, 0, len(availability.Conflicts))
	for _, c := range availability.Conflicts {
		conflicts = append(conflicts, map[string]any{
			"title": c.Title,
			"start": c.Start,
			"end":   c.End,
		})
	}

	return &models.StepResponse{
		Message: fmt.Sprintf("That window overlaps %d existing event(s). Keep this time anyway, or pick another?", len(availability.Conflicts)),
		UIBlock: &models.UIBlock{
			Type:    "conflict_list",
			Payload: map[string]any{"conflicts": conflicts},
		},
		NextStep:          models.StepConflictResolution,
		RequiresUserInput: true,
		Warnings:          []string{"Requested time conflicts with existing events"},
		SuggestedActions:  []string{"Keep this time", "Pick another time"},
	}
}

// stepConflictResolution either accepts the clashing window or rewinds to
// time collection for a new pick.
func (o *Orchestrator) stepConflictResolution(state *models.WorkflowState, message string) *models.StepResponse {
	lower := strings.ToLower(message)

	if strings.Contains(lower, "keep") || strings.Contains(lower, "anyway") || strings.Contains(lower, "proceed") {
		return &models.StepResponse{
			Message:           "Keeping the requested time. Who should attend? List their email addresses.",
			NextStep:          models.StepAttendeeCollection,
			RequiresUserInput: true,
		}
	}

	state.MeetingData.StartTime = nil
	state.MeetingData.EndTime = nil

	return &models.StepResponse{
		Message:           "No problem. When should the meeting take place instead?",
		NextStep:          models.StepTimeDateCollection,
		RequiresUserInput: true,
	}
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// stepAttendeeCollection extracts addresses from the message, validates
// syntax locally and asks the router for a trust check. Router failures only
// downgrade the trust check to a warning.
func (o *Orchestrator) stepAttendeeCollection(ctx context.Context, state *models.WorkflowState, message string) *models.StepResponse {
	emails := emailPattern.FindAllString(message, -1)
	if len(emails) == 0 {
		return &models.StepResponse{
			Message:           "I need at least one attendee email address, for example alice@example.com.",
			NextStep:          models.StepAttendeeCollection,
			RequiresUserInput: true,
			ValidationErrors:  []string{"At least one attendee is required"},
		}
	}

	attendees := make([]models.Attendee, 0, len(emails))
	for _, e := range emails {
		attendees = append(attendees, models.Attendee{Email: e, Required: true})
	}

	attendees, invalid := o.attendees.ValidateAll(attendees)

	resp := &models.StepResponse{NextStep: models.StepAttendeeCollection, RequiresUserInput: true}

	for _, email := range invalid {
		resp.ValidationErrors = append(resp.ValidationErrors, fmt.Sprintf("%s is not a valid email address", email))
	}

	validEmails := make([]string, 0, len(attendees))

	for _, a := range attendees {
		if a.Validated {
			validEmails = append(validEmails, a.Email)
		}
	}

	if len(validEmails) == 0 {
		resp.Message = "None of those addresses look valid. Please check them and try again."

		return resp
	}

	verifications, err := o.router.VerifyAttendees(ctx, validEmails)
	if err != nil {
		o.logger.Warn("attendee verification failed",
			"conversation_id", state.ConversationID, "error", err)
		resp.Warnings = append(resp.Warnings, "Attendee trust verification is temporarily unavailable")
	} else {
		for _, v := range verifications {
			if v.Valid && !v.Trusted {
				resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s is outside your trusted domains", v.Email))
			}
		}
	}

	state.MeetingData.Attendees = attendees

	resp.Message = fmt.Sprintf("Added %d attendee(s). What should the meeting be called?", len(validEmails))
	resp.NextStep = models.StepMeetingDetailsCollection

	return resp
}

// stepMeetingDetailsCollection takes the message as the meeting title. An
// empty message asks the router for title suggestions instead of advancing.
func (o *Orchestrator) stepMeetingDetailsCollection(ctx context.Context, state *models.WorkflowState, message string) *models.StepResponse {
	title := strings.TrimSpace(message)

	if title == "" {
		resp := &models.StepResponse{
			Message:           "What should the meeting be called?",
			NextStep:          models.StepMeetingDetailsCollection,
			RequiresUserInput: true,
			ValidationErrors:  []string{"Meeting title is required"},
		}

		suggestions, err := o.router.GenerateMeetingTitles(ctx,
			string(state.MeetingData.Type), state.MeetingData.AttendeeEmails(), state.MeetingData.Purpose)
		if err == nil && len(suggestions) > 0 {
			resp.SuggestedActions = suggestions
		}

		return resp
	}

	if state.MeetingData.Type == models.MeetingTypePhysical && state.MeetingData.Location == "" {
		if at := strings.LastIndex(strings.ToLower(title), " at "); at > 0 {
			state.MeetingData.Location = strings.TrimSpace(title[at+4:])
			title = strings.TrimSpace(title[:at])
		}
	}

	state.MeetingData.Title = title

	return &models.StepResponse{
		Message:           fmt.Sprintf("%q it is. Let me validate the details.", title),
		NextStep:          models.StepValidation,
		RequiresUserInput: false,
	}
}

// stepValidation runs the business rules over everything collected so far.
func (o *Orchestrator) stepValidation(state *models.WorkflowState) *models.StepResponse {
	result := o.rules.ValidateStep(models.StepValidation, state.MeetingData)
	state.RecordValidation(result)

	if !result.IsValid {
		return &models.StepResponse{
			Message:           "Some details need fixing before I can continue.",
			NextStep:          models.StepValidation,
			RequiresUserInput: true,
			ValidationErrors:  result.Errors,
			Warnings:          result.Warnings,
		}
	}

	return &models.StepResponse{
		Message:           "Everything checks out. Generating an agenda draft.",
		NextStep:          models.StepAgendaGeneration,
		RequiresUserInput: false,
		Warnings:          result.Warnings,
	}
}

// stepAgendaGeneration produces the first agenda draft through the router.
func (o *Orchestrator) stepAgendaGeneration(ctx context.Context, state *models.WorkflowState, conv *conversation.Context) *models.StepResponse {
	content, err := o.router.GenerateMeetingAgenda(ctx,
		state.MeetingData.Title,
		state.MeetingData.Purpose,
		state.MeetingData.AttendeeEmails(),
		state.MeetingData.DurationMinutes,
		recentUserContext(conv))
	if err != nil {
		o.logger.Warn("agenda generation failed",
			"conversation_id", state.ConversationID, "error", err)

		return &models.StepResponse{
			Message:           "I couldn't generate an agenda right now. You can write one yourself or try again.",
			NextStep:          models.StepAgendaGeneration,
			RequiresUserInput: true,
			ValidationErrors:  []string{"Agenda generation failed"},
			SuggestedActions:  []string{"Try again", "Write the agenda manually"},
		}
	}

	text := content.Format()
	result := o.agendaValidator.Validate(text)
	state.RecordValidation(result)
	state.MeetingData.Agenda = text
	state.MeetingData.AgendaApproved = false

	return &models.StepResponse{
		Message: "Here's a draft agenda. Approve it, edit it, or ask me to regenerate.",
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

// stepAgendaApprovalInput interprets the free-text message at the approval
// step: approve, regenerate, or treat the message as an edited agenda.
func (o *Orchestrator) stepAgendaApprovalInput(ctx context.Context, state *models.WorkflowState, conv *conversation.Context, message string) *models.StepResponse {
	lower := strings.ToLower(strings.TrimSpace(message))

	switch {
	case lower == "" || lower == "show" || lower == "show agenda":
		return o.handleAgendaApproval(state)
	case lower == "approve" || lower == "yes" || lower == "looks good" || lower == "lgtm":
		return o.approveAgenda(state, state.MeetingData.Agenda)
	case strings.Contains(lower, "regenerate") || lower == "try again" || lower == "redo":
		return o.regenerateAgenda(ctx, state, conv)
	default:
		return o.updateAgenda(state, message)
	}
}

// stepApproval is the final confirmation gate before creation.
func (o *Orchestrator) stepApproval(state *models.WorkflowState, message string) *models.StepResponse {
	lower := strings.ToLower(strings.TrimSpace(message))

	if lower == "yes" || lower == "confirm" || lower == "approve" || lower == "create it" {
		state.MeetingData.FinalApproved = true

		return &models.StepResponse{
			Message:           "Creating the calendar event and emailing the agenda to attendees.",
			NextStep:          models.StepCreation,
			RequiresUserInput: false,
		}
	}

	if lower == "no" || lower == "cancel" {
		return &models.StepResponse{
			Message:           "Okay, not creating the meeting. You can edit the agenda, change details, or reset the conversation.",
			NextStep:          models.StepApproval,
			RequiresUserInput: true,
			SuggestedActions:  []string{"Edit the agenda", "Reset the conversation"},
		}
	}

	data := state.MeetingData

	summary := map[string]any{
		"title":     data.Title,
		"type":      string(data.Type),
		"attendees": data.AttendeeEmails(),
	}

	if data.StartTime != nil {
		summary["start_time"] = *data.StartTime
	}

	if data.EndTime != nil {
		summary["end_time"] = *data.EndTime
	}

	if data.Location != "" {
		summary["location"] = data.Location
	}

	return &models.StepResponse{
		Message: "Here's the final summary. Confirm to create the meeting.",
		UIBlock: &models.UIBlock{
			Type:    "summary",
			Mode:    "confirm",
			Payload: summary,
		},
		NextStep:          models.StepApproval,
		RequiresUserInput: true,
		SuggestedActions:  []string{"Confirm", "Cancel"},
	}
}

// stepCreation creates the calendar event and hands off to the delivery
// orchestrator. Event creation has no fallback: a failure holds the step.
func (o *Orchestrator) stepCreation(ctx context.Context, state *models.WorkflowState) *models.StepResponse {
	eventID, err := o.calendar.CreateEvent(ctx, state.UserID, state.MeetingData)
	if err != nil {
		o.logger.Error("calendar event creation failed",
			"conversation_id", state.ConversationID, "error", err)

		return &models.StepResponse{
			Message:           "I couldn't create the calendar event. Nothing has been sent; try again in a moment.",
			NextStep:          models.StepCreation,
			RequiresUserInput: true,
			Warnings:          []string{"Calendar event creation failed"},
			SuggestedActions:  []string{"Try again"},
		}
	}

	state.MeetingData.CalendarEventID = eventID

	o.publish(ctx, state.ConversationID, events.MeetingCreated{
		BaseEvent: o.baseEvent(events.MeetingCreatedEvent, state.ConversationID, state.UserID),
		MeetingID: eventID,
		Title:     state.MeetingData.Title,
	})

	user := o.mailUser(ctx, state.UserID)

	jobID, err := o.delivery.StartEmailSendingWorkflow(ctx, user, eventID,
		state.MeetingData.Attendees, state.MeetingData, state.MeetingData.Agenda, nil)
	if err != nil {
		return &models.StepResponse{
			Message:           "The meeting was created, but I couldn't start sending agenda emails.",
			NextStep:          models.StepCompleted,
			RequiresUserInput: false,
			Warnings:          []string{"Email delivery could not be started"},
		}
	}

	return &models.StepResponse{
		Message: "Meeting created. Agenda emails are on their way to the attendees.",
		UIBlock: &models.UIBlock{
			Type:    "job_status",
			Payload: map[string]any{"job_id": jobID, "meeting_id": eventID},
		},
		NextStep:          models.StepCompleted,
		RequiresUserInput: false,
	}
}

// recentUserContext joins the last few user turns as free-text context for
// generation prompts.
func recentUserContext(conv *conversation.Context) string {
	messages := conv.Messages()

	var parts []string

	for i := len(messages) - 1; i >= 0 && len(parts) < 3; i-- {
		if messages[i].Role == "user" {
			parts = append([]string{messages[i].Content}, parts...)
		}
	}

	return strings.Join(parts, "\n")
}

var (
	durationMinutesPattern = regexp.MustCompile(`(\d+)[\s-]*min`)
	durationHoursPattern   = regexp.MustCompile(`(\d+)[\s-]*h(?:our)?`)
	clockPattern           = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// parseTimeWindow turns a free-text time phrase into a concrete window. It
// understands RFC 3339, "2006-01-02 15:04", and relative "today"/"tomorrow"
// with a clock time, plus an optional duration ("for 60 minutes", "2h").
// Duration defaults to one hour.
func parseTimeWindow(message string, now time.Time) (start, end time.Time, minutes int, ok bool) {
	lower := strings.ToLower(message)

	minutes = 60

	if m := durationMinutesPattern.FindStringSubmatch(lower); m != nil {
		minutes, _ = strconv.Atoi(m[1])
	} else if m := durationHoursPattern.FindStringSubmatch(lower); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes = hours * 60
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"} {
		for _, field := range strings.Fields(message) {
			if t, err := time.Parse(layout, field); err == nil {
				start = t.UTC()

				return start, start.Add(time.Duration(minutes) * time.Minute), minutes, true
			}
		}

		// Layouts with a space need the joined form too.
		if strings.Contains(layout, " ") {
			if idx := strings.Index(message, "20"); idx >= 0 && len(message[idx:]) >= len(layout) {
				if t, err := time.Parse(layout, message[idx:idx+len(layout)]); err == nil {
					start = t.UTC()

					return start, start.Add(time.Duration(minutes) * time.Minute), minutes, true
				}
			}
		}
	}

	var day time.Time

	switch {
	case strings.Contains(lower, "tomorrow"):
		day = now.AddDate(0, 0, 1)
	case strings.Contains(lower, "today"):
		day = now
	default:
		return time.Time{}, time.Time{}, 0, false
	}

	hour, minute := 10, 0

	if m := clockPattern.FindStringSubmatch(lower); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])

		if strings.Contains(lower, "pm") && hour < 12 {
			hour += 12
		}
	}

	start = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
	end = start.Add(time.Duration(minutes) * time.Minute)

	return start, end, minutes, true
}

// EmailJobStatus proxies the delivery orchestrator's status view so API
// callers go through one facade.
func (o *Orchestrator) EmailJobStatus(jobID string) (*delivery.JobStatus, error) {
	return o.delivery.GetEmailSendingStatus(jobID)
}
