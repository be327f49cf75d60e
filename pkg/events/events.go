// Package events defines the notification event types emitted by the
// workflow and delivery orchestrators. Consumers subscribe through the
// event bus; the core never waits on them.
package events

import (
	"time"

	"github.com/meetflow/meetflow/pkg/models"
)

type EventType string

// Topic carries every meetflow notification event.
const Topic = "meetflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowStepAdvancedEvent EventType = "workflow.step.advanced"
	WorkflowCompletedEvent    EventType = "workflow.completed"
	WorkflowResetEvent        EventType = "workflow.reset"
	MeetingCreatedEvent       EventType = "meeting.created"

	// Email delivery job events.
	EmailJobStartedEvent   EventType = "email_job.started"
	EmailJobCompletedEvent EventType = "email_job.completed"
	EmailJobCancelledEvent EventType = "email_job.cancelled"
)

// BaseEvent carries the fields shared by every notification.
type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
}

// WorkflowStepAdvanced fires when a conversation's workflow transitions.
type WorkflowStepAdvanced struct {
	BaseEvent

	FromStep models.Step `json:"from_step"`
	ToStep   models.Step `json:"to_step"`
}

func (e WorkflowStepAdvanced) GetType() EventType { return WorkflowStepAdvancedEvent }

// WorkflowCompleted fires when a workflow reaches its terminal step.
type WorkflowCompleted struct {
	BaseEvent

	MeetingID string `json:"meeting_id"`
}

func (e WorkflowCompleted) GetType() EventType { return WorkflowCompletedEvent }

// WorkflowReset fires when a conversation discards its workflow state.
type WorkflowReset struct {
	BaseEvent
}

func (e WorkflowReset) GetType() EventType { return WorkflowResetEvent }

// MeetingCreated fires once the calendar event exists.
type MeetingCreated struct {
	BaseEvent

	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
}

func (e MeetingCreated) GetType() EventType { return MeetingCreatedEvent }

// EmailJobStarted fires when a batch send job is accepted.
type EmailJobStarted struct {
	BaseEvent

	JobID          string `json:"job_id"`
	AttendeeCount  int    `json:"attendee_count"`
}

func (e EmailJobStarted) GetType() EventType { return EmailJobStartedEvent }

// EmailJobCompleted fires when a job reaches any terminal status.
type EmailJobCompleted struct {
	BaseEvent

	JobID        string                `json:"job_id"`
	Status       models.EmailJobStatus `json:"status"`
	EmailsSent   int                   `json:"emails_sent"`
	EmailsFailed int                   `json:"emails_failed"`
}

func (e EmailJobCompleted) GetType() EventType { return EmailJobCompletedEvent }

// EmailJobCancelled fires when a user cancels an in-flight job.
type EmailJobCancelled struct {
	BaseEvent

	JobID string `json:"job_id"`
}

func (e EmailJobCancelled) GetType() EventType { return EmailJobCancelledEvent }
