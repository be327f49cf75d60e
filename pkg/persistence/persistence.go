// Package persistence abstracts storage of workflow states and email jobs.
package persistence

import (
	"context"
	"errors"

	"github.com/meetflow/meetflow/pkg/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WorkflowStateRepository stores one WorkflowState per conversation.
type WorkflowStateRepository interface {
	Save(ctx context.Context, state *models.WorkflowState) error
	GetByConversationID(ctx context.Context, conversationID string) (*models.WorkflowState, error)
	Delete(ctx context.Context, conversationID string) error
}

// EmailJobRepository stores email sending jobs.
type EmailJobRepository interface {
	Save(ctx context.Context, job *models.EmailSendingJob) error
	GetByID(ctx context.Context, id string) (*models.EmailSendingJob, error)
	List(ctx context.Context) ([]*models.EmailSendingJob, error)
	Delete(ctx context.Context, id string) error
}

// ConversationRepository stores the message history per conversation.
type ConversationRepository interface {
	SaveMessages(ctx context.Context, conversationID string, messages []models.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	Delete(ctx context.Context, conversationID string) error
}

// Persistence is the storage root handed to the orchestrators.
type Persistence interface {
	WorkflowStates() WorkflowStateRepository
	EmailJobs() EmailJobRepository
	Conversations() ConversationRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
