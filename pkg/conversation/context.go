// Package conversation holds the per-conversation context collaborator:
// message history, current mode, and the accumulated meeting data handed to
// the workflow orchestrator.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/persistence"
)

// Mode distinguishes scheduling conversations from free chat.
type Mode string

const (
	ModeScheduling Mode = "scheduling"
	ModeChat       Mode = "chat"
)

// Context is the conversation collaborator. It owns the message history; the
// workflow state itself is owned by the orchestrator.
type Context struct {
	mu             sync.Mutex
	conversationID string
	mode           Mode
	messages       []models.Message
	repo           persistence.ConversationRepository
}

// Load restores (or begins) the context for a conversation id.
func Load(ctx context.Context, conversationID string, repo persistence.ConversationRepository) (*Context, error) {
	messages, err := repo.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return &Context{
		conversationID: conversationID,
		mode:           ModeScheduling,
		messages:       messages,
		repo:           repo,
	}, nil
}

// ConversationID returns the owning conversation id.
func (c *Context) ConversationID() string {
	return c.conversationID
}

// Messages returns a copy of the history, oldest first.
func (c *Context) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)

	return out
}

// AddMessage appends one turn to the history.
func (c *Context) AddMessage(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, models.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// CurrentMode returns the conversation mode.
func (c *Context) CurrentMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// SetMode switches between scheduling and chat.
func (c *Context) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// Save persists the history.
func (c *Context) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.SaveMessages(ctx, c.conversationID, c.messages)
}

// Discard removes the stored history.
func (c *Context) Discard(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil

	return c.repo.Delete(ctx, c.conversationID)
}
