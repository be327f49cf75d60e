// Package redis provides Redis-backed persistence for deployments where the
// API runs more than one replica behind a shared store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const (
	statePrefix        = "meetflow:workflow_state:"
	jobPrefix          = "meetflow:email_job:"
	conversationPrefix = "meetflow:conversation:"
)

// Persistence implements persistence.Persistence on a Redis client.
type Persistence struct {
	client redis.UniversalClient
}

// NewPersistence parses a redis:// URL and connects.
func NewPersistence(redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Persistence{client: redis.NewClient(opts)}, nil
}

// NewPersistenceFromClient wraps an existing client, useful for tests.
func NewPersistenceFromClient(client redis.UniversalClient) *Persistence {
	return &Persistence{client: client}
}

func (p *Persistence) WorkflowStates() persistence.WorkflowStateRepository {
	return &workflowStateRepository{client: p.client}
}

func (p *Persistence) EmailJobs() persistence.EmailJobRepository {
	return &emailJobRepository{client: p.client}
}

func (p *Persistence) Conversations() persistence.ConversationRepository {
	return &conversationRepository{client: p.client}
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func get(ctx context.Context, client redis.UniversalClient, key string, v any) error {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return persistence.ErrNotFound
		}

		return err
	}

	return json.Unmarshal(data, v)
}

func set(ctx context.Context, client redis.UniversalClient, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return client.Set(ctx, key, data, 0).Err()
}

func del(ctx context.Context, client redis.UniversalClient, key string) error {
	n, err := client.Del(ctx, key).Result()
	if err != nil {
		return err
	}

	if n == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

type workflowStateRepository struct {
	client redis.UniversalClient
}

func (r *workflowStateRepository) Save(ctx context.Context, state *models.WorkflowState) error {
	return set(ctx, r.client, statePrefix+state.ConversationID, state)
}

func (r *workflowStateRepository) GetByConversationID(ctx context.Context, conversationID string) (*models.WorkflowState, error) {
	var state models.WorkflowState
	if err := get(ctx, r.client, statePrefix+conversationID, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (r *workflowStateRepository) Delete(ctx context.Context, conversationID string) error {
	return del(ctx, r.client, statePrefix+conversationID)
}

type emailJobRepository struct {
	client redis.UniversalClient
}

func (r *emailJobRepository) Save(ctx context.Context, job *models.EmailSendingJob) error {
	return set(ctx, r.client, jobPrefix+job.ID, job)
}

func (r *emailJobRepository) GetByID(ctx context.Context, id string) (*models.EmailSendingJob, error) {
	var job models.EmailSendingJob
	if err := get(ctx, r.client, jobPrefix+id, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *emailJobRepository) List(ctx context.Context) ([]*models.EmailSendingJob, error) {
	var (
		jobs   []*models.EmailSendingJob
		cursor uint64
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, jobPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}

		for _, key := range keys {
			var job models.EmailSendingJob
			if err := get(ctx, r.client, key, &job); err != nil {
				continue
			}

			jobs = append(jobs, &job)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return jobs, nil
}

func (r *emailJobRepository) Delete(ctx context.Context, id string) error {
	return del(ctx, r.client, jobPrefix+id)
}

type conversationRepository struct {
	client redis.UniversalClient
}

func (r *conversationRepository) SaveMessages(ctx context.Context, conversationID string, messages []models.Message) error {
	return set(ctx, r.client, conversationPrefix+conversationID, messages)
}

func (r *conversationRepository) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message

	err := get(ctx, r.client, conversationPrefix+conversationID, &messages)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return messages, nil
}

func (r *conversationRepository) Delete(ctx context.Context, conversationID string) error {
	err := del(ctx, r.client, conversationPrefix+conversationID)
	if persistence.IsNotFound(err) {
		return nil
	}

	return err
}
