// Package file provides file-based persistence, one JSON document per
// record. Suitable for development and tests; production deployments use the
// redis backend.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on a directory tree.
type Persistence struct {
	root string

	states        *workflowStateRepository
	jobs          *emailJobRepository
	conversations *conversationRepository
}

// NewPersistence roots the store at the given directory, accepting an
// optional file:// prefix.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		states:        &workflowStateRepository{dir: filepath.Join(cleanRoot, "workflow_states")},
		jobs:          &emailJobRepository{dir: filepath.Join(cleanRoot, "email_jobs")},
		conversations: &conversationRepository{dir: filepath.Join(cleanRoot, "conversations")},
	}
}

func (p *Persistence) WorkflowStates() persistence.WorkflowStateRepository { return p.states }
func (p *Persistence) EmailJobs() persistence.EmailJobRepository           { return p.jobs }
func (p *Persistence) Conversations() persistence.ConversationRepository   { return p.conversations }

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// writeJSON atomically replaces path with the JSON encoding of v.
func writeJSON(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, filepath.Join(dir, name))
}

func readJSON(dir, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.ErrNotFound
		}

		return err
	}

	return json.Unmarshal(data, v)
}

func deleteFile(dir, name string) error {
	err := os.Remove(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return persistence.ErrNotFound
	}

	return err
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

type workflowStateRepository struct {
	mu  sync.RWMutex
	dir string
}

func (r *workflowStateRepository) Save(_ context.Context, state *models.WorkflowState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.dir, sanitize(state.ConversationID)+".json", state)
}

func (r *workflowStateRepository) GetByConversationID(_ context.Context, conversationID string) (*models.WorkflowState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var state models.WorkflowState
	if err := readJSON(r.dir, sanitize(conversationID)+".json", &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (r *workflowStateRepository) Delete(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return deleteFile(r.dir, sanitize(conversationID)+".json")
}

type emailJobRepository struct {
	mu  sync.RWMutex
	dir string
}

func (r *emailJobRepository) Save(_ context.Context, job *models.EmailSendingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.dir, sanitize(job.ID)+".json", job)
}

func (r *emailJobRepository) GetByID(_ context.Context, id string) (*models.EmailSendingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var job models.EmailSendingJob
	if err := readJSON(r.dir, sanitize(id)+".json", &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *emailJobRepository) List(_ context.Context) ([]*models.EmailSendingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	jobs := make([]*models.EmailSendingJob, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var job models.EmailSendingJob
		if err := readJSON(r.dir, entry.Name(), &job); err != nil {
			continue
		}

		jobs = append(jobs, &job)
	}

	return jobs, nil
}

func (r *emailJobRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return deleteFile(r.dir, sanitize(id)+".json")
}

type conversationRepository struct {
	mu  sync.RWMutex
	dir string
}

func (r *conversationRepository) SaveMessages(_ context.Context, conversationID string, messages []models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.dir, sanitize(conversationID)+".json", messages)
}

func (r *conversationRepository) GetMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []models.Message

	err := readJSON(r.dir, sanitize(conversationID)+".json", &messages)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return messages, nil
}

func (r *conversationRepository) Delete(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := deleteFile(r.dir, sanitize(conversationID)+".json")
	if persistence.IsNotFound(err) {
		return nil
	}

	return err
}
