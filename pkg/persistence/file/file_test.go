package file_test

import (
	"testing"

	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/persistence"
	"github.com/meetflow/meetflow/pkg/persistence/file"
	"github.com/meetflow/meetflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStateRoundtrip(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	repo := store.WorkflowStates()

	state := testutil.CreateTestWorkflowState(models.StepValidation)
	require.NoError(t, repo.Save(t.Context(), state))

	loaded, err := repo.GetByConversationID(t.Context(), state.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, state.ConversationID, loaded.ConversationID)
	assert.Equal(t, models.StepValidation, loaded.CurrentStep)
	assert.Equal(t, state.MeetingData.Title, loaded.MeetingData.Title)

	require.NoError(t, repo.Delete(t.Context(), state.ConversationID))

	_, err = repo.GetByConversationID(t.Context(), state.ConversationID)
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestWorkflowStateMissingIsNotFound(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	_, err := store.WorkflowStates().GetByConversationID(t.Context(), "conv-missing")
	assert.True(t, persistence.IsNotFound(err))
}

func TestEmailJobRoundtripAndList(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	repo := store.EmailJobs()

	first := testutil.CreateTestEmailJob()
	second := testutil.CreateTestEmailJob(func(j *models.EmailSendingJob) {
		j.Status = models.EmailJobCompleted
	})

	require.NoError(t, repo.Save(t.Context(), first))
	require.NoError(t, repo.Save(t.Context(), second))

	loaded, err := repo.GetByID(t.Context(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.MeetingID, loaded.MeetingID)
	assert.Len(t, loaded.Attendees, 1)

	jobs, err := repo.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	require.NoError(t, repo.Delete(t.Context(), first.ID))

	jobs, err = repo.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestEmailJobListEmptyDirectory(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	jobs, err := store.EmailJobs().List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestConversationMessagesRoundtrip(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	repo := store.Conversations()

	// A conversation that was never saved reads back as empty, not as an
	// error, so fresh conversations start without special-casing.
	messages, err := repo.GetMessages(t.Context(), "conv-fresh")
	require.NoError(t, err)
	assert.Empty(t, messages)

	saved := []models.Message{
		{Role: "user", Content: "schedule a meeting"},
		{Role: "assistant", Content: "sure, online or physical?"},
	}

	require.NoError(t, repo.SaveMessages(t.Context(), "conv-fresh", saved))

	messages, err = repo.GetMessages(t.Context(), "conv-fresh")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)

	require.NoError(t, repo.Delete(t.Context(), "conv-fresh"))
	require.NoError(t, repo.Delete(t.Context(), "conv-fresh"))
}

func TestSanitizedIDsCannotEscapeRoot(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	repo := store.WorkflowStates()

	state := testutil.CreateTestWorkflowState(models.StepIntentDetection, func(s *models.WorkflowState) {
		s.ConversationID = "../../etc/passwd"
	})

	require.NoError(t, repo.Save(t.Context(), state))

	loaded, err := repo.GetByConversationID(t.Context(), "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, state.ConversationID, loaded.ConversationID)
}

func TestFileURLPrefixAccepted(t *testing.T) {
	dir := t.TempDir()
	store := file.NewPersistence("file://" + dir)

	state := testutil.CreateTestWorkflowState(models.StepIntentDetection)
	require.NoError(t, store.WorkflowStates().Save(t.Context(), state))
	require.NoError(t, store.HealthCheck(t.Context()))
}
