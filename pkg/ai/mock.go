package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/meetflow/meetflow/pkg/models"
)

// MockProvider is a lightweight in-memory Provider for tests and local
// development. Canned results are returned per function; a scripted error
// takes precedence over the canned result.
type MockProvider struct {
	name string

	mu       sync.Mutex
	errs     map[string]error
	calls    map[string]int
	Intent   *Intent
	Titles   []string
	Agenda   *AgendaContent
	Items    []ActionItem
	ChatText string
}

// NewMockProvider constructs a MockProvider with sensible defaults.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:  name,
		errs:  make(map[string]error),
		calls: make(map[string]int),
		Intent: &Intent{
			Intent:     "schedule",
			Confidence: 0.95,
		},
		Titles: []string{"Team Sync", "Project Check-in", "Planning Session"},
		Agenda: &AgendaContent{
			Objective: "Align the team on current priorities and unblock open questions",
			Sections: []AgendaSection{
				{Title: "Welcome and context", DurationMinutes: 5, Items: []string{"Quick round of introductions", "Review the goal of this session"}},
				{Title: "Status updates from every attendee", DurationMinutes: 20, Items: []string{"Progress since the last meeting", "Current blockers and risks"}},
				{Title: "Discussion of open topics", DurationMinutes: 25, Items: []string{"Prioritize outstanding decisions", "Assign owners to each open item"}},
				{Title: "Next steps and wrap up", DurationMinutes: 10, Items: []string{"Summarize agreed actions", "Confirm the follow-up schedule"}},
			},
		},
		Items:    []ActionItem{{Description: "Share meeting notes with all attendees"}},
		ChatText: "Happy to help with your meeting.",
	}
}

// FailWith scripts an error for a logical function name. Pass nil to clear.
func (m *MockProvider) FailWith(function string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.errs, function)
		return
	}

	m.errs[function] = err
}

// Calls returns how many times a function was invoked.
func (m *MockProvider) Calls(function string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[function]
}

func (m *MockProvider) check(function string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[function]++

	if err, ok := m.errs[function]; ok {
		return NewProviderError(m.name, err)
	}

	return nil
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) ExtractMeetingIntent(_ context.Context, _ []models.Message) (*Intent, error) {
	if err := m.check(FuncExtractMeetingIntent); err != nil {
		return nil, err
	}

	return m.Intent, nil
}

func (m *MockProvider) GenerateMeetingTitles(_ context.Context, _ string, _ []string, _ string) ([]string, error) {
	if err := m.check(FuncGenerateMeetingTitles); err != nil {
		return nil, err
	}

	return m.Titles, nil
}

func (m *MockProvider) GenerateMeetingAgenda(_ context.Context, _, _ string, _ []string, _ int, _ string) (*AgendaContent, error) {
	if err := m.check(FuncGenerateMeetingAgenda); err != nil {
		return nil, err
	}

	return m.Agenda, nil
}

func (m *MockProvider) GenerateActionItems(_ context.Context, _, _ string, _, _ []string, _ string) ([]ActionItem, error) {
	if err := m.check(FuncGenerateActionItems); err != nil {
		return nil, err
	}

	return m.Items, nil
}

func (m *MockProvider) Chat(_ context.Context, messages []models.Message) (string, error) {
	if err := m.check(FuncChat); err != nil {
		return "", err
	}

	if len(messages) > 0 {
		last := messages[len(messages)-1]
		if strings.TrimSpace(last.Content) == "" {
			return m.ChatText, nil
		}
	}

	return m.ChatText, nil
}

func (m *MockProvider) VerifyAttendees(_ context.Context, emails []string) ([]AttendeeVerification, error) {
	if err := m.check(FuncVerifyAttendees); err != nil {
		return nil, err
	}

	out := make([]AttendeeVerification, 0, len(emails))
	for _, email := range emails {
		out = append(out, AttendeeVerification{
			Email:   email,
			Valid:   strings.Contains(email, "@"),
			Trusted: true,
		})
	}

	return out, nil
}
