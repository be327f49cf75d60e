package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meetflow/meetflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Prompt construction and response parsing shared by both provider adapters.
// Providers are asked for strict JSON; parsing failures surface as malformed
// errors so the router's taxonomy picks them up.

const intentSchemaJSON = `{
	"type": "object",
	"required": ["intent", "confidence"],
	"properties": {
		"intent": {"type": "string", "enum": ["schedule", "reschedule", "cancel", "chat"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

var intentSchema = gojsonschema.NewStringLoader(intentSchemaJSON)

// IntentPrompt builds the system and user prompts for intent extraction.
func IntentPrompt(messages []models.Message) (system, user string) {
	system = `You extract meeting scheduling intent from a conversation. ` +
		`Respond with strict JSON: {"intent": "schedule|reschedule|cancel|chat", "confidence": 0.0-1.0}. No prose.`

	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	return system, b.String()
}

// ParseIntent validates and decodes an intent payload.
func ParseIntent(raw string) (*Intent, error) {
	raw = StripCodeFence(raw)

	result, err := gojsonschema.Validate(intentSchema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed intent payload: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}

		return nil, fmt.Errorf("malformed intent payload: schema violation: %s", strings.Join(details, "; "))
	}

	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, fmt.Errorf("malformed intent payload: %w", err)
	}

	return &intent, nil
}

// TitlesPrompt builds the prompt for meeting title suggestions.
func TitlesPrompt(context string, attendees []string, extra string) (system, user string) {
	system = `You suggest concise meeting titles. Respond with strict JSON: {"suggestions": ["...", "..."]}. No prose.`
	user = fmt.Sprintf("Context: %s\nAttendees: %s\n%s", context, strings.Join(attendees, ", "), extra)

	return system, user
}

// ParseTitles decodes a title suggestions payload.
func ParseTitles(raw string) ([]string, error) {
	var payload struct {
		Suggestions []string `json:"suggestions"`
	}

	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("malformed titles payload: %w", err)
	}

	return payload.Suggestions, nil
}

// AgendaPrompt builds the prompt for agenda generation.
func AgendaPrompt(title, purpose string, attendees []string, durationMinutes int, extra string) (system, user string) {
	system = `You write meeting agendas. Respond with strict JSON: ` +
		`{"objective": "...", "sections": [{"title": "...", "duration_minutes": N, "items": ["..."]}]}. ` +
		`Section durations must sum to the meeting duration. No prose.`
	user = fmt.Sprintf(
		"Title: %s\nPurpose: %s\nAttendees: %s\nDuration: %d minutes\n%s",
		title, purpose, strings.Join(attendees, ", "), durationMinutes, extra,
	)

	return system, user
}

// ParseAgenda decodes an agenda payload.
func ParseAgenda(raw string) (*AgendaContent, error) {
	var agenda AgendaContent
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &agenda); err != nil {
		return nil, fmt.Errorf("malformed agenda payload: %w", err)
	}

	if len(agenda.Sections) == 0 {
		return nil, fmt.Errorf("malformed agenda payload: no sections")
	}

	return &agenda, nil
}

// ActionItemsPrompt builds the prompt for action item generation.
func ActionItemsPrompt(title, purpose string, attendees, topics []string, extra string) (system, user string) {
	system = `You derive actionable follow-up items for a meeting. Respond with strict JSON: ` +
		`{"items": [{"description": "...", "owner": "..."}]}. No prose.`
	user = fmt.Sprintf(
		"Title: %s\nPurpose: %s\nAttendees: %s\nTopics: %s\n%s",
		title, purpose, strings.Join(attendees, ", "), strings.Join(topics, ", "), extra,
	)

	return system, user
}

// ParseActionItems decodes an action items payload.
func ParseActionItems(raw string) ([]ActionItem, error) {
	var payload struct {
		Items []ActionItem `json:"items"`
	}

	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("malformed action items payload: %w", err)
	}

	return payload.Items, nil
}

// VerifyAttendeesPrompt builds the prompt for attendee verification.
func VerifyAttendeesPrompt(emails []string) (system, user string) {
	system = `You verify email addresses for syntax and domain plausibility. Respond with strict JSON: ` +
		`{"results": [{"email": "...", "valid": true, "trusted": true}]}. No prose.`
	user = "Addresses: " + strings.Join(emails, ", ")

	return system, user
}

// ParseVerifications decodes a verification payload.
func ParseVerifications(raw string) ([]AttendeeVerification, error) {
	var payload struct {
		Results []AttendeeVerification `json:"results"`
	}

	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("malformed verification payload: %w", err)
	}

	return payload.Results, nil
}

// StripCodeFence removes a surrounding markdown code fence, which models
// emit even when asked for bare JSON.
func StripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)

	if !strings.HasPrefix(raw, "```") {
		return raw
	}

	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	return strings.TrimSpace(raw)
}
