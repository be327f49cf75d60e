// Package agenda validates agenda text before it can be approved. This is a
// rule-based linter, deliberately simple; generation quality lives with the
// AI providers.
package agenda

import (
	"fmt"
	"strings"
	"time"

	"github.com/meetflow/meetflow/pkg/models"
)

// Validator checks agenda text against minimum quality rules.
type Validator struct {
	MinWords    int
	MaxWords    int
	MinSections int
}

// NewValidator returns the default rules: at least 50 words, at most 1000,
// and at least two distinguishable lines.
func NewValidator() *Validator {
	return &Validator{
		MinWords:    50,
		MaxWords:    1000,
		MinSections: 2,
	}
}

// Validate lints the agenda text. The step on the result is always
// agenda_approval since that is where agenda validation happens.
func (v *Validator) Validate(text string) models.ValidationResult {
	result := models.ValidationResult{
		Step:      models.StepAgendaApproval,
		CheckedAt: time.Now().UTC(),
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		result.Errors = append(result.Errors, "Agenda is required")
		result.IsValid = false

		return result
	}

	words := len(strings.Fields(trimmed))

	if words < v.MinWords {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Agenda must be at least %d words (currently %d)", v.MinWords, words))
	}

	if words > v.MaxWords {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Agenda must be at most %d words (currently %d)", v.MaxWords, words))
	}

	var lines int

	for _, line := range strings.Split(trimmed, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}

	if lines < v.MinSections {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Agenda should have at least %d sections", v.MinSections))
	}

	result.IsValid = len(result.Errors) == 0

	return result
}
