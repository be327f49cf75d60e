package agenda_test

import (
	"strings"
	"testing"

	"github.com/meetflow/meetflow/pkg/agenda"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmptyAgenda(t *testing.T) {
	v := agenda.NewValidator()

	result := v.Validate("   ")
	require.False(t, result.IsValid)
	assert.Equal(t, models.StepAgendaApproval, result.Step)
	assert.Contains(t, result.Errors, "Agenda is required")
}

func TestValidateShortAgenda(t *testing.T) {
	v := agenda.NewValidator()

	result := v.Validate("Too short")
	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Agenda must be at least 50 words")
}

func TestValidateLongAgenda(t *testing.T) {
	v := agenda.NewValidator()
	v.MaxWords = 20

	result := v.Validate(testutil.CreateTestAgenda())
	require.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "Agenda must be at most 20 words")
}

func TestValidateGoodAgenda(t *testing.T) {
	v := agenda.NewValidator()

	result := v.Validate(testutil.CreateTestAgenda())
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateSingleSectionWarns(t *testing.T) {
	v := agenda.NewValidator()

	text := strings.Repeat("discussion point ", 30)

	result := v.Validate(text)
	assert.True(t, result.IsValid)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "at least 2 sections")
}
