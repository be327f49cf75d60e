package rules_test

import (
	"testing"
	"time"

	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/rules"
	"github.com/meetflow/meetflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStepAcceptsCompleteData(t *testing.T) {
	engine := rules.NewEngine()

	result := engine.ValidateStep(models.StepValidation, testutil.CreateTestMeetingData())
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateStepMissingRequiredFields(t *testing.T) {
	engine := rules.NewEngine()

	data := testutil.CreateTestMeetingData(func(d *models.MeetingData) {
		d.Title = ""
		d.Attendees = nil
	})

	result := engine.ValidateStep(models.StepValidation, data)
	require.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Meeting title is required")
	assert.Contains(t, result.Errors, "At least one attendee is required")
}

func TestValidateStepTimeRules(t *testing.T) {
	engine := rules.NewEngine()
	now := time.Now().UTC()

	t.Run("end before start", func(t *testing.T) {
		data := testutil.CreateTestMeetingData(
			testutil.WithWindow(now.Add(24*time.Hour), now.Add(23*time.Hour)))

		result := engine.ValidateStep(models.StepValidation, data)
		require.False(t, result.IsValid)
		assert.Contains(t, result.Errors, "Meeting end time must be after the start time")
	})

	t.Run("too short", func(t *testing.T) {
		start := now.Add(24 * time.Hour)
		data := testutil.CreateTestMeetingData(testutil.WithWindow(start, start.Add(5*time.Minute)))

		result := engine.ValidateStep(models.StepValidation, data)
		assert.False(t, result.IsValid)
	})

	t.Run("insufficient lead time", func(t *testing.T) {
		start := now.Add(5 * time.Minute)
		data := testutil.CreateTestMeetingData(testutil.WithWindow(start, start.Add(time.Hour)))

		result := engine.ValidateStep(models.StepValidation, data)
		assert.False(t, result.IsValid)
	})
}

func TestValidateStepAttendeeCap(t *testing.T) {
	engine := rules.NewEngine()
	engine.MaxAttendees = 2

	data := testutil.CreateTestMeetingData(testutil.WithAttendees(
		models.Attendee{Email: "a@example.com", Validated: true},
		models.Attendee{Email: "b@example.com", Validated: true},
		models.Attendee{Email: "c@example.com", Validated: true},
	))

	result := engine.ValidateStep(models.StepValidation, data)
	require.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Meeting cannot have more than 2 attendees")
}

func TestValidateStepPhysicalWithoutLocationWarns(t *testing.T) {
	engine := rules.NewEngine()

	data := testutil.CreateTestMeetingData(func(d *models.MeetingData) {
		d.Type = models.MeetingTypePhysical
		d.Location = ""
	})

	result := engine.ValidateStep(models.StepValidation, data)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Warnings, "Physical meeting has no location set")
}

func TestAttendeeValidatorSyntax(t *testing.T) {
	v := rules.NewAttendeeValidator()

	valid, trusted := v.Validate("alice@example.com")
	assert.True(t, valid)
	assert.True(t, trusted)

	valid, _ = v.Validate("not-an-email")
	assert.False(t, valid)

	valid, _ = v.Validate("")
	assert.False(t, valid)
}

func TestAttendeeValidatorTrustedDomains(t *testing.T) {
	v := rules.NewAttendeeValidator("example.com")

	_, trusted := v.Validate("alice@example.com")
	assert.True(t, trusted)

	_, trusted = v.Validate("bob@other.org")
	assert.False(t, trusted)
}

func TestValidateAllMarksInvalidAttendees(t *testing.T) {
	v := rules.NewAttendeeValidator()

	validated, invalid := v.ValidateAll([]models.Attendee{
		{Email: "alice@example.com"},
		{Email: "broken"},
	})

	require.Len(t, validated, 2)
	assert.True(t, validated[0].Validated)
	assert.False(t, validated[1].Validated)
	assert.Equal(t, []string{"broken"}, invalid)
}
