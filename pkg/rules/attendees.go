package rules

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/meetflow/meetflow/pkg/models"
)

// AttendeeValidator checks email syntax and domain trust. Syntax uses the
// shared validator instance; trust is a plain domain allow-list, with an
// empty list meaning every syntactically valid domain is trusted.
type AttendeeValidator struct {
	validate       *validator.Validate
	trustedDomains map[string]bool
}

// NewAttendeeValidator builds a validator trusting the given domains.
func NewAttendeeValidator(trustedDomains ...string) *AttendeeValidator {
	trusted := make(map[string]bool, len(trustedDomains))
	for _, d := range trustedDomains {
		trusted[strings.ToLower(d)] = true
	}

	return &AttendeeValidator{
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		trustedDomains: trusted,
	}
}

// Validate reports whether the address is syntactically valid and whether
// its domain is trusted.
func (v *AttendeeValidator) Validate(email string) (valid, trusted bool) {
	email = strings.TrimSpace(email)

	if err := v.validate.Var(email, "required,email"); err != nil {
		return false, false
	}

	if len(v.trustedDomains) == 0 {
		return true, true
	}

	at := strings.LastIndex(email, "@")
	domain := strings.ToLower(email[at+1:])

	return true, v.trustedDomains[domain]
}

// ValidateAll marks each attendee's Validated flag and returns the attendees
// that failed, so callers can surface concrete errors per address.
func (v *AttendeeValidator) ValidateAll(attendees []models.Attendee) (validated []models.Attendee, invalid []string) {
	validated = make([]models.Attendee, 0, len(attendees))

	for _, a := range attendees {
		valid, _ := v.Validate(a.Email)
		a.Validated = valid
		validated = append(validated, a)

		if !valid {
			invalid = append(invalid, a.Email)
		}
	}

	return validated, invalid
}
