package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass is the small taxonomy callers use to decide whether to show a
// retry affordance.
type ErrorClass string

const (
	ErrorClassAuth      ErrorClass = "auth"
	ErrorClassQuota     ErrorClass = "quota"
	ErrorClassTransient ErrorClass = "transient"
	ErrorClassMalformed ErrorClass = "malformed"
	ErrorClassUnknown   ErrorClass = "unknown"
)

// ErrProvidersExhausted is returned by the router when both providers failed.
var ErrProvidersExhausted = errors.New("all AI providers exhausted")

// ProviderError wraps a backend failure with its provider name and class.
type ProviderError struct {
	Provider string
	Class    ErrorClass
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError classifies err and wraps it. Existing ProviderErrors keep
// their class.
func NewProviderError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return &ProviderError{Provider: provider, Class: pe.Class, Err: pe.Err}
	}

	return &ProviderError{Provider: provider, Class: Classify(err), Err: err}
}

var classMarkers = map[ErrorClass][]string{
	ErrorClassAuth:      {"api key", "unauthorized", "authentication", "401", "403", "permission"},
	ErrorClassQuota:     {"rate limit", "quota", "429", "too many requests", "overloaded"},
	ErrorClassTransient: {"timeout", "deadline exceeded", "connection", "network", "unavailable", "500", "502", "503", "504", "temporarily"},
	ErrorClassMalformed: {"unmarshal", "invalid json", "unexpected end", "malformed", "schema"},
}

// Classify maps an arbitrary error onto the taxonomy by message substring.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	msg := strings.ToLower(err.Error())

	for _, class := range []ErrorClass{ErrorClassAuth, ErrorClassQuota, ErrorClassMalformed, ErrorClassTransient} {
		for _, marker := range classMarkers[class] {
			if strings.Contains(msg, marker) {
				return class
			}
		}
	}

	return ErrorClassUnknown
}

// IsRetryable reports whether the error class is worth retrying on the same
// provider. Auth and malformed responses will not improve with retries.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class == ErrorClassQuota || pe.Class == ErrorClassTransient
	}

	class := Classify(err)

	return class == ErrorClassQuota || class == ErrorClassTransient
}
