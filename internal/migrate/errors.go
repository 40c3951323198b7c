package migrate

import (
	"context"
	"errors"
	"fmt"
)

// forbidden is implemented by platform errors that signal a transient
// authorization or rate-limit refusal.
type forbidden interface {
	Forbidden() bool
}

// validation is implemented by platform errors that reject a single item.
type validation interface {
	error
	ValidationMessages() []string
}

// ProjectNotFoundError is returned when the tracked project cannot be found
// under the configured namespace.
type ProjectNotFoundError struct {
	Namespace string
	Name      string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("No repository named '%s' found in the namespace '%s'. Is the name misspelled?\n"+
		"Does your API token have the correct access?\n"+
		"Does the owner of the token have read access?", e.Name, e.Namespace)
}

// IsForbidden reports whether err is a transient authorization failure.
func IsForbidden(err error) bool {
	var f forbidden
	return errors.As(err, &f) && f.Forbidden()
}

// ValidationMessages returns the per-field messages of an item validation
// failure, and false if err is not one.
func ValidationMessages(err error) ([]string, bool) {
	var v validation
	if !errors.As(err, &v) {
		return nil, false
	}
	return v.ValidationMessages(), true
}

// Classify maps a pass error to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeFatal
	case IsForbidden(err):
		return OutcomeRetryable
	default:
		return OutcomeFatal
	}
}
