package templates

import (
	"fmt"
	"sort"
	"strings"

	"capdev_portal/platform/apperr"
)

// NotFoundError is returned when no catalog entry exists for an event.
type NotFoundError struct {
	Event string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no email template configured for event %q", e.Event)
}

func (e *NotFoundError) AppKind() apperr.Kind { return apperr.KindNotFound }

// MissingVariablesError lists required variables absent from the input.
type MissingVariablesError struct {
	Event   string
	Missing []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("email %q missing required variables: %s", e.Event, strings.Join(e.Missing, ", "))
}

func (e *MissingVariablesError) AppKind() apperr.Kind { return apperr.KindValidation }

// ValidationError collects every structural failure found for one event.
type ValidationError struct {
	Event    string
	Failures map[string][]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Failures))
	for field := range e.Failures {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Failures[field], ", "))
	}
	return fmt.Sprintf("email %q variables invalid: %s", e.Event, strings.Join(parts, "; "))
}

func (e *ValidationError) AppKind() apperr.Kind { return apperr.KindValidation }

func (e *ValidationError) add(field, msg string) {
	if e.Failures == nil {
		e.Failures = make(map[string][]string)
	}
	e.Failures[field] = append(e.Failures[field], msg)
}
