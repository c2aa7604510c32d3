package mandrill

import (
	"fmt"
	"net/http"

	"capdev_portal/platform/apperr"
)

// Error names returned by the Mandrill API that retrying cannot fix.
var permanentErrors = map[string]bool{
	"Invalid_Key":        true,
	"ValidationError":    true,
	"Unknown_Template":   true,
	"PaymentRequired":    true,
	"Unknown_Subaccount": true,
	"Unknown_Sender":     true,
}

// Error names that describe a transient provider condition.
var transientErrors = map[string]bool{
	"GeneralError":       true,
	"ServiceUnavailable": true,
}

// APIError is a failed provider call.
type APIError struct {
	Status      int
	Name        string
	Message     string
	Recoverable bool
	Err         error
}

func (e *APIError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("mandrill %s (status %d): %s", e.Name, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("mandrill request failed: %v", e.Err)
	default:
		return fmt.Sprintf("mandrill request failed: status %d: %s", e.Status, e.Message)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) IsRecoverable() bool { return e.Recoverable }

func (e *APIError) AppKind() apperr.Kind {
	if e.Recoverable {
		return apperr.KindUnavailable
	}
	return apperr.KindInternal
}

// classify decides recoverability from the error name first, then the status.
func classify(status int, name string) bool {
	if permanentErrors[name] {
		return false
	}
	if transientErrors[name] {
		return true
	}
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

func transportError(err error) *APIError {
	return &APIError{Message: err.Error(), Recoverable: true, Err: err}
}
