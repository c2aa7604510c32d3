// Package email orchestrates templated transactional email: rate limiting,
// template resolution, variable validation, provider dispatch and logging.
package email

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Recipient is the addressee of one message.
type Recipient struct {
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	UserID *uuid.UUID `json:"userId,omitempty"`
}

// SendOptions carries per-call extras merged over the template definition.
type SendOptions struct {
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SendRequest asks for one event email to one recipient.
type SendRequest struct {
	Event     string         `json:"event"`
	Recipient Recipient      `json:"recipient"`
	Variables map[string]any `json:"variables,omitempty"`
	Options   SendOptions    `json:"options,omitempty"`
}

// BatchRequest sends the same event and variables to several recipients.
type BatchRequest struct {
	Event      string         `json:"event"`
	Recipients []Recipient    `json:"recipients"`
	Variables  map[string]any `json:"variables,omitempty"`
	Options    SendOptions    `json:"options,omitempty"`
}

// Result is the outcome of one send attempt.
type Result struct {
	Recipient    string `json:"recipient"`
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	LogID        int64  `json:"logId"`
	ProviderID   string `json:"providerId,omitempty"`
	RejectReason string `json:"rejectReason,omitempty"`
	Error        string `json:"error,omitempty"`
	Recoverable  bool   `json:"recoverable,omitempty"`
}

// ProviderMessage is what a delivery provider needs to send a template.
type ProviderMessage struct {
	TemplateName string
	Subject      string
	ToEmail      string
	ToName       string
	Variables    map[string]any
	Tags         []string
	Metadata     map[string]string
}

// ProviderResponse is the provider's verdict for one message.
type ProviderResponse struct {
	ID           string
	Status       string
	RejectReason string
}

// Provider is an outbound transactional email service.
type Provider interface {
	SendTemplate(ctx context.Context, msg ProviderMessage) (ProviderResponse, error)
	Render(ctx context.Context, templateName string, vars map[string]any) (string, error)
	Ping(ctx context.Context) error
}

// Provider statuses that mean the message was not accepted.
const (
	providerStatusRejected = "rejected"
	providerStatusInvalid  = "invalid"
)

type recoverable interface {
	IsRecoverable() bool
}

// IsRecoverable reports whether err is a provider failure worth retrying.
// Errors that do not describe themselves are treated as not recoverable.
func IsRecoverable(err error) bool {
	var r recoverable
	if errors.As(err, &r) {
		return r.IsRecoverable()
	}
	return false
}

// ProviderError reports whether err came from the delivery provider.
func ProviderError(err error) bool {
	var r recoverable
	return errors.As(err, &r)
}
