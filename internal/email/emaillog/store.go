// Package emaillog records the lifecycle of every outbound email.
package emaillog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusBounced   Status = "bounced"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// NoLogID is returned when an entry could not be written.
const NoLogID int64 = 0

type Entry struct {
	UserID       *uuid.UUID
	Recipient    string
	EventName    string
	TemplateName string
	Metadata     map[string]any
}

// Stats counts entries by status over a window.
type Stats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Bounced   int `json:"bounced"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
}

// Rates are fractions of the total in [0, 1].
type Rates struct {
	Delivery float64 `json:"deliveryRate"`
	Bounce   float64 `json:"bounceRate"`
	Failure  float64 `json:"failureRate"`
}

func (s Stats) Rates() Rates {
	if s.Total == 0 {
		return Rates{}
	}
	total := float64(s.Total)
	return Rates{
		Delivery: float64(s.Delivered) / total,
		Bounce:   float64(s.Bounced) / total,
		Failure:  float64(s.Failed+s.Rejected) / total,
	}
}

// Store is the email log sink.
type Store interface {
	Queued(ctx context.Context, e Entry) (int64, error)
	MarkSent(ctx context.Context, id int64, providerID string) error
	MarkRejected(ctx context.Context, id int64, reason string) error
	MarkFailed(ctx context.Context, id int64, message string) error
	// MarkByProviderID applies a webhook-reported status to the entry the
	// provider knows as providerID.
	MarkByProviderID(ctx context.Context, providerID string, status Status, detail string) error
	Stats(ctx context.Context, since time.Time) (Stats, error)
	RecentFailures(ctx context.Context, since time.Time) (int, error)
	Ping(ctx context.Context) error
	Available() bool
}

// NullStore is used when the email_logs table does not exist. Every write is
// a no-op and reads report nothing.
type NullStore struct{}

var _ Store = NullStore{}

func (NullStore) Queued(context.Context, Entry) (int64, error)           { return NoLogID, nil }
func (NullStore) MarkSent(context.Context, int64, string) error          { return nil }
func (NullStore) MarkRejected(context.Context, int64, string) error      { return nil }
func (NullStore) MarkFailed(context.Context, int64, string) error        { return nil }
func (NullStore) Stats(context.Context, time.Time) (Stats, error)        { return Stats{}, nil }
func (NullStore) RecentFailures(context.Context, time.Time) (int, error) { return 0, nil }
func (NullStore) Ping(context.Context) error                             { return nil }
func (NullStore) Available() bool                                        { return false }

func (NullStore) MarkByProviderID(context.Context, string, Status, string) error { return nil }
