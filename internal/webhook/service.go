package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"capdev_portal/internal/email/emaillog"
	"capdev_portal/platform/apperr"
	"capdev_portal/platform/logger"
)

// Provider event names.
const (
	EventSend       = "send"
	EventDeferral   = "deferral"
	EventHardBounce = "hard_bounce"
	EventSoftBounce = "soft_bounce"
	EventReject     = "reject"
)

// StatusUpdater applies provider delivery outcomes to the email log.
type StatusUpdater interface {
	MarkByProviderID(ctx context.Context, providerID string, status emaillog.Status, detail string) error
}

// DeliveryEvent is one entry of the provider's event batch.
type DeliveryEvent struct {
	Event string       `json:"event"`
	ID    string       `json:"_id"`
	TS    int64        `json:"ts"`
	Msg   DeliveryInfo `json:"msg"`
}

// DeliveryInfo is the message snapshot attached to a delivery event.
type DeliveryInfo struct {
	ID                string `json:"_id"`
	Email             string `json:"email"`
	State             string `json:"state"`
	BounceDescription string `json:"bounce_description"`
	Diag              string `json:"diag"`
}

func (e DeliveryEvent) messageID() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Msg.ID
}

func (e DeliveryEvent) detail() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{e.Msg.BounceDescription, e.Msg.Diag} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ": ")
}

// ProcessResult summarizes one webhook delivery.
type ProcessResult struct {
	Applied   int `json:"applied"`
	Unmatched int `json:"unmatched"`
	Ignored   int `json:"ignored"`
}

type Service struct {
	logs StatusUpdater
	log  *logger.Logger
}

func NewService(logs StatusUpdater, log *logger.Logger) *Service {
	return &Service{logs: logs, log: log}
}

// Process maps each provider event onto an email log transition. Events for
// unknown messages are counted as unmatched. Store failures are collected so
// the provider retries the batch.
func (s *Service) Process(ctx context.Context, batch []DeliveryEvent) (ProcessResult, error) {
	var res ProcessResult
	var errs error

	for _, ev := range batch {
		status, ok := statusFor(ev.Event)
		if !ok {
			if ev.Event == EventDeferral {
				s.log.Info("email delivery deferred", "provider_id", ev.messageID(), "detail", ev.detail())
			}
			res.Ignored++
			continue
		}

		id := ev.messageID()
		if id == "" {
			res.Ignored++
			continue
		}

		err := s.logs.MarkByProviderID(ctx, id, status, ev.detail())
		switch {
		case err == nil:
			res.Applied++
		case apperr.Is(err, apperr.KindNotFound):
			res.Unmatched++
		default:
			errs = errors.Join(errs, fmt.Errorf("%s %s: %w", ev.Event, id, err))
		}
	}

	if errs != nil {
		s.log.Error("webhook: failed to apply delivery events", "error", errs)
	}
	return res, errs
}

func statusFor(event string) (emaillog.Status, bool) {
	switch event {
	case EventSend:
		return emaillog.StatusDelivered, true
	case EventHardBounce, EventSoftBounce:
		return emaillog.StatusBounced, true
	case EventReject:
		return emaillog.StatusRejected, true
	default:
		return "", false
	}
}
