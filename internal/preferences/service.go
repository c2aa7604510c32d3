package preferences

import (
	"context"
	"strings"

	"capdev_portal/platform/apperr"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	Upsert(ctx context.Context, p UpsertParams) (Preference, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Preference, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// SaveInput is the caller-facing shape of a preference write. Nil switches
// fall back to in-app on, email off.
type SaveInput struct {
	AttributeType            string
	AttributeValue           string
	NotificationEnabled      *bool
	EmailNotificationEnabled *bool
}

func (s *Service) Save(ctx context.Context, userID uuid.UUID, in SaveInput) (Preference, error) {
	attrType := AttributeType(strings.TrimSpace(in.AttributeType))
	if !attrType.Valid() {
		return Preference{}, apperr.Validation("unknown attribute type").WithDetails(map[string]string{"attributeType": in.AttributeType})
	}
	value := strings.TrimSpace(in.AttributeValue)
	if value == "" {
		return Preference{}, apperr.Validation("attribute value is required")
	}

	p := UpsertParams{
		UserID:              userID,
		AttributeType:       attrType,
		AttributeValue:      value,
		NotificationEnabled: true,
	}
	if in.NotificationEnabled != nil {
		p.NotificationEnabled = *in.NotificationEnabled
	}
	if in.EmailNotificationEnabled != nil {
		p.EmailNotificationEnabled = *in.EmailNotificationEnabled
	}
	return s.store.Upsert(ctx, p)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Preference, error) {
	return s.store.ListForUser(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Delete(ctx, userID, id)
}
