package notification

import (
	"context"
	"fmt"

	"capdev_portal/internal/attributes"
	"capdev_portal/internal/matching"
	"capdev_portal/internal/notification/inapp"
	"capdev_portal/internal/preferences"
	"capdev_portal/platform/logger"

	"github.com/google/uuid"
)

// Tx is the transactional view the writer needs: preference lookups and
// notification inserts that commit or roll back together. CreateNotification
// reports created=false when the user was already notified about the entity.
type Tx interface {
	matching.Finder
	CreateNotification(ctx context.Context, p inapp.CreateParams) (n inapp.Notification, created bool, err error)
}

// Store opens transactions for the writer.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// ManifestEntry records one notification produced for an entity.
type ManifestEntry struct {
	UserID         uuid.UUID                 `json:"userId"`
	NotificationID uuid.UUID                 `json:"notificationId"`
	AttributeType  preferences.AttributeType `json:"attributeType"`
	AttributeValue string                    `json:"attributeValue"`
}

// Writer matches an entity against stored preferences and writes one in-app
// notification per interested user.
type Writer struct {
	store     Store
	extractor *attributes.Extractor
	log       *logger.Logger
}

func NewWriter(store Store, extractor *attributes.Extractor, log *logger.Logger) *Writer {
	return &Writer{store: store, extractor: extractor, log: log}
}

// NotifyForEntity runs extraction, matching and inserts in one transaction.
// Any failure rolls back every notification of the batch.
func (w *Writer) NotifyForEntity(ctx context.Context, e attributes.Entity) ([]ManifestEntry, error) {
	attrs := w.extractor.Extract(e)
	if len(attrs) == 0 {
		return nil, nil
	}

	var manifest []ManifestEntry
	err := w.store.InTx(ctx, func(tx Tx) error {
		manifest = manifest[:0]
		matches, err := matching.NewMatcher(tx).Match(ctx, e, attrs)
		if err != nil {
			return err
		}

		resourceType := string(e.Kind)
		for _, p := range matches {
			n, created, err := tx.CreateNotification(ctx, inapp.CreateParams{
				UserID:       p.UserID,
				Title:        Title(e.Kind, p.AttributeType),
				Content:      Content(e, p),
				ResourceID:   &e.ID,
				ResourceType: &resourceType,
				Category:     inapp.CategoryMatch,
			})
			if err != nil {
				return fmt.Errorf("create notification for user %s: %w", p.UserID, err)
			}
			if !created {
				continue
			}
			manifest = append(manifest, ManifestEntry{
				UserID:         p.UserID,
				NotificationID: n.ID,
				AttributeType:  p.AttributeType,
				AttributeValue: p.AttributeValue,
			})
		}
		return nil
	})
	if err != nil {
		w.log.Error("entity notification batch rolled back", "kind", e.Kind, "entity_id", e.ID, "error", err)
		return nil, err
	}

	w.log.Info("entity notifications written", "kind", e.Kind, "entity_id", e.ID, "count", len(manifest))
	return manifest, nil
}

// Title is the headline of a match notification.
func Title(kind attributes.EntityKind, t preferences.AttributeType) string {
	return fmt.Sprintf("New %s Matching Your %s Interest", kind.Label(), t.DisplayName())
}

// Content describes which entity matched and through which value.
func Content(e attributes.Entity, p preferences.Preference) string {
	return fmt.Sprintf("%q matches your %s preference %q.", e.Title, p.AttributeType.DisplayName(), p.AttributeValue)
}
