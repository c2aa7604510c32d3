package notification

import (
	"context"
	"errors"
	"testing"

	"capdev_portal/internal/attributes"
	"capdev_portal/internal/notification/inapp"
	"capdev_portal/internal/preferences"
	"capdev_portal/platform/logger"

	"github.com/google/uuid"
)

// memoryStore commits notifications only when the transaction body succeeds.
type memoryStore struct {
	prefs         []preferences.Preference
	notifications []inapp.Notification
	failOnInsert  int
}

type memoryTx struct {
	store   *memoryStore
	pending []inapp.Notification
}

func (s *memoryStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.notifications = append(s.notifications, tx.pending...)
	return nil
}

func (t *memoryTx) FindByAttribute(_ context.Context, at preferences.AttributeType, value string) ([]preferences.Preference, error) {
	var out []preferences.Preference
	for _, p := range t.store.prefs {
		if p.AttributeType == at && p.AttributeValue == value {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) CreateNotification(_ context.Context, p inapp.CreateParams) (inapp.Notification, bool, error) {
	if t.store.failOnInsert > 0 && len(t.pending)+1 == t.store.failOnInsert {
		return inapp.Notification{}, false, errors.New("insert failed")
	}
	for _, existing := range append(t.store.notifications, t.pending...) {
		if existing.UserID == p.UserID && existing.Category == p.Category && sameResource(existing.ResourceID, p.ResourceID) {
			return inapp.Notification{}, false, nil
		}
	}
	n := inapp.Notification{ID: uuid.New(), UserID: p.UserID, Title: p.Title, Content: p.Content, ResourceID: p.ResourceID, Category: p.Category}
	t.pending = append(t.pending, n)
	return n, true, nil
}

func sameResource(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

func subthemePref(user uuid.UUID, value string, enabled bool) preferences.Preference {
	return preferences.Preference{
		ID:                  uuid.New(),
		UserID:              user,
		AttributeType:       preferences.TypeSubtheme,
		AttributeValue:      value,
		NotificationEnabled: enabled,
	}
}

func requestEntity(creator uuid.UUID, subthemes ...string) attributes.Entity {
	return attributes.Entity{
		Kind:      attributes.KindRequest,
		ID:        uuid.New(),
		CreatorID: creator,
		Title:     "Ocean monitoring training",
		Sources:   []attributes.AttributeSource{attributes.NewRelationalSource(attributes.Detail{Subthemes: subthemes})},
	}
}

func TestNotifyForEntityOnlyNotifiesEnabledNonCreator(t *testing.T) {
	creator, interested, muted := uuid.New(), uuid.New(), uuid.New()
	store := &memoryStore{prefs: []preferences.Preference{
		subthemePref(creator, "Ocean acidification", true),
		subthemePref(interested, "Ocean acidification", true),
		subthemePref(muted, "Ocean acidification", false),
	}}
	w := NewWriter(store, attributes.NewExtractor(), logger.Discard())

	manifest, err := w.NotifyForEntity(context.Background(), requestEntity(creator, "Ocean acidification"))
	if err != nil {
		t.Fatalf("NotifyForEntity: %v", err)
	}

	if len(store.notifications) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(store.notifications))
	}
	n := store.notifications[0]
	if n.UserID != interested {
		t.Fatalf("expected notification for interested user, got %s", n.UserID)
	}
	if n.Title != "New Request Matching Your Subtheme Interest" {
		t.Fatalf("unexpected title %q", n.Title)
	}
	if len(manifest) != 1 || manifest[0].NotificationID != n.ID || manifest[0].AttributeValue != "Ocean acidification" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
}

func TestNotifyForEntityRollsBackOnInsertFailure(t *testing.T) {
	store := &memoryStore{
		prefs: []preferences.Preference{
			subthemePref(uuid.New(), "Coral reefs", true),
			subthemePref(uuid.New(), "Coral reefs", true),
		},
		failOnInsert: 2,
	}
	w := NewWriter(store, attributes.NewExtractor(), logger.Discard())

	manifest, err := w.NotifyForEntity(context.Background(), requestEntity(uuid.New(), "Coral reefs"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if manifest != nil {
		t.Fatalf("expected no manifest on failure, got %+v", manifest)
	}
	if len(store.notifications) != 0 {
		t.Fatalf("expected rollback to discard all notifications, got %d", len(store.notifications))
	}
}

func TestNotifyForEntityTwiceWritesOnce(t *testing.T) {
	interested := uuid.New()
	store := &memoryStore{prefs: []preferences.Preference{subthemePref(interested, "Coral reefs", true)}}
	w := NewWriter(store, attributes.NewExtractor(), logger.Discard())
	e := requestEntity(uuid.New(), "Coral reefs")

	first, err := w.NotifyForEntity(context.Background(), e)
	if err != nil || len(first) != 1 {
		t.Fatalf("first run: manifest=%+v err=%v", first, err)
	}
	second, err := w.NotifyForEntity(context.Background(), e)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected already-notified user to be left out, got %+v", second)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(store.notifications))
	}
}

func TestNotifyForEntityWithoutAttributesWritesNothing(t *testing.T) {
	store := &memoryStore{prefs: []preferences.Preference{subthemePref(uuid.New(), "X", true)}}
	w := NewWriter(store, attributes.NewExtractor(), logger.Discard())

	manifest, err := w.NotifyForEntity(context.Background(), requestEntity(uuid.New()))
	if err != nil || len(manifest) != 0 {
		t.Fatalf("expected empty manifest, got %v, %v", manifest, err)
	}
}

func TestTitleForOpportunity(t *testing.T) {
	got := Title(attributes.KindOpportunity, preferences.TypeFundingAmountRange)
	if got != "New Opportunity Matching Your Funding Amount Range Interest" {
		t.Fatalf("unexpected title %q", got)
	}
}
