package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"capdev_portal/internal/attributes"
	"capdev_portal/internal/email"
	"capdev_portal/internal/events"
	"capdev_portal/internal/preferences"
	"capdev_portal/internal/users"
	"capdev_portal/platform/logger"

	"github.com/google/uuid"
)

type portalConfig struct{}

func (portalConfig) GetAppBaseURL() string   { return "https://portal.example.org/" }
func (portalConfig) GetSupportEmail() string { return "support@example.org" }

type fakeEntities struct {
	requests      map[uuid.UUID]attributes.Entity
	opportunities []attributes.Entity
}

func (f *fakeEntities) GetRequest(_ context.Context, id uuid.UUID) (attributes.Entity, error) {
	e, ok := f.requests[id]
	if !ok {
		return attributes.Entity{}, errors.New("no such request")
	}
	return e, nil
}

func (f *fakeEntities) GetOpportunity(_ context.Context, id uuid.UUID) (attributes.Entity, error) {
	for _, e := range f.opportunities {
		if e.ID == id {
			return e, nil
		}
	}
	return attributes.Entity{}, errors.New("no such opportunity")
}

func (f *fakeEntities) OpportunitiesSince(_ context.Context, since time.Time) ([]attributes.Entity, error) {
	var out []attributes.Entity
	for _, e := range f.opportunities {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeUsers struct {
	byID   map[uuid.UUID]users.User
	admins []users.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, errors.New("no such user")
	}
	return u, nil
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []uuid.UUID) ([]users.User, error) {
	var out []users.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListAdmins(context.Context) ([]users.User, error) { return f.admins, nil }

type fakeMailer struct {
	sends   []email.SendRequest
	batches []email.BatchRequest
	failFor string
}

func (f *fakeMailer) EnqueueEmail(_ context.Context, req email.SendRequest) error {
	if f.failFor != "" && req.Recipient.Email == f.failFor {
		return errors.New("redis down")
	}
	f.sends = append(f.sends, req)
	return nil
}

func (f *fakeMailer) EnqueueEmailBatch(_ context.Context, req email.BatchRequest) error {
	f.batches = append(f.batches, req)
	return nil
}

type prefFinder struct {
	prefs []preferences.Preference
}

func (f prefFinder) FindByAttribute(_ context.Context, t preferences.AttributeType, value string) ([]preferences.Preference, error) {
	var out []preferences.Preference
	for _, p := range f.prefs {
		if p.AttributeType == t && p.AttributeValue == value {
			out = append(out, p)
		}
	}
	return out, nil
}

type unknownEvent struct{ events.BaseEvent }

func (unknownEvent) EventName() string { return "something.else" }

func newTestModule(store *memoryStore, ents *fakeEntities, dir *fakeUsers, mailer *fakeMailer, finder PreferenceFinder) *Module {
	extractor := attributes.NewExtractor()
	log := logger.Discard()
	return &Module{
		writer:    NewWriter(store, extractor, log),
		finder:    finder,
		extractor: extractor,
		entities:  ents,
		users:     dir,
		mailer:    mailer,
		cfg:       portalConfig{},
		log:       log,
	}
}

func emailPref(user uuid.UUID, value string) preferences.Preference {
	p := subthemePref(user, value, true)
	p.EmailNotificationEnabled = true
	return p
}

func TestHandleInterestExpressedEmailsAdmins(t *testing.T) {
	admin1 := users.User{ID: uuid.New(), Email: "a1@example.org", Name: "Admin One", IsAdmin: true}
	admin2 := users.User{ID: uuid.New(), Email: "a2@example.org", IsAdmin: true}
	mailer := &fakeMailer{}
	m := newTestModule(&memoryStore{}, &fakeEntities{}, &fakeUsers{admins: []users.User{admin1, admin2}}, mailer, prefFinder{})

	oppID := uuid.New()
	err := m.Handle(context.Background(), events.InterestExpressed{
		OpportunityID:    oppID,
		OpportunityTitle: "Coastal fellowship",
		UserName:         "Ana",
		UserEmail:        "ana@example.org",
		Message:          "  ",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(mailer.batches))
	}
	b := mailer.batches[0]
	if b.Event != EmailInterestExpressed || len(b.Recipients) != 2 {
		t.Fatalf("unexpected batch %+v", b)
	}
	if b.Recipients[0].UserID == nil || *b.Recipients[0].UserID != admin1.ID {
		t.Fatalf("recipient user id not carried: %+v", b.Recipients[0])
	}
	if got := b.Variables["opportunity_url"]; got != "https://portal.example.org/opportunities/"+oppID.String() {
		t.Fatalf("opportunity_url = %v", got)
	}
	if _, ok := b.Variables["message"]; ok {
		t.Fatalf("blank message should be omitted")
	}
}

func TestHandleInterestExpressedWithoutAdminsIsNoop(t *testing.T) {
	mailer := &fakeMailer{}
	m := newTestModule(&memoryStore{}, &fakeEntities{}, &fakeUsers{}, mailer, prefFinder{})

	if err := m.Handle(context.Background(), events.InterestExpressed{OpportunityID: uuid.New()}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.batches) != 0 {
		t.Fatalf("expected no batch")
	}
}

func TestHandleOfferMadeEmailsRequestCreator(t *testing.T) {
	creator := users.User{ID: uuid.New(), Email: "owner@example.org", Name: "Owner"}
	req := requestEntity(creator.ID, "Ocean acidification")
	mailer := &fakeMailer{}
	m := newTestModule(&memoryStore{},
		&fakeEntities{requests: map[uuid.UUID]attributes.Entity{req.ID: req}},
		&fakeUsers{byID: map[uuid.UUID]users.User{creator.ID: creator}},
		mailer, prefFinder{})

	offerID := uuid.New()
	err := m.Handle(context.Background(), events.OfferMade{
		RequestID:   req.ID,
		OfferID:     offerID,
		PartnerName: "Blue Institute",
		Description: "<p>Two trainers</p>",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.sends) != 1 {
		t.Fatalf("expected one send, got %d", len(mailer.sends))
	}
	s := mailer.sends[0]
	if s.Event != EmailOfferMade || s.Recipient.Email != creator.Email {
		t.Fatalf("unexpected send %+v", s)
	}
	if s.Variables["request_url"] != "https://portal.example.org/requests/"+req.ID.String() {
		t.Fatalf("request_url = %v", s.Variables["request_url"])
	}
	if s.Variables["offer_description"] != "<p>Two trainers</p>" {
		t.Fatalf("offer_description = %v", s.Variables["offer_description"])
	}
	if s.Options.Metadata["offer_id"] != offerID.String() {
		t.Fatalf("metadata = %v", s.Options.Metadata)
	}
}

func TestHandleOfferMadeUnknownRequestFails(t *testing.T) {
	m := newTestModule(&memoryStore{}, &fakeEntities{}, &fakeUsers{}, &fakeMailer{}, prefFinder{})

	if err := m.Handle(context.Background(), events.OfferMade{RequestID: uuid.New()}); err == nil {
		t.Fatalf("expected error for missing request")
	}
}

func TestHandleRequestSubmittedWritesInAppNotifications(t *testing.T) {
	creator, interested := uuid.New(), uuid.New()
	req := requestEntity(creator, "Ocean acidification")
	store := &memoryStore{prefs: []preferences.Preference{subthemePref(interested, "Ocean acidification", true)}}
	m := newTestModule(store, &fakeEntities{requests: map[uuid.UUID]attributes.Entity{req.ID: req}}, &fakeUsers{}, &fakeMailer{}, prefFinder{})

	if err := m.Handle(context.Background(), events.RequestSubmitted{RequestID: req.ID, CreatorID: creator}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.notifications) != 1 || store.notifications[0].UserID != interested {
		t.Fatalf("unexpected notifications %+v", store.notifications)
	}
}

func TestHandleUnknownEventIsIgnored(t *testing.T) {
	m := newTestModule(&memoryStore{}, &fakeEntities{}, &fakeUsers{}, &fakeMailer{}, prefFinder{})

	if err := m.Handle(context.Background(), unknownEvent{}); err != nil {
		t.Fatalf("unknown event should be ignored, got %v", err)
	}
}

func opportunityEntity(creator uuid.UUID, created time.Time, title string, subthemes ...string) attributes.Entity {
	return attributes.Entity{
		Kind:      attributes.KindOpportunity,
		ID:        uuid.New(),
		CreatorID: creator,
		Title:     title,
		CreatedAt: created,
		Sources:   []attributes.AttributeSource{attributes.NewRelationalSource(attributes.Detail{Subthemes: subthemes})},
	}
}

func TestRunWeeklyOpportunityDigestGroupsByUser(t *testing.T) {
	since := time.Date(2026, 10, 5, 8, 0, 0, 0, time.UTC)
	partner := uuid.New()
	alice := users.User{ID: uuid.New(), Email: "alice@example.org", Name: "Alice"}
	bob := users.User{ID: uuid.New(), Email: "bob@example.org", Name: "Bob"}
	muted := users.User{ID: uuid.New(), Email: "muted@example.org"}

	ents := &fakeEntities{opportunities: []attributes.Entity{
		opportunityEntity(partner, since.Add(24*time.Hour), "Reef survey", "Coral reefs"),
		opportunityEntity(partner, since.Add(48*time.Hour), "Sea level course", "Sea level"),
		opportunityEntity(partner, since.Add(-time.Hour), "Old call", "Coral reefs"),
	}}
	mutedPref := subthemePref(muted.ID, "Coral reefs", true)
	finder := prefFinder{prefs: []preferences.Preference{
		emailPref(alice.ID, "Coral reefs"),
		emailPref(alice.ID, "Sea level"),
		emailPref(bob.ID, "Sea level"),
		mutedPref,
	}}
	dir := &fakeUsers{byID: map[uuid.UUID]users.User{alice.ID: alice, bob.ID: bob, muted.ID: muted}}
	mailer := &fakeMailer{}
	m := newTestModule(&memoryStore{}, ents, dir, mailer, finder)

	queued, err := m.RunWeeklyOpportunityDigest(context.Background(), since)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if queued != 2 || len(mailer.sends) != 2 {
		t.Fatalf("expected 2 digests, got queued=%d sends=%d", queued, len(mailer.sends))
	}

	first := mailer.sends[0]
	if first.Recipient.Email != alice.Email || first.Event != EmailWeeklyOpportunities {
		t.Fatalf("unexpected first digest %+v", first)
	}
	if first.Variables["opportunity_count"] != 2 {
		t.Fatalf("alice count = %v", first.Variables["opportunity_count"])
	}
	if first.Variables["period_start"] != "2026-10-05" {
		t.Fatalf("period_start = %v", first.Variables["period_start"])
	}
	if first.Variables["unsubscribe_url"] != "https://portal.example.org/preferences" {
		t.Fatalf("unsubscribe_url = %v", first.Variables["unsubscribe_url"])
	}
	list, ok := first.Variables["opportunities"].([]map[string]any)
	if !ok || len(list) != 2 {
		t.Fatalf("opportunities = %#v", first.Variables["opportunities"])
	}
	if list[0]["title"] != "Reef survey" || !strings.Contains(list[0]["matched"].(string), "Coral reefs") {
		t.Fatalf("unexpected first item %v", list[0])
	}

	if mailer.sends[1].Recipient.Email != bob.Email || mailer.sends[1].Variables["opportunity_count"] != 1 {
		t.Fatalf("unexpected second digest %+v", mailer.sends[1])
	}
}

func TestRunWeeklyOpportunityDigestReportsEnqueueFailures(t *testing.T) {
	since := time.Date(2026, 10, 5, 8, 0, 0, 0, time.UTC)
	alice := users.User{ID: uuid.New(), Email: "alice@example.org"}
	bob := users.User{ID: uuid.New(), Email: "bob@example.org"}
	ents := &fakeEntities{opportunities: []attributes.Entity{
		opportunityEntity(uuid.New(), since.Add(time.Hour), "Reef survey", "Coral reefs"),
	}}
	finder := prefFinder{prefs: []preferences.Preference{
		emailPref(alice.ID, "Coral reefs"),
		emailPref(bob.ID, "Coral reefs"),
	}}
	mailer := &fakeMailer{failFor: alice.Email}
	m := newTestModule(&memoryStore{}, ents, &fakeUsers{byID: map[uuid.UUID]users.User{alice.ID: alice, bob.ID: bob}}, mailer, finder)

	queued, err := m.RunWeeklyOpportunityDigest(context.Background(), since)
	if err == nil || !strings.Contains(err.Error(), alice.Email) {
		t.Fatalf("expected joined error naming alice, got %v", err)
	}
	if queued != 1 || len(mailer.sends) != 1 || mailer.sends[0].Recipient.Email != bob.Email {
		t.Fatalf("bob should still be queued, queued=%d sends=%+v", queued, mailer.sends)
	}
}

func TestRunWeeklyOpportunityDigestWithNothingNew(t *testing.T) {
	mailer := &fakeMailer{}
	m := newTestModule(&memoryStore{}, &fakeEntities{}, &fakeUsers{}, mailer, prefFinder{})

	queued, err := m.RunWeeklyOpportunityDigest(context.Background(), time.Now())
	if err != nil || queued != 0 || len(mailer.sends) != 0 {
		t.Fatalf("expected empty digest, got queued=%d err=%v", queued, err)
	}
}

func TestRematchWritesNotificationsForKind(t *testing.T) {
	creator, interested := uuid.New(), uuid.New()
	opp := opportunityEntity(creator, time.Now(), "Reef survey", "Coral reefs")
	store := &memoryStore{prefs: []preferences.Preference{subthemePref(interested, "Coral reefs", true)}}
	m := newTestModule(store, &fakeEntities{opportunities: []attributes.Entity{opp}}, &fakeUsers{}, &fakeMailer{}, prefFinder{})

	manifest, err := m.Rematch(context.Background(), attributes.KindOpportunity, opp.ID)
	if err != nil {
		t.Fatalf("rematch: %v", err)
	}
	if len(manifest) != 1 || manifest[0].UserID != interested {
		t.Fatalf("unexpected manifest %+v", manifest)
	}

	if _, err := m.Rematch(context.Background(), attributes.EntityKind("partner"), opp.ID); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRematchAfterSubmitDoesNotDuplicate(t *testing.T) {
	creator, interested := uuid.New(), uuid.New()
	req := requestEntity(creator, "Ocean acidification")
	store := &memoryStore{prefs: []preferences.Preference{subthemePref(interested, "Ocean acidification", true)}}
	m := newTestModule(store, &fakeEntities{requests: map[uuid.UUID]attributes.Entity{req.ID: req}}, &fakeUsers{}, &fakeMailer{}, prefFinder{})

	if err := m.Handle(context.Background(), events.RequestSubmitted{RequestID: req.ID, CreatorID: creator}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	manifest, err := m.Rematch(context.Background(), attributes.KindRequest, req.ID)
	if err != nil {
		t.Fatalf("rematch: %v", err)
	}
	if len(manifest) != 0 {
		t.Fatalf("expected no new notifications on rematch, got %+v", manifest)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected one notification after submit and rematch, got %d", len(store.notifications))
	}
}
