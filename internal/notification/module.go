// Package notification reacts to marketplace events: it writes in-app match
// notifications and queues the transactional emails that follow from them.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"capdev_portal/internal/attributes"
	"capdev_portal/internal/email"
	"capdev_portal/internal/entities"
	"capdev_portal/internal/events"
	apphttp "capdev_portal/internal/http"
	notifhandler "capdev_portal/internal/notification/handler"
	"capdev_portal/internal/notification/inapp"
	"capdev_portal/internal/preferences"
	"capdev_portal/internal/users"
	"capdev_portal/platform/config"
	"capdev_portal/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Email events queued by this module. Each has an entry in the template catalog.
const (
	EmailInterestExpressed   = "interest_expressed"
	EmailOfferMade           = "offer_made"
	EmailWeeklyOpportunities = "weekly_opportunities"
)

// EntityLoader reads matchable entities.
type EntityLoader interface {
	GetRequest(ctx context.Context, id uuid.UUID) (attributes.Entity, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (attributes.Entity, error)
	OpportunitiesSince(ctx context.Context, since time.Time) ([]attributes.Entity, error)
}

// UserDirectory resolves recipients.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (users.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]users.User, error)
	ListAdmins(ctx context.Context) ([]users.User, error)
}

// EmailEnqueuer hands emails to the queue for asynchronous delivery.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, req email.SendRequest) error
	EnqueueEmailBatch(ctx context.Context, req email.BatchRequest) error
}

// Module handles marketplace event subscriptions and the inbox routes.
type Module struct {
	writer       *Writer
	finder       PreferenceFinder
	extractor    *attributes.Extractor
	entities     EntityLoader
	users        UserDirectory
	mailer       EmailEnqueuer
	cfg          config.PortalConfig
	log          *logger.Logger
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
}

// New wires the module against Postgres.
func New(pool *pgxpool.Pool, mailer EmailEnqueuer, cfg config.PortalConfig, log *logger.Logger) *Module {
	extractor := attributes.NewExtractor()
	inAppSvc := inapp.NewService(inapp.NewRepository(pool))

	return &Module{
		writer:       NewWriter(NewPgStore(pool), extractor, log),
		finder:       preferences.NewRepository(pool),
		extractor:    extractor,
		entities:     entities.NewRepository(pool, log),
		users:        users.NewRepository(pool),
		mailer:       mailer,
		cfg:          cfg,
		log:          log,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.inAppHandler == nil {
		return
	}

	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)

	ctx.Admin.POST("/notifications/rematch/:kind/:id", m.handleRematch)
}

// InAppService exposes the in-app notification service for integration points.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.RequestSubmitted{}.EventName(), m)
	bus.Subscribe(events.OpportunityPublished{}.EventName(), m)
	bus.Subscribe(events.InterestExpressed{}.EventName(), m)
	bus.Subscribe(events.OfferMade{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.RequestSubmitted:
		return m.handleRequestSubmitted(ctx, e)
	case events.OpportunityPublished:
		return m.handleOpportunityPublished(ctx, e)
	case events.InterestExpressed:
		return m.handleInterestExpressed(ctx, e)
	case events.OfferMade:
		return m.handleOfferMade(ctx, e)
	default:
		m.log.Warn("notification module received unknown event", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleRequestSubmitted(ctx context.Context, e events.RequestSubmitted) error {
	entity, err := m.entities.GetRequest(ctx, e.RequestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", e.RequestID, err)
	}
	_, err = m.writer.NotifyForEntity(ctx, entity)
	return err
}

func (m *Module) handleOpportunityPublished(ctx context.Context, e events.OpportunityPublished) error {
	entity, err := m.entities.GetOpportunity(ctx, e.OpportunityID)
	if err != nil {
		return fmt.Errorf("load opportunity %s: %w", e.OpportunityID, err)
	}
	_, err = m.writer.NotifyForEntity(ctx, entity)
	return err
}

func (m *Module) handleInterestExpressed(ctx context.Context, e events.InterestExpressed) error {
	admins, err := m.users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		m.log.Warn("no admins to notify of interest", "opportunity_id", e.OpportunityID)
		return nil
	}

	recipients := make([]email.Recipient, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, recipient(a))
	}

	vars := map[string]any{
		"opportunity_title":     e.OpportunityTitle,
		"opportunity_url":       m.buildURL("/opportunities/" + e.OpportunityID.String()),
		"interested_user_name":  e.UserName,
		"interested_user_email": e.UserEmail,
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		vars["message"] = msg
	}

	return m.mailer.EnqueueEmailBatch(ctx, email.BatchRequest{
		Event:      EmailInterestExpressed,
		Recipients: recipients,
		Variables:  vars,
		Options: email.SendOptions{
			Metadata: map[string]string{"opportunity_id": e.OpportunityID.String()},
		},
	})
}

func (m *Module) handleOfferMade(ctx context.Context, e events.OfferMade) error {
	req, err := m.entities.GetRequest(ctx, e.RequestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", e.RequestID, err)
	}
	creator, err := m.users.GetByID(ctx, req.CreatorID)
	if err != nil {
		return fmt.Errorf("load request creator %s: %w", req.CreatorID, err)
	}

	vars := map[string]any{
		"request_title": req.Title,
		"request_url":   m.buildURL("/requests/" + req.ID.String()),
		"partner_name":  e.PartnerName,
	}
	if d := strings.TrimSpace(e.Description); d != "" {
		vars["offer_description"] = d
	}

	return m.mailer.EnqueueEmail(ctx, email.SendRequest{
		Event:     EmailOfferMade,
		Recipient: recipient(creator),
		Variables: vars,
		Options: email.SendOptions{
			Metadata: map[string]string{"request_id": req.ID.String(), "offer_id": e.OfferID.String()},
		},
	})
}

func (m *Module) buildURL(path string) string {
	base := ""
	if m.cfg != nil {
		base = strings.TrimRight(m.cfg.GetAppBaseURL(), "/")
	}
	return base + path
}

func recipient(u users.User) email.Recipient {
	id := u.ID
	return email.Recipient{Email: u.Email, Name: u.Name, UserID: &id}
}
