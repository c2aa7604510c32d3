// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"capdev_portal/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Marketplace Domain Events
// =============================================================================

// RequestSubmitted is published when a capacity-development request is
// created or its matchable details change.
type RequestSubmitted struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	CreatorID uuid.UUID `json:"creatorId"`
}

func (e RequestSubmitted) EventName() string { return "request.submitted" }

// OpportunityPublished is published when a partner opportunity goes live.
type OpportunityPublished struct {
	BaseEvent
	OpportunityID uuid.UUID `json:"opportunityId"`
	CreatorID     uuid.UUID `json:"creatorId"`
}

func (e OpportunityPublished) EventName() string { return "opportunity.published" }

// InterestExpressed is published when a user expresses interest in an
// opportunity. Admins are notified by email.
type InterestExpressed struct {
	BaseEvent
	OpportunityID    uuid.UUID `json:"opportunityId"`
	OpportunityTitle string    `json:"opportunityTitle"`
	UserID           uuid.UUID `json:"userId"`
	UserName         string    `json:"userName"`
	UserEmail        string    `json:"userEmail"`
	Message          string    `json:"message"`
}

func (e InterestExpressed) EventName() string { return "opportunity.interest_expressed" }

// OfferMade is published when a partner offers support on a request.
type OfferMade struct {
	BaseEvent
	RequestID   uuid.UUID `json:"requestId"`
	OfferID     uuid.UUID `json:"offerId"`
	PartnerName string    `json:"partnerName"`
	Description string    `json:"description"`
}

func (e OfferMade) EventName() string { return "request.offer_made" }
