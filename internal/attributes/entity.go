// Package attributes turns requests and opportunities into the attribute map
// the preference matcher consumes.
package attributes

import (
	"time"

	"capdev_portal/internal/preferences"

	"github.com/google/uuid"
)

// EntityKind distinguishes the two matchable entity families.
type EntityKind string

const (
	KindRequest     EntityKind = "request"
	KindOpportunity EntityKind = "opportunity"
)

// Label is the capitalized kind used in notification copy.
func (k EntityKind) Label() string {
	switch k {
	case KindOpportunity:
		return "Opportunity"
	default:
		return "Request"
	}
}

// Entity is a request or opportunity with its attribute sources in priority
// order. Normalized detail rows come before the legacy JSON blob.
type Entity struct {
	Kind      EntityKind
	ID        uuid.UUID
	CreatorID uuid.UUID
	Title     string
	CreatedAt time.Time
	Sources   []AttributeSource
}

// AttributeSource yields raw attribute values from one backing store.
type AttributeSource interface {
	// Lookup returns the raw values stored for t. Funding is not served here.
	Lookup(t preferences.AttributeType) []string
	// FundingRange returns the stored funding bounds. ok is false when no
	// maximum is stored, since the band is derived from it.
	FundingRange() (lo, hi float64, ok bool)
}

// Attributes maps each populated dimension to its values.
type Attributes map[preferences.AttributeType][]string
