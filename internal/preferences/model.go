// Package preferences stores which attribute values each user wants to hear about.
package preferences

import (
	"time"

	"github.com/google/uuid"
)

// AttributeType names one matchable dimension of a request or opportunity.
type AttributeType string

const (
	TypeSubtheme               AttributeType = "subtheme"
	TypeCoverageActivity       AttributeType = "coverage_activity"
	TypeImplementationLocation AttributeType = "implementation_location"
	TypeTargetAudience         AttributeType = "target_audience"
	TypeSupportType            AttributeType = "support_type"
	TypePriorityLevel          AttributeType = "priority_level"
	TypeFundingAmountRange     AttributeType = "funding_amount_range"
)

// Dimensions lists every attribute type in canonical matching order.
var Dimensions = []AttributeType{
	TypeSubtheme,
	TypeCoverageActivity,
	TypeImplementationLocation,
	TypeTargetAudience,
	TypeSupportType,
	TypePriorityLevel,
	TypeFundingAmountRange,
}

var displayNames = map[AttributeType]string{
	TypeSubtheme:               "Subtheme",
	TypeCoverageActivity:       "Coverage Activity",
	TypeImplementationLocation: "Implementation Location",
	TypeTargetAudience:         "Target Audience",
	TypeSupportType:            "Support Type",
	TypePriorityLevel:          "Priority Level",
	TypeFundingAmountRange:     "Funding Amount Range",
}

// Valid reports whether t is a known attribute type.
func (t AttributeType) Valid() bool {
	_, ok := displayNames[t]
	return ok
}

// DisplayName is the human label used in notification titles.
func (t AttributeType) DisplayName() string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// MultiValued reports whether an entity can carry more than one value for t.
func (t AttributeType) MultiValued() bool {
	switch t {
	case TypeSubtheme, TypeTargetAudience, TypeSupportType:
		return true
	default:
		return false
	}
}

// Preference is one (type, value) interest of a user with per-channel switches.
type Preference struct {
	ID                       uuid.UUID     `json:"id"`
	UserID                   uuid.UUID     `json:"userId"`
	AttributeType            AttributeType `json:"attributeType"`
	AttributeValue           string        `json:"attributeValue"`
	NotificationEnabled      bool          `json:"notificationEnabled"`
	EmailNotificationEnabled bool          `json:"emailNotificationEnabled"`
	CreatedAt                time.Time     `json:"createdAt"`
	UpdatedAt                time.Time     `json:"updatedAt"`
}

// UpsertParams creates or updates the preference identified by
// (UserID, AttributeType, AttributeValue).
type UpsertParams struct {
	UserID                   uuid.UUID
	AttributeType            AttributeType
	AttributeValue           string
	NotificationEnabled      bool
	EmailNotificationEnabled bool
}
