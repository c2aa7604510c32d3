// Package matching resolves the recipients of an entity from stored preferences.
package matching

import (
	"context"
	"fmt"

	"capdev_portal/internal/attributes"
	"capdev_portal/internal/preferences"

	"github.com/google/uuid"
)

// Finder looks up all preferences stored for one (type, value) pair.
type Finder interface {
	FindByAttribute(ctx context.Context, t preferences.AttributeType, value string) ([]preferences.Preference, error)
}

// Channel selects which per-preference switch gates a match.
type Channel int

const (
	ChannelInApp Channel = iota
	ChannelEmail
)

func (c Channel) enabled(p preferences.Preference) bool {
	if c == ChannelEmail {
		return p.EmailNotificationEnabled
	}
	return p.NotificationEnabled
}

type Matcher struct {
	finder Finder
}

func NewMatcher(finder Finder) *Matcher {
	return &Matcher{finder: finder}
}

// Match returns one preference per user interested in the entity over the
// in-app channel. The first matching preference per user is kept and the
// entity creator is never included.
func (m *Matcher) Match(ctx context.Context, e attributes.Entity, attrs attributes.Attributes) ([]preferences.Preference, error) {
	return m.match(ctx, e, attrs, ChannelInApp)
}

// MatchEmail applies the same rules over the email channel.
func (m *Matcher) MatchEmail(ctx context.Context, e attributes.Entity, attrs attributes.Attributes) ([]preferences.Preference, error) {
	return m.match(ctx, e, attrs, ChannelEmail)
}

func (m *Matcher) match(ctx context.Context, e attributes.Entity, attrs attributes.Attributes, ch Channel) ([]preferences.Preference, error) {
	seen := make(map[uuid.UUID]struct{})
	out := make([]preferences.Preference, 0)

	for _, t := range preferences.Dimensions {
		for _, value := range attrs[t] {
			prefs, err := m.finder.FindByAttribute(ctx, t, value)
			if err != nil {
				return nil, fmt.Errorf("find preferences for %s=%q: %w", t, value, err)
			}
			for _, p := range prefs {
				if !ch.enabled(p) || p.UserID == e.CreatorID {
					continue
				}
				if _, dup := seen[p.UserID]; dup {
					continue
				}
				seen[p.UserID] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out, nil
}
