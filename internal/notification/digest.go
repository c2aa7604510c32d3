package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"capdev_portal/internal/email"
	"capdev_portal/internal/matching"

	"github.com/google/uuid"
)

// PreferenceFinder is the non-transactional preference lookup used by the digest.
type PreferenceFinder = matching.Finder

type digestItem struct {
	title   string
	url     string
	matched string
}

// RunWeeklyOpportunityDigest queues one weekly_opportunities email per user
// whose email-enabled preferences match opportunities created since the
// cutoff. It returns the number of emails queued. Users that fail to enqueue
// are skipped and reported together.
func (m *Module) RunWeeklyOpportunityDigest(ctx context.Context, since time.Time) (int, error) {
	opportunities, err := m.entities.OpportunitiesSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list opportunities since %s: %w", since.Format(time.RFC3339), err)
	}
	if len(opportunities) == 0 {
		return 0, nil
	}

	matcher := matching.NewMatcher(m.finder)
	byUser := make(map[uuid.UUID][]digestItem)
	var order []uuid.UUID

	for _, opp := range opportunities {
		attrs := m.extractor.Extract(opp)
		if len(attrs) == 0 {
			continue
		}
		matches, err := matcher.MatchEmail(ctx, opp, attrs)
		if err != nil {
			return 0, fmt.Errorf("match opportunity %s: %w", opp.ID, err)
		}
		for _, p := range matches {
			if _, seen := byUser[p.UserID]; !seen {
				order = append(order, p.UserID)
			}
			byUser[p.UserID] = append(byUser[p.UserID], digestItem{
				title:   opp.Title,
				url:     m.buildURL("/opportunities/" + opp.ID.String()),
				matched: p.AttributeType.DisplayName() + ": " + p.AttributeValue,
			})
		}
	}
	if len(order) == 0 {
		return 0, nil
	}

	recipients, err := m.users.GetByIDs(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("load digest recipients: %w", err)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].Email < recipients[j].Email })

	var errs error
	queued := 0
	for _, u := range recipients {
		items := byUser[u.ID]
		list := make([]map[string]any, 0, len(items))
		for _, it := range items {
			list = append(list, map[string]any{"title": it.title, "url": it.url, "matched": it.matched})
		}

		err := m.mailer.EnqueueEmail(ctx, email.SendRequest{
			Event:     EmailWeeklyOpportunities,
			Recipient: recipient(u),
			Variables: map[string]any{
				"opportunities":     list,
				"opportunity_count": len(list),
				"period_start":      since.UTC().Format("2006-01-02"),
				"unsubscribe_url":   m.buildURL("/preferences"),
			},
		})
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("enqueue digest for %s: %w", u.Email, err))
			continue
		}
		queued++
	}

	m.log.Info("weekly digest built", "opportunities", len(opportunities), "recipients", len(recipients), "queued", queued)
	return queued, errs
}
