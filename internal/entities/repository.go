// Package entities loads requests and opportunities together with their
// attribute sources.
package entities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capdev_portal/internal/attributes"
	"capdev_portal/platform/apperr"
	"capdev_portal/platform/db"
	"capdev_portal/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	opGetRequest        = "entities.repository.get_request"
	opGetOpportunity    = "entities.repository.get_opportunity"
	opOpportunitiesFrom = "entities.repository.opportunities_since"

	errRepoNotConfigured = "entity repository not configured"
)

const requestSelect = `
	SELECT e.id, e.creator_id, e.title, e.legacy_attributes, e.created_at,
		d.request_id IS NOT NULL,
		d.subthemes, d.subthemes_other, d.coverage_activity, d.implementation_location,
		d.target_audiences, d.support_types, d.priority_level,
		d.funding_min::float8, d.funding_max::float8
	FROM requests e
	LEFT JOIN request_details d ON d.request_id = e.id`

const opportunitySelect = `
	SELECT e.id, e.creator_id, e.title, e.legacy_attributes, e.created_at,
		d.opportunity_id IS NOT NULL,
		d.subthemes, NULL::text, d.coverage_activity, d.implementation_location,
		d.target_audiences, d.support_types, d.priority_level,
		d.funding_min::float8, d.funding_max::float8
	FROM opportunities e
	LEFT JOIN opportunity_details d ON d.opportunity_id = e.id`

type Repository struct {
	q   db.Querier
	log *logger.Logger
}

func NewRepository(q db.Querier, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.Discard()
	}
	return &Repository{q: q, log: log}
}

func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (attributes.Entity, error) {
	return r.get(ctx, attributes.KindRequest, requestSelect+` WHERE e.id = $1`, id, opGetRequest)
}

func (r *Repository) GetOpportunity(ctx context.Context, id uuid.UUID) (attributes.Entity, error) {
	return r.get(ctx, attributes.KindOpportunity, opportunitySelect+` WHERE e.id = $1`, id, opGetOpportunity)
}

// OpportunitiesSince lists opportunities created at or after since, oldest first.
func (r *Repository) OpportunitiesSince(ctx context.Context, since time.Time) ([]attributes.Entity, error) {
	if r == nil || r.q == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opOpportunitiesFrom)
	}

	rows, err := r.q.Query(ctx, opportunitySelect+` WHERE e.created_at >= $1 ORDER BY e.created_at, e.id`, since)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list opportunities: %v", err)).WithOp(opOpportunitiesFrom)
	}
	defer rows.Close()

	var out []attributes.Entity
	for rows.Next() {
		e, err := r.scanEntity(rows, attributes.KindOpportunity)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan opportunity: %v", err)).WithOp(opOpportunitiesFrom)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate opportunities: %v", err)).WithOp(opOpportunitiesFrom)
	}
	return out, nil
}

func (r *Repository) get(ctx context.Context, kind attributes.EntityKind, query string, id uuid.UUID, op string) (attributes.Entity, error) {
	if r == nil || r.q == nil {
		return attributes.Entity{}, apperr.Internal(errRepoNotConfigured).WithOp(op)
	}

	e, err := r.scanEntity(r.q.QueryRow(ctx, query, id), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return attributes.Entity{}, apperr.NotFound(kind.Label() + " not found").WithOp(op)
	}
	if err != nil {
		return attributes.Entity{}, apperr.Internal(fmt.Sprintf("get %s: %v", kind, err)).WithOp(op)
	}
	return e, nil
}

// scanEntity reads one row and orders its sources: detail row first, then the
// legacy blob. A legacy blob that does not decode is skipped with a warning.
func (r *Repository) scanEntity(row pgx.Row, kind attributes.EntityKind) (attributes.Entity, error) {
	var (
		e         attributes.Entity
		legacy    []byte
		hasDetail bool
		d         attributes.Detail
	)
	err := row.Scan(
		&e.ID, &e.CreatorID, &e.Title, &legacy, &e.CreatedAt,
		&hasDetail,
		&d.Subthemes, &d.SubthemesOther, &d.CoverageActivity, &d.ImplementationLocation,
		&d.TargetAudiences, &d.SupportTypes, &d.PriorityLevel,
		&d.FundingMin, &d.FundingMax,
	)
	if err != nil {
		return attributes.Entity{}, err
	}

	e.Kind = kind
	if hasDetail {
		e.Sources = append(e.Sources, attributes.NewRelationalSource(d))
	}
	if len(legacy) > 0 {
		src, err := attributes.NewJSONSource(kind, legacy)
		if err != nil {
			r.log.Warn("skipping undecodable legacy attributes", "kind", kind, "entity_id", e.ID, "error", err)
		} else {
			e.Sources = append(e.Sources, src)
		}
	}
	return e, nil
}
