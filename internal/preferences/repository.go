package preferences

import (
	"context"
	"errors"
	"fmt"

	"capdev_portal/platform/apperr"
	"capdev_portal/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	opUpsert          = "preferences.repository.upsert"
	opDelete          = "preferences.repository.delete"
	opListForUser     = "preferences.repository.list_for_user"
	opFindByAttribute = "preferences.repository.find_by_attribute"

	errRepoNotConfigured = "preference repository not configured"

	preferenceColumns = `id, user_id, attribute_type, attribute_value, notification_enabled, email_notification_enabled, created_at, updated_at`
)

// Repository reads and writes user_preferences. It runs on a pool or inside
// a transaction depending on the Querier it is built with.
type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Upsert(ctx context.Context, p UpsertParams) (Preference, error) {
	if r == nil || r.q == nil {
		return Preference{}, apperr.Internal(errRepoNotConfigured).WithOp(opUpsert)
	}
	if p.UserID == uuid.Nil {
		return Preference{}, apperr.Validation("userId is required").WithOp(opUpsert)
	}
	if !p.AttributeType.Valid() {
		return Preference{}, apperr.Validation("unknown attribute type").WithOp(opUpsert)
	}
	if p.AttributeValue == "" {
		return Preference{}, apperr.Validation("attribute value is required").WithOp(opUpsert)
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO user_preferences
		(user_id, attribute_type, attribute_value, notification_enabled, email_notification_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, attribute_type, attribute_value) DO UPDATE
		SET notification_enabled = EXCLUDED.notification_enabled,
		    email_notification_enabled = EXCLUDED.email_notification_enabled,
		    updated_at = now()
		RETURNING `+preferenceColumns,
		p.UserID, string(p.AttributeType), p.AttributeValue, p.NotificationEnabled, p.EmailNotificationEnabled)

	pref, err := scanPreference(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Preference{}, apperr.Validation("invalid userId").WithOp(opUpsert)
		}
		return Preference{}, apperr.Internal(fmt.Sprintf("upsert preference failed: %v", err)).WithOp(opUpsert)
	}
	return pref, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if r == nil || r.q == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opDelete)
	}

	tag, err := r.q.Exec(ctx, `DELETE FROM user_preferences WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("delete preference failed: %v", err)).WithOp(opDelete)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("preference not found").WithOp(opDelete)
	}
	return nil
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Preference, error) {
	if r == nil || r.q == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListForUser)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+preferenceColumns+`
		FROM user_preferences
		WHERE user_id = $1
		ORDER BY attribute_type, attribute_value
	`, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list preferences failed: %v", err)).WithOp(opListForUser)
	}
	return collect(rows, opListForUser)
}

// FindByAttribute returns every stored preference for (t, value) regardless of
// channel switches, ordered by creation so the earliest subscriber comes first.
func (r *Repository) FindByAttribute(ctx context.Context, t AttributeType, value string) ([]Preference, error) {
	if r == nil || r.q == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opFindByAttribute)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+preferenceColumns+`
		FROM user_preferences
		WHERE attribute_type = $1 AND attribute_value = $2
		ORDER BY created_at, id
	`, string(t), value)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("find preferences failed: %v", err)).WithOp(opFindByAttribute)
	}
	return collect(rows, opFindByAttribute)
}

func collect(rows pgx.Rows, op string) ([]Preference, error) {
	defer rows.Close()

	items := make([]Preference, 0)
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan preference failed: %v", err)).WithOp(op)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate preferences failed: %v", err)).WithOp(op)
	}
	return items, nil
}

func scanPreference(row pgx.Row) (Preference, error) {
	var p Preference
	var attrType string
	err := row.Scan(&p.ID, &p.UserID, &attrType, &p.AttributeValue,
		&p.NotificationEnabled, &p.EmailNotificationEnabled, &p.CreatedAt, &p.UpdatedAt)
	p.AttributeType = AttributeType(attrType)
	return p, err
}
