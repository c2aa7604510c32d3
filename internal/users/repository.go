// Package users reads portal accounts for notification delivery.
package users

import (
	"context"
	"errors"
	"fmt"

	"capdev_portal/platform/apperr"
	"capdev_portal/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	opGetByID    = "users.repository.get_by_id"
	opGetByIDs   = "users.repository.get_by_ids"
	opListAdmins = "users.repository.list_admins"

	errRepoNotConfigured = "user repository not configured"
)

type User struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	IsAdmin bool      `json:"isAdmin"`
}

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	if r == nil || r.q == nil {
		return User{}, apperr.Internal(errRepoNotConfigured).WithOp(opGetByID)
	}

	var u User
	err := r.q.QueryRow(ctx, `
		SELECT id, email, name, is_admin FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found").WithOp(opGetByID)
	}
	if err != nil {
		return User{}, apperr.Internal(fmt.Sprintf("get user: %v", err)).WithOp(opGetByID)
	}
	return u, nil
}

// GetByIDs returns the users that exist among ids, in no particular order.
func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	if r == nil || r.q == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opGetByIDs)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, email, name, is_admin FROM users WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("get users: %v", err)).WithOp(opGetByIDs)
	}
	return collect(rows, opGetByIDs)
}

func (r *Repository) ListAdmins(ctx context.Context) ([]User, error) {
	if r == nil || r.q == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListAdmins)
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, email, name, is_admin FROM users WHERE is_admin ORDER BY created_at, id
	`)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list admins: %v", err)).WithOp(opListAdmins)
	}
	return collect(rows, opListAdmins)
}

func collect(rows pgx.Rows, op string) ([]User, error) {
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan user: %v", err)).WithOp(op)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate users: %v", err)).WithOp(op)
	}
	return out, nil
}
