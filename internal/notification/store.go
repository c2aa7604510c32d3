package notification

import (
	"context"

	"capdev_portal/internal/notification/inapp"
	"capdev_portal/internal/preferences"
	"capdev_portal/platform/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore runs writer transactions on Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(pgTx{
			Repository: preferences.NewRepository(tx),
			inbox:      inapp.NewRepository(tx),
		})
	})
}

type pgTx struct {
	*preferences.Repository
	inbox *inapp.Repository
}

func (t pgTx) CreateNotification(ctx context.Context, p inapp.CreateParams) (inapp.Notification, bool, error) {
	return t.inbox.CreateMatch(ctx, p)
}
