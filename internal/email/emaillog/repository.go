package emaillog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"capdev_portal/platform/apperr"
	"capdev_portal/platform/db"
	"capdev_portal/platform/logger"
)

const (
	opQueued         = "emaillog.repository.queued"
	opTransition     = "emaillog.repository.transition"
	opByProvider     = "emaillog.repository.mark_by_provider"
	opStats          = "emaillog.repository.stats"
	opRecentFailures = "emaillog.repository.recent_failures"
	opOpen           = "emaillog.open"

	errRepoNotConfigured = "email log repository not configured"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	q db.Querier
}

var _ Store = (*Repository)(nil)

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Open checks once whether email_logs exists and returns the repository, or
// a NullStore when the migration has not been applied.
func Open(ctx context.Context, q db.Querier, log *logger.Logger) (Store, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT to_regclass('public.email_logs') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("check email_logs table: %v", err)).WithOp(opOpen)
	}
	if !exists {
		log.Warn("email_logs table missing, email logging disabled")
		return NullStore{}, nil
	}
	return NewRepository(q), nil
}

func (r *Repository) Available() bool { return r != nil && r.q != nil }

func (r *Repository) Queued(ctx context.Context, e Entry) (int64, error) {
	if !r.Available() {
		return NoLogID, apperr.Internal(errRepoNotConfigured).WithOp(opQueued)
	}

	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return NoLogID, apperr.Validation(fmt.Sprintf("encode metadata: %v", err)).WithOp(opQueued)
	}

	var id int64
	err = r.q.QueryRow(ctx, `
		INSERT INTO email_logs (user_id, recipient_email, event_name, template_name, status, metadata)
		VALUES ($1, $2, $3, $4, 'queued', $5)
		RETURNING id
	`, e.UserID, e.Recipient, e.EventName, e.TemplateName, raw).Scan(&id)
	if err != nil {
		return NoLogID, apperr.Internal(fmt.Sprintf("insert email log: %v", err)).WithOp(opQueued)
	}
	return id, nil
}

func (r *Repository) MarkSent(ctx context.Context, id int64, providerID string) error {
	return r.transition(ctx, id, StatusSent, `
		UPDATE email_logs
		SET status = 'sent', mandrill_id = NULLIF($2, ''), sent_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'queued'
	`, providerID)
}

func (r *Repository) MarkRejected(ctx context.Context, id int64, reason string) error {
	return r.transition(ctx, id, StatusRejected, `
		UPDATE email_logs
		SET status = 'rejected', error_message = $2, updated_at = now()
		WHERE id = $1 AND status = 'queued'
	`, reason)
}

func (r *Repository) MarkFailed(ctx context.Context, id int64, message string) error {
	return r.transition(ctx, id, StatusFailed, `
		UPDATE email_logs
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1 AND status = 'queued'
	`, message)
}

// transition applies a queued-entry update. Entries that already left the
// queued state are left unchanged.
func (r *Repository) transition(ctx context.Context, id int64, status Status, query, arg string) error {
	if !r.Available() {
		return apperr.Internal(errRepoNotConfigured).WithOp(opTransition)
	}
	if id == NoLogID {
		return nil
	}
	if _, err := r.q.Exec(ctx, query, id, arg); err != nil {
		return apperr.Internal(fmt.Sprintf("mark email log %d %s: %v", id, status, err)).WithOp(opTransition)
	}
	return nil
}

// MarkByProviderID applies a webhook outcome. Delivered and bounced only
// follow sent; rejected only follows queued. Rows in any other state are
// left alone and reported as not found.
func (r *Repository) MarkByProviderID(ctx context.Context, providerID string, status Status, detail string) error {
	if !r.Available() {
		return apperr.Internal(errRepoNotConfigured).WithOp(opByProvider)
	}

	var query string
	switch status {
	case StatusDelivered:
		query = `
			UPDATE email_logs
			SET status = 'delivered', delivered_at = now(), updated_at = now()
			WHERE mandrill_id = $1 AND status = 'sent'`
	case StatusBounced:
		query = `
			UPDATE email_logs
			SET status = $2, error_message = NULLIF($3, ''), updated_at = now()
			WHERE mandrill_id = $1 AND status = 'sent'`
	case StatusRejected:
		query = `
			UPDATE email_logs
			SET status = $2, error_message = NULLIF($3, ''), updated_at = now()
			WHERE mandrill_id = $1 AND status = 'queued'`
	default:
		return apperr.Validation(fmt.Sprintf("unsupported provider status %q", status)).WithOp(opByProvider)
	}

	args := []any{providerID}
	if status != StatusDelivered {
		args = append(args, string(status), detail)
	}
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark provider message %s: %v", providerID, err)).WithOp(opByProvider)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("email log not found for provider message").WithOp(opByProvider)
	}
	return nil
}

func (r *Repository) Stats(ctx context.Context, since time.Time) (Stats, error) {
	if !r.Available() {
		return Stats{}, apperr.Internal(errRepoNotConfigured).WithOp(opStats)
	}

	var s Stats
	err := r.q.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'queued'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE status = 'bounced'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM email_logs
		WHERE created_at >= $1
	`, since).Scan(&s.Total, &s.Queued, &s.Sent, &s.Delivered, &s.Bounced, &s.Rejected, &s.Failed)
	if err != nil {
		return Stats{}, apperr.Internal(fmt.Sprintf("email log stats: %v", err)).WithOp(opStats)
	}
	return s, nil
}

func (r *Repository) RecentFailures(ctx context.Context, since time.Time) (int, error) {
	if !r.Available() {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opRecentFailures)
	}

	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM email_logs
		WHERE status IN ('failed', 'rejected') AND updated_at >= $1
	`, since).Scan(&n)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count recent failures: %v", err)).WithOp(opRecentFailures)
	}
	return n, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if !r.Available() {
		return apperr.Internal(errRepoNotConfigured)
	}
	_, err := r.q.Exec(ctx, `SELECT 1 FROM email_logs LIMIT 1`)
	return err
}
