package scheduler

import (
	"context"
	"errors"

	"capdev_portal/internal/email"
	"capdev_portal/platform/config"

	"github.com/hibiken/asynq"
)

// QueueInspector reports the backlog of the email queue.
type QueueInspector struct {
	inspector *asynq.Inspector
	queue     string
}

var _ email.QueueInspector = (*QueueInspector)(nil)

func NewQueueInspector(cfg config.SchedulerConfig) (*QueueInspector, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return &QueueInspector{inspector: asynq.NewInspector(opt), queue: queueName(cfg)}, nil
}

// Pending counts tasks waiting to run, including those waiting to retry.
// A queue that has never been used has no backlog.
func (q *QueueInspector) Pending(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := q.inspector.GetQueueInfo(q.queue)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Pending + info.Retry, nil
}

func (q *QueueInspector) Close() error {
	return q.inspector.Close()
}
