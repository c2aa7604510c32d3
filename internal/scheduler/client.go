package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"capdev_portal/internal/email"
	"capdev_portal/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// EmailEnqueuer hands email work to the queue.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, req email.SendRequest) error
	EnqueueEmailBatch(ctx context.Context, req email.BatchRequest) error
}

var _ EmailEnqueuer = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:   asynq.NewClient(opt),
		queue:    queueName(cfg),
		maxRetry: maxRetry(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueEmail(ctx context.Context, req email.SendRequest) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewEmailSendTask(req)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) EnqueueEmailBatch(ctx context.Context, req email.BatchRequest) error {
	if c == nil || c.client == nil {
		return nil
	}
	if len(req.Recipients) == 0 {
		return nil
	}

	task, err := NewEmailSendBatchTask(req)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueWeeklyDigest queues a digest run outside the periodic schedule.
func (c *Client) EnqueueWeeklyDigest(ctx context.Context, since time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewWeeklyDigestTask(WeeklyDigestPayload{Since: since})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(1))
	return err
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	_, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(c.maxRetry))
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func maxRetry(cfg config.SchedulerConfig) int {
	if n := cfg.GetEmailMaxRetry(); n > 0 {
		return n
	}
	return 5
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
