package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capdev_portal/internal/email"
	"capdev_portal/internal/email/ratelimit"
	"capdev_portal/platform/config"
	"capdev_portal/platform/logger"

	"github.com/hibiken/asynq"
)

const digestWindow = 7 * 24 * time.Hour

// EmailSender performs the actual delivery for queued email tasks.
type EmailSender interface {
	Send(ctx context.Context, req email.SendRequest) (email.Result, error)
	SendBatch(ctx context.Context, req email.BatchRequest) ([]email.Result, error)
}

// DigestRunner builds and enqueues the weekly opportunity digest.
type DigestRunner interface {
	RunWeeklyOpportunityDigest(ctx context.Context, since time.Time) (int, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	sender   EmailSender
	digest   DigestRunner
	enqueuer EmailEnqueuer
	log      *logger.Logger
	now      func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, sender EmailSender, digest DigestRunner, enqueuer EmailEnqueuer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		RetryDelayFunc: retryDelay,
		IsFailure:      isFailure,
		Logger:         asynqLogger{log},
	})

	w := &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		sender:   sender,
		digest:   digest,
		enqueuer: enqueuer,
		log:      log,
		now:      time.Now,
	}

	w.mux.HandleFunc(TaskEmailSend, w.handleEmailSend)
	w.mux.HandleFunc(TaskEmailSendBatch, w.handleEmailSendBatch)
	w.mux.HandleFunc(TaskWeeklyDigest, w.handleWeeklyDigest)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEmailSend(ctx context.Context, task *asynq.Task) error {
	req, err := ParseEmailSendPayload(task)
	if err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskEmailSend, err, asynq.SkipRetry)
	}

	res, err := w.sender.Send(ctx, req)
	if err != nil {
		return retryable(err)
	}
	if !res.Success && res.Recoverable {
		return fmt.Errorf("send %s to %s: %s", req.Event, res.Recipient, res.Error)
	}
	return nil
}

// handleEmailSendBatch sends a batch once. Recipients whose delivery failed
// for a transient reason are re-queued as individual sends so the others are
// not repeated.
func (w *Worker) handleEmailSendBatch(ctx context.Context, task *asynq.Task) error {
	req, err := ParseEmailSendBatchPayload(task)
	if err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskEmailSendBatch, err, asynq.SkipRetry)
	}

	results, err := w.sender.SendBatch(ctx, req)
	if err != nil {
		return retryable(err)
	}

	byEmail := make(map[string]email.Recipient, len(req.Recipients))
	for _, r := range req.Recipients {
		byEmail[r.Email] = r
	}

	var requeueErr error
	sent := 0
	for _, res := range results {
		if res.Success {
			sent++
			continue
		}
		if !res.Recoverable || w.enqueuer == nil {
			continue
		}
		rcpt, ok := byEmail[res.Recipient]
		if !ok {
			rcpt = email.Recipient{Email: res.Recipient}
		}
		if err := w.enqueuer.EnqueueEmail(ctx, email.SendRequest{
			Event:     req.Event,
			Recipient: rcpt,
			Variables: req.Variables,
			Options:   req.Options,
		}); err != nil {
			requeueErr = errors.Join(requeueErr, err)
		}
	}

	w.log.Info("email batch processed", "event", req.Event, "recipients", len(req.Recipients), "sent", sent)
	if requeueErr != nil {
		w.log.Error("email batch requeue failed", "event", req.Event, "error", requeueErr)
	}
	return nil
}

func (w *Worker) handleWeeklyDigest(ctx context.Context, task *asynq.Task) error {
	if w.digest == nil {
		return nil
	}

	payload, err := ParseWeeklyDigestPayload(task)
	if err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskWeeklyDigest, err, asynq.SkipRetry)
	}

	since := payload.Since
	if since.IsZero() {
		since = w.now().Add(-digestWindow)
	}

	queued, err := w.digest.RunWeeklyOpportunityDigest(ctx, since)
	if err != nil {
		return err
	}
	w.log.Info("weekly opportunity digest queued", "since", since, "emails", queued)
	return nil
}

// retryable keeps transient failures retryable and marks everything else so
// asynq archives the task instead of retrying.
func retryable(err error) error {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) || email.IsRecoverable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// retryDelay waits out a rate-limit bucket instead of backing off blindly.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) && exceeded.RetryAfter > 0 {
		return exceeded.RetryAfter + time.Second
	}
	return asynq.DefaultRetryDelayFunc(n, err, task)
}

// isFailure keeps rate-limited retries out of the failure counters.
func isFailure(err error) bool {
	var exceeded *ratelimit.ExceededError
	return !errors.As(err, &exceeded)
}

type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Error(fmt.Sprint(args...)) }
