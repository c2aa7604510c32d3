package email

import (
	"context"
	"fmt"
	"time"

	"capdev_portal/internal/email/emaillog"
	"capdev_portal/platform/config"

	"golang.org/x/sync/errgroup"
)

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthCritical = "critical"
)

const healthCheckTimeout = 5 * time.Second

const msgLoggingDisabled = "email_logs table missing, logging disabled"

// QueueInspector reports the email queue backlog.
type QueueInspector interface {
	Pending(ctx context.Context) (int, error)
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type QueueHealth struct {
	ComponentHealth
	Pending        int `json:"pending"`
	RecentFailures int `json:"recentFailures"`
}

type HealthReport struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Provider  ComponentHealth `json:"provider"`
	Queue     QueueHealth     `json:"queue"`
	LogStore  ComponentHealth `json:"logStore"`
	Stats     emaillog.Stats  `json:"stats24h"`
	Rates     emaillog.Rates  `json:"rates24h"`
	CheckedAt time.Time       `json:"checkedAt"`
}

type HealthChecker struct {
	provider Provider
	queue    QueueInspector
	logs     emaillog.Store
	pending  int
	failures int
	now      func() time.Time
}

func NewHealthChecker(provider Provider, queue QueueInspector, logs emaillog.Store, cfg config.EmailHealthConfig) *HealthChecker {
	if logs == nil {
		logs = emaillog.NullStore{}
	}
	return &HealthChecker{
		provider: provider,
		queue:    queue,
		logs:     logs,
		pending:  cfg.GetHealthPendingThreshold(),
		failures: cfg.GetHealthFailureThreshold(),
		now:      time.Now,
	}
}

// Check queries every dependency concurrently. A failing provider or log
// store makes the report critical; a strained queue makes it degraded.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	now := h.now()
	report := HealthReport{CheckedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Provider = h.checkProvider(gctx)
		return nil
	})
	g.Go(func() error {
		report.Queue = h.checkQueue(gctx, now)
		return nil
	})
	g.Go(func() error {
		report.LogStore = h.checkLogStore(gctx)
		return nil
	})
	g.Go(func() error {
		stats, err := h.logs.Stats(gctx, now.Add(-24*time.Hour))
		if err == nil {
			report.Stats = stats
			report.Rates = stats.Rates()
		}
		return nil
	})
	_ = g.Wait()

	switch {
	case report.Provider.Status != HealthHealthy || report.LogStore.Status == HealthCritical:
		report.Status = HealthCritical
	case report.Queue.Status != HealthHealthy || report.LogStore.Status != HealthHealthy:
		report.Status = HealthDegraded
	default:
		report.Status = HealthHealthy
	}
	report.Message = summarize(report)
	return report
}

// summarize names the first unhealthy component, provider first.
func summarize(r HealthReport) string {
	switch {
	case r.Provider.Status != HealthHealthy:
		return "provider: " + r.Provider.Message
	case r.LogStore.Status != HealthHealthy:
		return "log store: " + r.LogStore.Message
	case r.Queue.Status != HealthHealthy:
		return "queue: " + r.Queue.Message
	}
	return ""
}

func (h *HealthChecker) checkProvider(ctx context.Context) ComponentHealth {
	if h.provider == nil {
		return ComponentHealth{Status: HealthCritical, Message: "no provider configured"}
	}
	if err := h.provider.Ping(ctx); err != nil {
		return ComponentHealth{Status: HealthCritical, Message: err.Error()}
	}
	return ComponentHealth{Status: HealthHealthy}
}

func (h *HealthChecker) checkQueue(ctx context.Context, now time.Time) QueueHealth {
	q := QueueHealth{ComponentHealth: ComponentHealth{Status: HealthHealthy}}

	if h.queue != nil {
		pending, err := h.queue.Pending(ctx)
		if err != nil {
			q.Status = HealthDegraded
			q.Message = fmt.Sprintf("queue inspection failed: %v", err)
			return q
		}
		q.Pending = pending
	}

	failures, err := h.logs.RecentFailures(ctx, now.Add(-time.Hour))
	if err == nil {
		q.RecentFailures = failures
	}

	switch {
	case h.pending > 0 && q.Pending > h.pending:
		q.Status = HealthDegraded
		q.Message = fmt.Sprintf("%d pending jobs exceeds %d", q.Pending, h.pending)
	case h.failures > 0 && q.RecentFailures > h.failures:
		q.Status = HealthDegraded
		q.Message = fmt.Sprintf("%d failures in the last hour exceeds %d", q.RecentFailures, h.failures)
	}
	return q
}

func (h *HealthChecker) checkLogStore(ctx context.Context) ComponentHealth {
	if !h.logs.Available() {
		return ComponentHealth{Status: HealthDegraded, Message: msgLoggingDisabled}
	}
	if err := h.logs.Ping(ctx); err != nil {
		return ComponentHealth{Status: HealthCritical, Message: err.Error()}
	}
	return ComponentHealth{Status: HealthHealthy}
}
