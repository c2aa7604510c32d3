package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"capdev_portal/internal/email/emaillog"
)

type healthConfig struct{}

func (healthConfig) GetHealthPendingThreshold() int { return 100 }
func (healthConfig) GetHealthFailureThreshold() int { return 10 }

type fakeQueue struct {
	pending int
	err     error
}

func (q fakeQueue) Pending(context.Context) (int, error) { return q.pending, q.err }

type statsLogs struct {
	emaillog.NullStore
	stats     emaillog.Stats
	failures  int
	pingErr   error
	available bool
}

func (l statsLogs) Stats(context.Context, time.Time) (emaillog.Stats, error) { return l.stats, nil }
func (l statsLogs) RecentFailures(context.Context, time.Time) (int, error)   { return l.failures, nil }
func (l statsLogs) Ping(context.Context) error                               { return l.pingErr }
func (l statsLogs) Available() bool                                          { return l.available }

func TestHealthStatus(t *testing.T) {
	tests := []struct {
		name     string
		provider error
		queue    fakeQueue
		logs     statsLogs
		want     string
	}{
		{"healthy", nil, fakeQueue{pending: 5}, statsLogs{available: true}, HealthHealthy},
		{"provider down", errors.New("invalid key"), fakeQueue{}, statsLogs{available: true}, HealthCritical},
		{"log store down", nil, fakeQueue{}, statsLogs{available: true, pingErr: errors.New("gone")}, HealthCritical},
		{"backlog", nil, fakeQueue{pending: 101}, statsLogs{available: true}, HealthDegraded},
		{"recent failures", nil, fakeQueue{}, statsLogs{available: true, failures: 11}, HealthDegraded},
		{"at thresholds", nil, fakeQueue{pending: 100}, statsLogs{available: true, failures: 10}, HealthHealthy},
		{"logging disabled", nil, fakeQueue{}, statsLogs{}, HealthDegraded},
		{"queue unreachable", nil, fakeQueue{err: errors.New("redis down")}, statsLogs{available: true}, HealthDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(&fakeProvider{pingErr: tt.provider}, tt.queue, tt.logs, healthConfig{})
			report := h.Check(context.Background())
			if report.Status != tt.want {
				t.Fatalf("status = %s, want %s (report %+v)", report.Status, tt.want, report)
			}
		})
	}
}

func TestHealthLabelsDisabledLogging(t *testing.T) {
	report := NewHealthChecker(&fakeProvider{}, fakeQueue{}, statsLogs{}, healthConfig{}).Check(context.Background())

	if report.Status != HealthDegraded {
		t.Fatalf("status = %s, want %s", report.Status, HealthDegraded)
	}
	if report.LogStore.Message != msgLoggingDisabled {
		t.Fatalf("log store message = %q", report.LogStore.Message)
	}
	if report.Message != "log store: "+msgLoggingDisabled {
		t.Fatalf("report message = %q", report.Message)
	}

	down := NewHealthChecker(&fakeProvider{}, fakeQueue{}, statsLogs{available: true, pingErr: errors.New("gone")}, healthConfig{}).Check(context.Background())
	if down.Status != HealthCritical || down.LogStore.Message == msgLoggingDisabled {
		t.Fatalf("unreachable store must not read as disabled: %+v", down.LogStore)
	}
}

func TestHealthReportsRates(t *testing.T) {
	logs := statsLogs{available: true, stats: emaillog.Stats{Total: 4, Delivered: 2, Bounced: 1, Failed: 1}}
	report := NewHealthChecker(&fakeProvider{}, fakeQueue{}, logs, healthConfig{}).Check(context.Background())

	if report.Stats.Total != 4 || report.Rates.Delivery != 0.5 || report.Rates.Bounce != 0.25 {
		t.Fatalf("unexpected rates %+v", report.Rates)
	}
}
