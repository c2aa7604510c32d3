// Package ratelimit caps outbound email volume per scope using fixed
// minute and hour buckets kept in the shared cache.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"capdev_portal/platform/apperr"
	"capdev_portal/platform/cache"
	"capdev_portal/platform/config"
	"capdev_portal/platform/logger"
)

// Scope identifies which ceiling a send attempt ran into.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeUser      Scope = "user"
	ScopeEvent     Scope = "event"
	ScopeUserEvent Scope = "user_event"
)

const keyPrefix = "email_rate:"

const (
	minuteLayout = "200601021504"
	hourLayout   = "2006010215"
)

// Limits holds the per-scope ceilings. Zero disables a scope.
type Limits struct {
	GlobalPerMinute  int
	UserPerMinute    int
	EventPerMinute   int
	UserEventPerHour int
}

// DefaultLimits are used when configuration leaves a value unset.
var DefaultLimits = Limits{
	GlobalPerMinute:  500,
	UserPerMinute:    10,
	EventPerMinute:   200,
	UserEventPerHour: 3,
}

func LimitsFromConfig(cfg config.RateLimitConfig) Limits {
	return Limits{
		GlobalPerMinute:  cfg.GetEmailGlobalPerMinute(),
		UserPerMinute:    cfg.GetEmailUserPerMinute(),
		EventPerMinute:   cfg.GetEmailEventPerMinute(),
		UserEventPerHour: cfg.GetEmailUserEventPerHour(),
	}
}

// ExceededError reports the scope that tripped and how long until its bucket rolls over.
type ExceededError struct {
	Scope      Scope
	Limit      int
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("email rate limit exceeded for %s scope (limit %d, retry in %ds)",
		e.Scope, e.Limit, int(e.RetryAfter.Seconds()))
}

func (e *ExceededError) AppKind() apperr.Kind { return apperr.KindTooManyRequests }

// RetryAfterSeconds is the retry hint rounded up to whole seconds.
func (e *ExceededError) RetryAfterSeconds() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second > 0 {
		secs++
	}
	return secs
}

type Limiter struct {
	store  cache.Store
	limits Limits
	now    func() time.Time
	log    *logger.Logger
}

func New(store cache.Store, limits Limits, log *logger.Logger) *Limiter {
	return &Limiter{store: store, limits: limits, now: time.Now, log: log}
}

type bucket struct {
	scope  Scope
	key    string
	limit  int
	window time.Duration
	start  time.Time
}

func (l *Limiter) buckets(recipient, event string) []bucket {
	now := l.now().UTC()
	minute := now.Truncate(time.Minute)
	hour := now.Truncate(time.Hour)
	m := minute.Format(minuteLayout)
	h := hour.Format(hourLayout)
	who := strings.ToLower(strings.TrimSpace(recipient))

	return []bucket{
		{ScopeGlobal, keyPrefix + "global:" + m, l.limits.GlobalPerMinute, time.Minute, minute},
		{ScopeUser, keyPrefix + "user:" + who + ":" + m, l.limits.UserPerMinute, time.Minute, minute},
		{ScopeEvent, keyPrefix + "event:" + event + ":" + m, l.limits.EventPerMinute, time.Minute, minute},
		{ScopeUserEvent, keyPrefix + "user_event:" + who + ":" + event + ":" + h, l.limits.UserEventPerHour, time.Hour, hour},
	}
}

// CheckLimit returns an *ExceededError for the first scope at its ceiling.
// It never changes a counter.
func (l *Limiter) CheckLimit(ctx context.Context, recipient, event string) error {
	for _, b := range l.buckets(recipient, event) {
		if b.limit <= 0 {
			continue
		}
		if l.count(ctx, b.key) >= int64(b.limit) {
			l.log.RateLimitExceeded(string(b.scope), recipient, event, b.limit)
			return &ExceededError{
				Scope:      b.scope,
				Limit:      b.limit,
				RetryAfter: b.start.Add(b.window).Sub(l.now().UTC()),
			}
		}
	}
	return nil
}

// IncrementCounters records one dispatched send in every enabled scope.
// Failures are logged and otherwise ignored.
func (l *Limiter) IncrementCounters(ctx context.Context, recipient, event string) {
	for _, b := range l.buckets(recipient, event) {
		if b.limit <= 0 {
			continue
		}
		if _, err := l.store.Increment(ctx, b.key, b.window); err != nil {
			l.log.Warn("email rate counter increment failed", "scope", string(b.scope), "key", b.key, "error", err)
		}
	}
}

// count reads a counter. Missing keys and cache errors count as zero.
func (l *Limiter) count(ctx context.Context, key string) int64 {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		return 0
	}
	var n int64
	if _, err := fmt.Sscan(raw, &n); err != nil {
		return 0
	}
	return n
}
