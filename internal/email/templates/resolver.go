package templates

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"capdev_portal/platform/cache"
	"capdev_portal/platform/logger"
)

const cacheKeyPrefix = "email_template:"

// Resolver looks up templates through the shared cache. Cache failures are
// logged and the catalog is consulted directly.
type Resolver struct {
	mu      sync.RWMutex
	catalog *Catalog
	cache   cache.Store
	ttl     time.Duration
	log     *logger.Logger
}

func NewResolver(catalog *Catalog, store cache.Store, ttl time.Duration, log *logger.Logger) *Resolver {
	return &Resolver{catalog: catalog, cache: store, ttl: ttl, log: log}
}

// Resolve returns the template for event or a *NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, event string) (Template, error) {
	key := cacheKeyPrefix + event

	if r.cache != nil {
		raw, err := r.cache.Get(ctx, key)
		switch {
		case err == nil:
			var t Template
			decodeErr := json.Unmarshal([]byte(raw), &t)
			if decodeErr == nil {
				return t, nil
			}
			r.log.Warn("cached email template unreadable", "event", event, "error", decodeErr)
		case !errors.Is(err, cache.ErrMiss):
			r.log.Warn("email template cache read failed", "event", event, "error", err)
		}
	}

	t, ok := r.Catalog().Lookup(event)
	if !ok {
		return Template{}, &NotFoundError{Event: event}
	}

	if r.cache != nil {
		if data, err := json.Marshal(t); err == nil {
			if err := r.cache.Set(ctx, key, string(data), r.ttl); err != nil {
				r.log.Warn("email template cache write failed", "event", event, "error", err)
			}
		}
	}
	return t, nil
}

// Catalog returns the catalog currently in use.
func (r *Resolver) Catalog() *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}

// Reload swaps the catalog and clears cached entries of both old and new events.
func (r *Resolver) Reload(ctx context.Context, catalog *Catalog) error {
	old := r.Catalog()
	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()
	return r.clear(ctx, append(old.Events(), catalog.Events()...))
}

// ClearCache drops every cached template so the next lookup reads the catalog.
func (r *Resolver) ClearCache(ctx context.Context) error {
	return r.clear(ctx, r.Catalog().Events())
}

func (r *Resolver) clear(ctx context.Context, events []string) error {
	if r.cache == nil || len(events) == 0 {
		return nil
	}
	keys := make([]string, 0, len(events))
	for _, event := range events {
		keys = append(keys, cacheKeyPrefix+event)
	}
	return r.cache.Delete(ctx, keys...)
}

// Body returns the local HTML body of templateName from the current catalog.
func (r *Resolver) Body(templateName string) (string, bool) {
	return r.Catalog().Body(templateName)
}
