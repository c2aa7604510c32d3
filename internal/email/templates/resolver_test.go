package templates

import (
	"context"
	"errors"
	"testing"
	"time"

	"capdev_portal/platform/cache"
	"capdev_portal/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// brokenStore fails every operation.
type brokenStore struct{}

var errCacheDown = errors.New("cache down")

func (brokenStore) Get(context.Context, string) (string, error) { return "", errCacheDown }
func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errCacheDown
}
func (brokenStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errCacheDown
}
func (brokenStore) Delete(context.Context, ...string) error { return errCacheDown }
func (brokenStore) Ping(context.Context) error              { return errCacheDown }

func defaultCatalogT(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return c
}

func TestResolveFallsBackWhenCacheFails(t *testing.T) {
	r := NewResolver(defaultCatalogT(t), brokenStore{}, time.Hour, logger.Discard())

	tpl, err := r.Resolve(context.Background(), "offer_made")
	if err != nil {
		t.Fatalf("expected fallback lookup to succeed, got %v", err)
	}
	if tpl.TemplateName != "capdev-offer-made" {
		t.Fatalf("unexpected template %q", tpl.TemplateName)
	}
}

func TestResolveUnknownEvent(t *testing.T) {
	r := NewResolver(defaultCatalogT(t), nil, time.Hour, logger.Discard())

	_, err := r.Resolve(context.Background(), "does_not_exist")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Event != "does_not_exist" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolveCachesAndClears(t *testing.T) {
	mr := miniredis.RunT(t)
	store := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	r := NewResolver(defaultCatalogT(t), store, time.Hour, logger.Discard())
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "interest_expressed"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !mr.Exists("email_template:interest_expressed") {
		t.Fatalf("expected template to be cached")
	}
	if ttl := mr.TTL("email_template:interest_expressed"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	// A cached copy wins over the catalog until the cache is cleared.
	if err := mr.Set("email_template:interest_expressed", `{"event_name":"interest_expressed","template_name":"stale"}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tpl, _ := r.Resolve(ctx, "interest_expressed")
	if tpl.TemplateName != "stale" {
		t.Fatalf("expected cached copy, got %q", tpl.TemplateName)
	}

	if err := r.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	tpl, _ = r.Resolve(ctx, "interest_expressed")
	if tpl.TemplateName != "capdev-interest-expressed" {
		t.Fatalf("expected catalog copy after clear, got %q", tpl.TemplateName)
	}
}

func TestResolveIgnoresCorruptCacheEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	store := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err := mr.Set("email_template:system_test", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := NewResolver(defaultCatalogT(t), store, time.Hour, logger.Discard())

	tpl, err := r.Resolve(context.Background(), "system_test")
	if err != nil || tpl.TemplateName != "capdev-system-test" {
		t.Fatalf("expected catalog fallback, got %+v, %v", tpl, err)
	}
}

func TestReloadSwapsCatalog(t *testing.T) {
	r := NewResolver(defaultCatalogT(t), nil, time.Hour, logger.Discard())
	next, err := ParseCatalog([]byte("events:\n  custom:\n    template: capdev-custom\n    subject: Hi\n"))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if err := r.Reload(context.Background(), next); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "custom"); err != nil {
		t.Fatalf("expected new event after reload: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "offer_made"); err == nil {
		t.Fatalf("expected old event to be gone after reload")
	}
}
