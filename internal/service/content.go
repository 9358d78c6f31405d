package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/backingstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/cache"
)

// ContentCache reads current script and asset content for previews. Reads go
// through an optional cache and concurrent misses for one key share a
// single backing store fetch.
type ContentCache struct {
	store backingstore.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewContentCache wraps store. c may be nil to disable caching.
func NewContentCache(store backingstore.Store, c cache.Cache, ttl time.Duration) *ContentCache {
	return &ContentCache{store: store, cache: c, ttl: ttl}
}

func contentKey(target change.TargetType, name string) string {
	return string(target) + ":" + name
}

// Script returns the current source of the named script.
func (c *ContentCache) Script(ctx context.Context, name string) (string, error) {
	b, err := c.load(ctx, change.TargetScript, name, func(ctx context.Context) ([]byte, error) {
		s, err := c.store.GetScript(ctx, name)
		return []byte(s), err
	})
	return string(b), err
}

// Asset returns the current content of the asset at path.
func (c *ContentCache) Asset(ctx context.Context, path string) ([]byte, error) {
	return c.load(ctx, change.TargetAsset, path, func(ctx context.Context) ([]byte, error) {
		return c.store.GetAsset(ctx, path)
	})
}

// Current dispatches on target type.
func (c *ContentCache) Current(ctx context.Context, target change.TargetType, name string) (string, error) {
	if target == change.TargetAsset {
		b, err := c.Asset(ctx, name)
		return string(b), err
	}
	return c.Script(ctx, name)
}

func (c *ContentCache) load(ctx context.Context, target change.TargetType, name string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	key := contentKey(target, name)
	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return b, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		b, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
				slog.WarnContext(ctx, "content cache set failed", "key", key, "error", err)
			}
		}
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", target, name, err)
	}
	b, _ := v.([]byte)
	return b, nil
}

// Invalidate drops the cached content of a target after a commit.
func (c *ContentCache) Invalidate(ctx context.Context, target change.TargetType, name string) {
	if c.cache == nil {
		return
	}
	key := contentKey(target, name)
	if err := c.cache.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "content cache invalidate failed", "key", key, "error", err)
	}
}
