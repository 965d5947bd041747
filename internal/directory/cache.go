package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stock-finder/pkg/logger"
)

var (
	ErrLoadTimeout = errors.New("directory: timed out waiting for retailer load")
	ErrNoLoader    = errors.New("directory: no snapshot and no loader configured")
)

const (
	DefaultTTL         = time.Hour
	DefaultWaitTimeout = 5 * time.Minute
)

// Loader produces a fresh directory, typically by scraping.
type Loader interface {
	Load(ctx context.Context) ([]Retailer, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]Retailer, error)

func (f LoaderFunc) Load(ctx context.Context) ([]Retailer, error) { return f(ctx) }

type CacheOptions struct {
	// Store may be nil, in which case every miss goes to the loader.
	Store  Store
	Loader Loader

	TTL         time.Duration
	WaitTimeout time.Duration
	Now         func() time.Time
}

// Cache serves the retailer directory from memory, then the snapshot store,
// then the loader. Concurrent misses share a single load.
type Cache struct {
	store       Store
	loader      Loader
	ttl         time.Duration
	waitTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	items    []Retailer
	loadedAt time.Time

	group singleflight.Group
}

func NewCache(opts CacheOptions) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		store:       opts.Store,
		loader:      opts.Loader,
		ttl:         opts.TTL,
		waitTimeout: opts.WaitTimeout,
		now:         opts.Now,
	}
}

// GetOrLoad returns the directory, loading it if the in-memory copy is
// missing or stale. Callers wait at most WaitTimeout for a shared load.
func (c *Cache) GetOrLoad(ctx context.Context) ([]Retailer, error) {
	if rs, ok := c.fresh(); ok {
		return rs, nil
	}
	return c.wait(ctx, "get", func(ctx context.Context) ([]Retailer, error) {
		if rs, ok := c.fresh(); ok {
			return rs, nil
		}
		if c.store != nil {
			rs, err := c.store.Load(ctx)
			switch {
			case err == nil && len(rs) > 0:
				c.set(rs)
				return rs, nil
			case err != nil && !errors.Is(err, ErrNoSnapshot):
				logger.From(ctx).Warn("directory snapshot unreadable, reloading", "err", err)
			}
		}
		return c.load(ctx)
	})
}

// Reload ignores both the memory copy and the snapshot and runs the loader.
func (c *Cache) Reload(ctx context.Context) ([]Retailer, error) {
	return c.wait(ctx, "reload", c.load)
}

// Invalidate drops the in-memory copy. The snapshot store is left alone.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.loadedAt = time.Time{}
}

func (c *Cache) wait(ctx context.Context, key string, fn func(context.Context) ([]Retailer, error)) ([]Retailer, error) {
	// The shared load outlives any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) { return fn(loadCtx) })

	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]Retailer)), nil
	case <-timer.C:
		return nil, ErrLoadTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context) ([]Retailer, error) {
	if c.loader == nil {
		return nil, ErrNoLoader
	}
	log := logger.From(ctx)
	log.Info("loading retailer directory")
	rs, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.Save(ctx, rs); err != nil {
			log.Warn("directory snapshot save failed", "err", err)
		}
	}
	c.set(rs)
	log.Info("retailer directory loaded", "retailers", len(rs))
	return rs, nil
}

func (c *Cache) fresh() ([]Retailer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.items == nil || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return clone(c.items), true
}

func (c *Cache) set(rs []Retailer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = clone(rs)
	c.loadedAt = c.now()
}

func clone(rs []Retailer) []Retailer {
	if rs == nil {
		return nil
	}
	out := make([]Retailer, len(rs))
	copy(out, rs)
	return out
}
