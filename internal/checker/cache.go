package checker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/deadlinks/internal/model"
)

// Func checks a single URL. (*Checker).Check satisfies it.
type Func func(ctx context.Context, url string, timeout time.Duration) model.Outcome

// Cache maps URLs to outcomes for one document. A Cache must not be shared
// between documents. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]model.Outcome

	// group collapses concurrent Resolve calls for the same URL.
	group singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]model.Outcome)}
}

// Lookup returns the cached outcome for url.
func (c *Cache) Lookup(url string) (model.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.entries[url]
	return o, ok
}

// Len returns the number of distinct URLs resolved so far.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Resolve returns the cached outcome for url, or calls check exactly once
// and caches its result. The second return value reports a cache hit.
func (c *Cache) Resolve(ctx context.Context, url string, timeout time.Duration, check Func) (model.Outcome, bool) {
	if o, ok := c.Lookup(url); ok {
		return o, true
	}

	v, _, shared := c.group.Do(url, func() (any, error) {
		// Another caller may have stored it between Lookup and Do.
		if o, ok := c.Lookup(url); ok {
			return o, nil
		}
		o := check(ctx, url, timeout)
		c.mu.Lock()
		c.entries[url] = o
		c.mu.Unlock()
		return o, nil
	})
	return v.(model.Outcome), shared //nolint:forcetypeassert // the group only stores model.Outcome
}

// Prefetch resolves urls with at most concurrency checks in flight.
// Duplicates and already cached URLs are skipped. With concurrency of one
// or less the URLs are checked sequentially in the given order.
// It returns ctx.Err() if ctx is done before all URLs were resolved.
func (c *Cache) Prefetch(ctx context.Context, urls []string, timeout time.Duration, concurrency int, check Func) error {
	pending := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		if _, ok := c.Lookup(u); ok {
			continue
		}
		pending = append(pending, u)
	}

	if concurrency <= 1 {
		for _, u := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.Resolve(ctx, u, timeout, check)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, u := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.Resolve(gctx, u, timeout, check)
			return nil
		})
	}
	return g.Wait()
}
