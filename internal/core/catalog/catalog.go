// Package catalog caches the immutable checklist templates served per
// service category. Templates are fetched once and shared read-only across
// instances; invalidation is explicit.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/tallerpro/checkup/internal/core/checklist"
)

// Fetcher retrieves a template for a service category from the remote
// catalog service.
type Fetcher interface {
	FetchTemplate(ctx context.Context, category string) (checklist.Template, error)
}

// Catalog is a read-through template cache. Safe for concurrent use.
type Catalog struct {
	fetcher Fetcher

	mu    sync.RWMutex
	cache map[string]checklist.Template
}

// New creates a catalog backed by the given fetcher.
func New(fetcher Fetcher) *Catalog {
	return &Catalog{
		fetcher: fetcher,
		cache:   make(map[string]checklist.Template),
	}
}

// Get returns the template for a category, fetching it on first use. The
// returned template has its items sorted by display order.
func (c *Catalog) Get(ctx context.Context, category string) (checklist.Template, error) {
	c.mu.RLock()
	tmpl, ok := c.cache[category]
	c.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := c.fetcher.FetchTemplate(ctx, category)
	if err != nil {
		return checklist.Template{}, fmt.Errorf("fetch template for category %q: %w", category, err)
	}
	tmpl.SortItems()

	c.mu.Lock()
	// Another caller may have raced the fetch; the server copy is immutable
	// so either result is equivalent.
	c.cache[category] = tmpl
	c.mu.Unlock()

	return tmpl, nil
}

// Invalidate drops the cached template for a category. The next Get fetches
// a fresh copy.
func (c *Catalog) Invalidate(category string) {
	c.mu.Lock()
	delete(c.cache, category)
	c.mu.Unlock()
}

// Clear drops all cached templates.
func (c *Catalog) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]checklist.Template)
	c.mu.Unlock()
}
