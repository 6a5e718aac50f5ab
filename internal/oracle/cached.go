package oracle

import (
	"context"
	"sync"
)

// Cached memoizes the answers of another Oracle. Failed lookups are not
// remembered so a transient error does not pin an entity to "absent".
type Cached struct {
	next Oracle

	mu   sync.RWMutex
	memo map[cacheKey]bool
}

type cacheKey struct {
	kind Kind
	uri  string
}

var _ Oracle = (*Cached)(nil)

// NewCached wraps next.
func NewCached(next Oracle) *Cached {
	return &Cached{next: next, memo: make(map[cacheKey]bool)}
}

// OntologyClassExists implements Oracle.
func (c *Cached) OntologyClassExists(ctx context.Context, uri string) (bool, error) {
	return c.lookup(ctx, KindOntology, uri)
}

// PropertyExists implements Oracle.
func (c *Cached) PropertyExists(ctx context.Context, uri string) (bool, error) {
	return c.lookup(ctx, KindProperty, uri)
}

// ResourceExists implements Oracle.
func (c *Cached) ResourceExists(ctx context.Context, uri string) (bool, error) {
	return c.lookup(ctx, KindResource, uri)
}

// Len returns the number of memoized answers.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memo)
}

func (c *Cached) lookup(ctx context.Context, kind Kind, uri string) (bool, error) {
	key := cacheKey{kind: kind, uri: Normalize(uri)}

	c.mu.RLock()
	v, ok := c.memo[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := Exists(ctx, c.next, kind, uri)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.memo[key] = v
	c.mu.Unlock()
	return v, nil
}
