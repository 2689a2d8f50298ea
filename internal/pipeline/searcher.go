package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/mathfoundry/internal/cache"
	"github.com/ppiankov/mathfoundry/internal/model"
)

// CachedSearcher memoizes ranked results per normalized query and limit
type CachedSearcher struct {
	next  Searcher
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedSearcher wraps a searcher with a result cache
func NewCachedSearcher(next Searcher, c cache.Cache, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{next: next, cache: c, ttl: ttl}
}

// Search returns cached results when present; failures are never cached
func (s *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]model.Reference, error) {
	key := cache.Key(cache.KindSearch, strings.ToLower(strings.Join(strings.Fields(query), " ")), strconv.Itoa(limit))
	if refs, ok := cache.GetJSON[[]model.Reference](s.cache, key); ok {
		return refs, nil
	}

	refs, err := s.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	_ = cache.SetJSON(s.cache, key, refs, s.ttl)
	return refs, nil
}

// Invalidate drops all cached results, e.g. after re-indexing
func (s *CachedSearcher) Invalidate() error {
	return s.cache.Clear()
}
