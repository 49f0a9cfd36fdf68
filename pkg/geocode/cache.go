package geocode

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Cache stores resolved queries keyed by their normalized form.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Put(ctx context.Context, key string, r *Result) error
}

// CachedClient consults a Cache before delegating to another Client.
// Only successful lookups are stored.
type CachedClient struct {
	next  Client
	cache Cache
}

// NewCachedClient wraps next with cache.
func NewCachedClient(next Client, cache Cache) *CachedClient {
	return &CachedClient{next: next, cache: cache}
}

// Search implements Client.
func (c *CachedClient) Search(ctx context.Context, query string) (*Result, error) {
	key := NormalizeQuery(query)

	if key != "" {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			zap.L().Warn("geocode cache: read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			hit := *cached
			hit.Source = "cache"
			return &hit, nil
		}
	}

	result, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := c.cache.Put(ctx, key, result); err != nil {
			zap.L().Warn("geocode cache: write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// NormalizeQuery folds accents, case, and whitespace so that "Perú" and
// "peru" share a cache entry.
func NormalizeQuery(q string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, q)
	if err != nil {
		folded = q
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
