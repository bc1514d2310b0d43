package oracle

import (
	"context"
	"time"

	"github.com/pkravets/thema/internal/cache"
)

// CachedClient wraps a Client with a reply cache keyed by the request
// content. Only successful replies are cached; failures always reach
// the caller so its retry policy stays in charge.
type CachedClient struct {
	inner Client
	store cache.Cache
	ttl   time.Duration
}

// NewCachedClient wraps inner with the given reply store
func NewCachedClient(inner Client, store cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, store: store, ttl: ttl}
}

// Chat returns a cached reply when one exists, otherwise delegates
func (c *CachedClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	key := cache.Key(req.Model, req.System, req.User)

	if data, found := c.store.Get(key); found {
		return string(data), nil
	}

	reply, err := c.inner.Chat(ctx, req)
	if err != nil {
		return "", err
	}

	_ = c.store.Set(key, []byte(reply), c.ttl)
	return reply, nil
}
