package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"paginasamarelas/pkg/cache"
	"paginasamarelas/pkg/text"
)

// Response is what a search returns to callers.
type Response struct {
	Items  []Result `json:"items"`
	Total  int      `json:"total"`
	Source string   `json:"source,omitempty"`
}

// ErrNoProviders is returned by an empty Chain.
var ErrNoProviders = errors.New("no catalog providers configured")

// Chain tries providers in priority order. The first non-empty answer wins;
// a failing provider is logged and skipped. When every provider fails the
// last error is returned.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain builds a chain over providers in the given order.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, logger: logger}
}

func (c *Chain) Search(ctx context.Context, q Query) (Response, error) {
	if len(c.providers) == 0 {
		return Response{}, ErrNoProviders
	}
	q = q.normalized()
	var lastErr error
	failures := 0
	for _, p := range c.providers {
		items, err := p.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			failures++
			lastErr = err
			c.logger.Warn("catalog provider failed", "provider", p.Name(), "mode", q.Mode, "err", err)
			continue
		}
		if len(items) > 0 {
			return Response{Items: items, Total: len(items), Source: p.Name()}, nil
		}
	}
	if failures == len(c.providers) {
		return Response{}, lastErr
	}
	return Response{Items: []Result{}}, nil
}

// Searcher is satisfied by Chain and Service.
type Searcher interface {
	Search(ctx context.Context, q Query) (Response, error)
}

// Service caches a Searcher's successful responses. Keys are
// "catalog:<mode>:<maxResults>:<normalized text>", so "Ficção" and "ficcao"
// share one entry.
type Service struct {
	next   Searcher
	cache  cache.Cache
	logger *slog.Logger
}

// NewService wraps next with c. A nil cache disables caching.
func NewService(next Searcher, c cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{next: next, cache: c, logger: logger}
}

// CacheKey returns the cache key for q.
func CacheKey(q Query) string {
	q = q.normalized()
	return cache.Key("catalog", string(q.Mode), strconv.Itoa(q.MaxResults), text.Normalize(q.Text))
}

func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	q = q.normalized()
	key := CacheKey(q)
	if s.cache != nil {
		cached, ok, err := cache.GetJSON[Response](ctx, s.cache, key)
		if err != nil {
			s.logger.Warn("catalog cache read failed", "err", err)
		} else if ok {
			return cached, nil
		}
	}
	resp, err := s.next.Search(ctx, q)
	if err != nil {
		return Response{}, err
	}
	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, resp); err != nil {
			s.logger.Warn("catalog cache write failed", "err", err)
		}
	}
	return resp, nil
}
