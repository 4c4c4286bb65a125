package fetcher

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"
)

type sharedKey struct{}

// shared remembers GET results for the lifetime of one context, so
// components reading the same source during a boot hit the backend once.
type shared struct {
	group   singleflight.Group
	mu      sync.Mutex
	results map[string]Result
}

// WithSharedGets returns a context under which identical GETs issued through
// any Client are fetched once and their Result reused.
func WithSharedGets(ctx context.Context) context.Context {
	return context.WithValue(ctx, sharedKey{}, &shared{results: make(map[string]Result)})
}

func sharedFrom(ctx context.Context) *shared {
	s, _ := ctx.Value(sharedKey{}).(*shared)
	return s
}

func (s *shared) get(key string, fetch func() Result) Result {
	s.mu.Lock()
	if r, ok := s.results[key]; ok {
		s.mu.Unlock()
		return r
	}
	s.mu.Unlock()

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		r := fetch()
		s.mu.Lock()
		s.results[key] = r
		s.mu.Unlock()
		return r, nil
	})
	return v.(Result)
}

func sharedKeyFor(target string, query url.Values) string {
	if len(query) == 0 {
		return target
	}
	return target + "?" + query.Encode()
}
