// Package dedup retries a fetch a bounded number of times until its result
// differs from what was recently seen.
package dedup

import (
	"context"
	"strings"
)

// DefaultAttempts is how many retries follow a duplicate first result.
const DefaultAttempts = 2

// UntilDistinct calls fetch and, while the result is a duplicate, retries up
// to attempts more times. A distinct retry result replaces the first one.
// When every retry is a duplicate, or a retry fails, the first result is
// kept. Only an error from the first call is returned.
func UntilDistinct[T any](ctx context.Context, attempts int, fetch func(context.Context) (T, error), isDup func(T) bool) (T, error) {
	first, err := fetch(ctx)
	if err != nil {
		return first, err
	}
	if !isDup(first) {
		return first, nil
	}

	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			break
		}
		next, err := fetch(ctx)
		if err != nil {
			break
		}
		if !isDup(next) {
			return next, nil
		}
	}
	return first, nil
}

// TrimmedEqual reports whether text matches any of recent after trimming
// surrounding whitespace. Empty text is never a duplicate.
func TrimmedEqual(text string, recent []string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	for _, r := range recent {
		if strings.TrimSpace(r) == t {
			return true
		}
	}
	return false
}
