// Package source decodes each backend endpoint into a typed value or a
// discriminated "unavailable" variant.
package source

import "github.com/jengzang/scam-dashboard-go/internal/fetcher"

// Maybe is either an available value or the reason it is unavailable.
type Maybe[T any] struct {
	Value     T
	Available bool
	Reason    string
}

// Some wraps an available value.
func Some[T any](v T) Maybe[T] {
	return Maybe[T]{Value: v, Available: true}
}

// Unavailable records why a source produced nothing usable.
func Unavailable[T any](reason string) Maybe[T] {
	return Maybe[T]{Reason: reason}
}

// Decode runs decode on a successful fetch and maps failures to Unavailable.
func Decode[T any](res fetcher.Result, decode func([]byte) Maybe[T]) Maybe[T] {
	if !res.OK() {
		return Unavailable[T](res.Err.Error())
	}
	return decode(res.Payload)
}
