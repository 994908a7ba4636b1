package chunk

import (
	"fmt"
	"iter"
)

// Chunks splits src into batches of at most n elements, preserving order.
// Every batch except possibly the last has exactly n elements. The returned
// sequence is lazy: elements are pulled from src one batch at a time, so src
// may be unbounded. A non-positive n is a configuration error and is rejected
// immediately.
func Chunks[T any](src iter.Seq[T], n int) (iter.Seq[[]T], error) {
	if n <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", n)
	}

	return func(yield func([]T) bool) {
		batch := make([]T, 0, n)
		for v := range src {
			batch = append(batch, v)
			if len(batch) == n {
				if !yield(batch) {
					return
				}
				batch = make([]T, 0, n)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}, nil
}

// FromSlice adapts a slice to the iter.Seq form consumed by Chunks.
func FromSlice[T any](items []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range items {
			if !yield(v) {
				return
			}
		}
	}
}
