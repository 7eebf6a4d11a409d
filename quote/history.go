package quote

import (
	"iter"
	"slices"
	"time"
)

// History stores a chronological series of values, each associated with an
// instant. Instants are unique and the series is always sorted.
type History[T any] struct {
	times  []time.Time
	values []T
}

// Len returns the number of items in the history.
func (h *History[T]) Len() int { return len(h.times) }

// search returns the position of t, and whether a value is recorded at t.
func (h *History[T]) search(t time.Time) (int, bool) {
	return slices.BinarySearchFunc(h.times, t, time.Time.Compare)
}

// Append adds a point to the history.
//
// An existing value at that instant is overwritten.
func (h *History[T]) Append(t time.Time, v T) *History[T] {
	i, found := h.search(t)
	if found {
		// The last recorded value wins.
		h.values[i] = v
		return h
	}
	h.times = slices.Insert(h.times, i, t)
	h.values = slices.Insert(h.values, i, v)
	return h
}

// Latest returns the latest instant and value in the history.
// If the history is empty, it returns false.
func (h *History[T]) Latest() (time.Time, T, bool) {
	last := len(h.times) - 1
	if last < 0 {
		var zero T
		return time.Time{}, zero, false
	}
	return h.times[last], h.values[last], true
}

// ValueAsOf returns the value at t, or the most recent value before it,
// with its instant.
func (h *History[T]) ValueAsOf(t time.Time) (time.Time, T, bool) {
	i, found := h.search(t)
	if found {
		return h.times[i], h.values[i], true
	}
	// i is where t would be inserted: the value we want is the one before.
	if i == 0 {
		var zero T
		return time.Time{}, zero, false
	}
	return h.times[i-1], h.values[i-1], true
}

// Values returns an iterator over all instant/value pairs in the history, in
// chronological order.
func (h *History[T]) Values() iter.Seq2[time.Time, T] {
	return func(yield func(time.Time, T) bool) {
		for i, t := range h.times {
			if !yield(t, h.values[i]) {
				return
			}
		}
	}
}
