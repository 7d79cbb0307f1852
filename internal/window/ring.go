// Package window provides a fixed-capacity ring buffer for rolling bar lookups.
package window

import (
	"encoding/json"
	"fmt"
)

// Ring keeps the most recent Cap values. Index 0 is the newest entry.
// It is not safe for concurrent use; callers own it exclusively.
type Ring[T any] struct {
	data []T
	head int // next write position
	size int
}

// New returns an empty ring holding up to capacity values.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when full.
func (r *Ring[T]) Push(v T) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.size < len(r.data) {
		r.size++
	}
}

// At returns the value n periods back. At(0) is the newest value.
func (r *Ring[T]) At(n int) (T, bool) {
	var zero T
	if n < 0 || n >= r.size {
		return zero, false
	}
	idx := (r.head - 1 - n + len(r.data)) % len(r.data)
	return r.data[idx], true
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Full reports whether the ring holds Cap values.
func (r *Ring[T]) Full() bool { return r.size == len(r.data) }

// Values returns a copy of the stored values, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, r.size)
	for i := r.size - 1; i >= 0; i-- {
		v, _ := r.At(i)
		out = append(out, v)
	}
	return out
}

// Reset drops all values.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head, r.size = 0, 0
}

type ringJSON[T any] struct {
	Cap    int `json:"cap"`
	Values []T `json:"values"`
}

// MarshalJSON encodes capacity plus values oldest first.
func (r *Ring[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(ringJSON[T]{Cap: len(r.data), Values: r.Values()})
}

// UnmarshalJSON restores a ring written by MarshalJSON.
func (r *Ring[T]) UnmarshalJSON(b []byte) error {
	var in ringJSON[T]
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Cap <= 0 {
		return fmt.Errorf("ring: invalid capacity %d", in.Cap)
	}
	if len(in.Values) > in.Cap {
		return fmt.Errorf("ring: %d values exceed capacity %d", len(in.Values), in.Cap)
	}
	r.data = make([]T, in.Cap)
	r.head, r.size = 0, 0
	for _, v := range in.Values {
		r.Push(v)
	}
	return nil
}
