// Package series provides fixed-capacity circular windows used for price
// and equity histories. Pushing into a full window overwrites the oldest
// sample; indices are always oldest-first.
package series

import "encoding/json"

// Window is a bounded ring buffer. The zero value is unusable; create one
// with NewWindow.
type Window[T any] struct {
	buf   []T
	start int
	size  int
}

// NewWindow creates a window holding at most capacity samples.
// A non-positive capacity is raised to 1.
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Cap returns the window capacity.
func (w *Window[T]) Cap() int { return len(w.buf) }

// Len returns the number of stored samples.
func (w *Window[T]) Len() int { return w.size }

// Push appends v, dropping the oldest sample when full.
func (w *Window[T]) Push(v T) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

// At returns the i-th sample, oldest first. It panics if i is out of range,
// like a slice index would.
func (w *Window[T]) At(i int) T {
	if i < 0 || i >= w.size {
		panic("series: index out of range")
	}
	return w.buf[(w.start+i)%len(w.buf)]
}

// Last returns the newest sample and whether one exists.
func (w *Window[T]) Last() (T, bool) {
	var zero T
	if w.size == 0 {
		return zero, false
	}
	return w.At(w.size - 1), true
}

// Back returns the sample n steps before the newest one (Back(0) == Last).
// ok is false when the window does not reach that far.
func (w *Window[T]) Back(n int) (T, bool) {
	var zero T
	if n < 0 || n >= w.size {
		return zero, false
	}
	return w.At(w.size - 1 - n), true
}

// Tail returns up to n newest samples, oldest first, as a new slice.
func (w *Window[T]) Tail(n int) []T {
	if n > w.size {
		n = w.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = w.At(w.size - n + i)
	}
	return out
}

// Slice copies every sample into a new slice, oldest first.
func (w *Window[T]) Slice() []T {
	return w.Tail(w.size)
}

// Clone returns an independent copy with the same capacity.
func (w *Window[T]) Clone() *Window[T] {
	c := NewWindow[T](len(w.buf))
	for i := 0; i < w.size; i++ {
		c.Push(w.At(i))
	}
	return c
}

type windowJSON[T any] struct {
	Capacity int `json:"capacity"`
	Points   []T `json:"points"`
}

// MarshalJSON encodes the window as its capacity plus an oldest-first array.
func (w *Window[T]) MarshalJSON() ([]byte, error) {
	pts := w.Slice()
	if pts == nil {
		pts = []T{}
	}
	return json.Marshal(windowJSON[T]{Capacity: len(w.buf), Points: pts})
}

// UnmarshalJSON restores a window. When more points than capacity are
// present only the newest ones are kept.
func (w *Window[T]) UnmarshalJSON(data []byte) error {
	var raw windowJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	capacity := raw.Capacity
	if capacity < 1 {
		capacity = len(raw.Points)
	}
	*w = *NewWindow[T](capacity)
	for _, p := range raw.Points {
		w.Push(p)
	}
	return nil
}
