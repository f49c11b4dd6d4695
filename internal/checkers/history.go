package checkers

// History is a fixed-capacity ring buffer that keeps the most recent values.
type History[T any] struct {
	buf   []T
	start int
	size  int
}

// NewHistory creates a buffer holding at most capacity values.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when full.
func (h *History[T]) Push(v T) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = v
		h.size++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored values.
func (h *History[T]) Len() int { return h.size }

// Cap returns the buffer capacity.
func (h *History[T]) Cap() int { return len(h.buf) }

// Values returns the stored values oldest first.
func (h *History[T]) Values() []T {
	out := make([]T, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Last returns the newest value and whether one exists.
func (h *History[T]) Last() (T, bool) {
	var zero T
	if h.size == 0 {
		return zero, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

// Reset drops every value.
func (h *History[T]) Reset() {
	var zero T
	for i := range h.buf {
		h.buf[i] = zero
	}
	h.start, h.size = 0, 0
}
