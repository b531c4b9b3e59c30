// Package memstore provides in-memory implementations of the order book,
// trade log and balance store contracts. Entities are kept as append-only
// version histories keyed by block height with a latest view, mirroring the
// SQL backend, so height rollback and point-in-time reads behave the same
// against either backend. It is the default backend for tests and
// single-process nodes.
package memstore

// version is one snapshot of an entity at a height. A deleted version marks
// the entity absent as of that height while preserving history below it.
type version[T any] struct {
	height  int32
	deleted bool
	value   T
}

// history is the append-only version log of one entity. Heights are
// non-decreasing; a write at the tail height replaces the tail.
type history[T any] []version[T]

func (h history[T]) latest() *version[T] {
	if len(h) == 0 {
		return nil
	}
	return &h[len(h)-1]
}

// at resolves to the highest version with height <= the query height.
func (h history[T]) at(height int32) *version[T] {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].height <= height {
			return &h[i]
		}
	}
	return nil
}

func (h history[T]) put(height int32, deleted bool, v T) history[T] {
	if n := len(h); n > 0 && h[n-1].height == height {
		h[n-1] = version[T]{height: height, deleted: deleted, value: v}
		return h
	}
	return append(h, version[T]{height: height, deleted: deleted, value: v})
}

// rollback discards versions above height. The remaining tail, if any,
// becomes the latest view again.
func (h history[T]) rollback(height int32) history[T] {
	n := len(h)
	for n > 0 && h[n-1].height > height {
		n--
	}
	return h[:n]
}

// rangeBounds clamps the inclusive [from, to] index range against n results
// and reports whether anything is selected.
func rangeBounds(from, to, n int) (int, int, bool) {
	if from < 0 {
		from = 0
	}
	if to >= n {
		to = n - 1
	}
	if n == 0 || from > to {
		return 0, 0, false
	}
	return from, to, true
}
