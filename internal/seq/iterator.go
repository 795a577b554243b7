package seq

import (
	"fmt"
	"weak"

	"github.com/roach88/seqguard/internal/breach"
)

// Iterator is a validated position in a Store.
//
// Iterators are values: copying one is always legal and never validated.
// The zero Iterator is singular and breaches on any operation.
type Iterator[T any] struct {
	ref        weak.Pointer[Store[T]]
	index      int
	gen        uint64
	rep        breach.Reporter
	terminated bool
}

// Index returns the position. Index does not validate.
func (it Iterator[T]) Index() int { return it.index }

// Generation returns the store generation the iterator was issued under.
func (it Iterator[T]) Generation() uint64 { return it.gen }

// Terminated reports whether the iterator came out of a failed operation.
func (it Iterator[T]) Terminated() bool { return it.terminated }

// Valid reports whether every operation up to Advance would succeed right
// now. It never reports a breach.
func (it Iterator[T]) Valid() bool {
	if it.terminated {
		return false
	}
	s := it.ref.Value()
	if s == nil || s.gen == DeadGeneration || s.gen != it.gen {
		return false
	}
	return it.index >= 0 && it.index <= s.n
}

// Advance returns an iterator delta positions away. The target must lie in
// [0, Len].
func (it Iterator[T]) Advance(delta int) Iterator[T] {
	return it.advance("advance", delta)
}

// Next is Advance(1).
func (it Iterator[T]) Next() Iterator[T] {
	return it.advance("next", 1)
}

// Prev is Advance(-1).
func (it Iterator[T]) Prev() Iterator[T] {
	return it.advance("prev", -1)
}

func (it Iterator[T]) advance(op string, delta int) Iterator[T] {
	if !breach.Enabled {
		it.index += delta
		return it
	}
	s, ok := it.resolve(op, delta)
	if !ok {
		return it.terminate()
	}
	next := it.index + delta
	if next < 0 || next > s.n {
		it.report(&breach.Breach{
			Kind:               breach.KindOutOfRange,
			Op:                 op,
			Index:              it.index,
			Delta:              delta,
			Len:                s.n,
			IteratorGeneration: it.gen,
			StoreGeneration:    s.gen,
			Message:            fmt.Sprintf("position %d outside [0, %d]", next, s.n),
		})
		return it.terminate()
	}
	it.index = next
	return it
}

// Deref returns a pointer to the element at the iterator. The position must
// lie in [0, Len); the end position is not dereferenceable.
func (it Iterator[T]) Deref() *T {
	if !breach.Enabled {
		return &it.ref.Value().buf[it.index]
	}
	s, ok := it.resolve("deref", 0)
	if !ok {
		return nil
	}
	if it.index < 0 || it.index >= s.n {
		b := &breach.Breach{
			Kind:               breach.KindOutOfRange,
			Op:                 "deref",
			Index:              it.index,
			Len:                s.n,
			IteratorGeneration: it.gen,
			StoreGeneration:    s.gen,
			Message:            fmt.Sprintf("index %d outside [0, %d)", it.index, s.n),
		}
		if it.index == s.n {
			b.Kind = breach.KindEndDereference
			b.Message = "dereference of end position"
		}
		it.report(b)
		return nil
	}
	return &s.buf[it.index]
}

// Get returns the element at the iterator, or the zero value after a breach.
func (it Iterator[T]) Get() T {
	p := it.Deref()
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Equals reports whether both iterators point at the same position of the
// same store and captured the same generation.
//
// A generation mismatch makes the iterators unequal without a breach, but
// both stores must be alive and the iterators must share a store.
func (it Iterator[T]) Equals(other Iterator[T]) bool {
	if breach.Enabled && !it.sameStore(other, "equals", false) {
		return false
	}
	return it.ref == other.ref && it.index == other.index && it.gen == other.gen
}

// Distance returns other.Index() - it.Index(). Both iterators must be
// current and share a store.
func (it Iterator[T]) Distance(other Iterator[T]) int {
	if breach.Enabled && !it.sameStore(other, "distance", true) {
		return 0
	}
	return other.index - it.index
}

// Less reports whether it is positioned before other. Both iterators must be
// current and share a store.
func (it Iterator[T]) Less(other Iterator[T]) bool {
	if breach.Enabled && !it.sameStore(other, "less", true) {
		return false
	}
	return it.index < other.index
}

// sameStore validates both operands of a comparison. Generations are
// checked only when current is set.
func (it Iterator[T]) sameStore(other Iterator[T], op string, current bool) bool {
	resolve := Iterator[T].live
	if current {
		resolve = func(i Iterator[T], op string) (*Store[T], bool) { return i.resolve(op, 0) }
	}
	s, ok := resolve(it, op)
	if !ok {
		return false
	}
	o, ok := resolve(other, op)
	if !ok {
		return false
	}
	if s != o {
		it.report(&breach.Breach{
			Kind:    breach.KindForeignIterator,
			Op:      op,
			Index:   it.index,
			Len:     s.n,
			Message: "iterators belong to different stores",
		})
		return false
	}
	return true
}

// live returns the iterator's store if the iterator is usable at all:
// attached, not terminated and not outliving its store.
func (it Iterator[T]) live(op string) (*Store[T], bool) {
	if it.terminated {
		it.report(&breach.Breach{
			Kind:    breach.KindTerminatedIterator,
			Op:      op,
			Index:   it.index,
			Message: "iterator produced by a failed operation",
		})
		return nil, false
	}
	if it.ref == (weak.Pointer[Store[T]]{}) {
		it.report(&breach.Breach{
			Kind:    breach.KindSingularIterator,
			Op:      op,
			Message: "iterator not attached to a store",
		})
		return nil, false
	}
	s := it.ref.Value()
	if s == nil || s.gen == DeadGeneration {
		it.report(&breach.Breach{
			Kind:               breach.KindDeadStore,
			Op:                 op,
			Index:              it.index,
			IteratorGeneration: it.gen,
			StoreGeneration:    DeadGeneration,
			Message:            "store destroyed",
		})
		return nil, false
	}
	return s, true
}

// resolve is live plus the generation check every non-comparison
// operation requires.
func (it Iterator[T]) resolve(op string, delta int) (*Store[T], bool) {
	s, ok := it.live(op)
	if !ok {
		return nil, false
	}
	if s.gen != it.gen {
		it.report(&breach.Breach{
			Kind:               breach.KindStaleGeneration,
			Op:                 op,
			Index:              it.index,
			Delta:              delta,
			Len:                s.n,
			IteratorGeneration: it.gen,
			StoreGeneration:    s.gen,
			Message:            fmt.Sprintf("issued at generation %d, store at %d", it.gen, s.gen),
		})
		return nil, false
	}
	return s, true
}

func (it Iterator[T]) report(b *breach.Breach) {
	breach.ReportTo(it.rep, b)
}

func (it Iterator[T]) terminate() Iterator[T] {
	it.terminated = true
	return it
}
