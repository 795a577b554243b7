package seq

import (
	"fmt"
	"iter"
	"math"
	"weak"

	"github.com/roach88/seqguard/internal/alloc"
	"github.com/roach88/seqguard/internal/breach"
)

// DeadGeneration is the generation of a destroyed store.
const DeadGeneration uint64 = math.MaxUint64

// Options configures a Store.
type Options[T any] struct {
	// Allocator provides element storage. Nil means alloc.Heap.
	Allocator alloc.Allocator[T]

	// Capacity is the minimum initial capacity.
	Capacity int

	// Reporter receives breaches from this store and its iterators.
	// Nil means the process-wide reporter at the time of the breach.
	Reporter breach.Reporter
}

// Store owns a contiguous buffer of elements.
//
// Elements [0, Len) are live. Slots [Len, Cap) are always zero.
//
// The zero value is an empty store backed by alloc.Heap that reports to the
// process-wide reporter. Use New for any other options. A Store must not be
// copied after first use.
type Store[T any] struct {
	buf   []T
	n     int
	gen   uint64
	alloc alloc.Allocator[T]
	rep   breach.Reporter
	self  weak.Pointer[Store[T]]
}

// New creates a store holding a copy of initial.
// The only error is an allocation failure.
func New[T any](opts Options[T], initial ...T) (*Store[T], error) {
	a := opts.Allocator
	if a == nil {
		a = alloc.Heap[T]{}
	}

	s := &Store[T]{alloc: a, rep: opts.Reporter}
	s.self = weak.Make(s)

	capacity := max(opts.Capacity, len(initial))
	if capacity > 0 {
		buf, err := a.Allocate(capacity)
		if err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
		s.buf = buf
		s.n = copy(buf, initial)
	}
	return s, nil
}

// Len returns the number of elements.
func (s *Store[T]) Len() int { return s.n }

// Cap returns the number of element slots currently allocated.
func (s *Store[T]) Cap() int { return len(s.buf) }

// Generation returns the current generation.
func (s *Store[T]) Generation() uint64 { return s.gen }

// Destroyed reports whether Destroy has been called.
func (s *Store[T]) Destroyed() bool { return s.gen == DeadGeneration }

// Begin returns an iterator at the first element.
func (s *Store[T]) Begin() Iterator[T] {
	if breach.Enabled && !s.checkLive("begin") {
		return s.terminated()
	}
	return s.iter(0)
}

// End returns an iterator at the one-past-end position.
func (s *Store[T]) End() Iterator[T] {
	if breach.Enabled && !s.checkLive("end") {
		return s.terminated()
	}
	return s.iter(s.n)
}

// At returns a pointer to element i.
func (s *Store[T]) At(i int) *T {
	if breach.Enabled {
		if !s.checkLive("at") {
			return nil
		}
		if i < 0 || i >= s.n {
			s.report(&breach.Breach{
				Kind:    breach.KindOutOfRange,
				Op:      "at",
				Index:   i,
				Len:     s.n,
				Message: fmt.Sprintf("index %d outside [0, %d)", i, s.n),
			})
			return nil
		}
	}
	return &s.buf[i]
}

// Values returns a copy of the live elements.
func (s *Store[T]) Values() []T {
	if breach.Enabled && !s.checkLive("values") {
		return nil
	}
	out := make([]T, s.n)
	copy(out, s.buf[:s.n])
	return out
}

// All iterates over (index, value) pairs.
//
// The walk is bound to the generation at its start: if the loop body
// invalidates the store, the next step reports a STALE_GENERATION breach and
// the walk stops.
func (s *Store[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		if breach.Enabled && !s.checkLive("range") {
			return
		}
		gen := s.gen
		for i := 0; ; i++ {
			if breach.Enabled && s.gen != gen {
				s.report(&breach.Breach{
					Kind:               staleKind(s.gen),
					Op:                 "range",
					Index:              i,
					Len:                s.n,
					IteratorGeneration: gen,
					StoreGeneration:    s.gen,
					Message:            "store mutated during range",
				})
				return
			}
			if i >= s.n {
				return
			}
			if !yield(i, s.buf[i]) {
				return
			}
		}
	}
}

// Append adds v at the end.
//
// When Len == Cap the buffer is reallocated and the generation bumped,
// invalidating every outstanding iterator. Otherwise v is written in place
// and outstanding iterators stay valid.
func (s *Store[T]) Append(v T) error {
	if breach.Enabled && !s.checkLive("append") {
		return nil
	}
	if s.n == len(s.buf) {
		if err := s.grow(s.recommend(s.n + 1)); err != nil {
			return fmt.Errorf("append: %w", err)
		}
		s.bump()
	}
	s.buf[s.n] = v
	s.n++
	return nil
}

// Insert places vals before pos and returns an iterator at the first
// inserted element. The generation is bumped once.
func (s *Store[T]) Insert(pos Iterator[T], vals ...T) (Iterator[T], error) {
	const op = "insert"
	if breach.Enabled && !s.checkPosition(pos, op, false) {
		return pos.terminate(), nil
	}

	idx := pos.index
	need := s.n + len(vals)
	if need > len(s.buf) {
		buf, err := s.allocator().Allocate(s.recommend(need))
		if err != nil {
			return pos, fmt.Errorf("insert: %w", err)
		}
		copy(buf, s.buf[:idx])
		copy(buf[idx+len(vals):], s.buf[idx:s.n])
		s.release()
		s.buf = buf
	} else {
		copy(s.buf[idx+len(vals):need], s.buf[idx:s.n])
	}
	copy(s.buf[idx:], vals)
	s.n = need
	s.bump()
	return s.iter(idx), nil
}

// Erase removes the element at pos and returns an iterator at the element
// that followed it.
func (s *Store[T]) Erase(pos Iterator[T]) Iterator[T] {
	const op = "erase"
	if breach.Enabled && !s.checkPosition(pos, op, true) {
		return pos.terminate()
	}

	idx := pos.index
	copy(s.buf[idx:], s.buf[idx+1:s.n])
	s.n--
	clear(s.buf[s.n : s.n+1])
	s.bump()
	return s.iter(idx)
}

// EraseRange removes [first, last) and returns an iterator at last's element.
func (s *Store[T]) EraseRange(first, last Iterator[T]) Iterator[T] {
	const op = "erase_range"
	if breach.Enabled {
		if !s.checkPosition(first, op, false) || !s.checkPosition(last, op, false) {
			return first.terminate()
		}
		if first.index > last.index {
			s.report(&breach.Breach{
				Kind:    breach.KindOutOfRange,
				Op:      op,
				Index:   first.index,
				Len:     s.n,
				Message: fmt.Sprintf("first %d after last %d", first.index, last.index),
			})
			return first.terminate()
		}
	}

	removed := last.index - first.index
	copy(s.buf[first.index:], s.buf[last.index:s.n])
	clear(s.buf[s.n-removed : s.n])
	s.n -= removed
	s.bump()
	return s.iter(first.index)
}

// PopBack removes the last element.
func (s *Store[T]) PopBack() {
	if breach.Enabled {
		if !s.checkLive("pop_back") {
			return
		}
		if s.n == 0 {
			s.report(&breach.Breach{
				Kind:    breach.KindEmptyStore,
				Op:      "pop_back",
				Message: "pop_back on empty store",
			})
			return
		}
	}
	s.n--
	clear(s.buf[s.n : s.n+1])
	s.bump()
}

// Clear removes every element and keeps the capacity.
func (s *Store[T]) Clear() {
	if breach.Enabled && !s.checkLive("clear") {
		return
	}
	clear(s.buf[:s.n])
	s.n = 0
	s.bump()
}

// Assign replaces the contents with vals.
func (s *Store[T]) Assign(vals ...T) error {
	if breach.Enabled && !s.checkLive("assign") {
		return nil
	}
	if len(vals) > len(s.buf) {
		buf, err := s.allocator().Allocate(s.recommend(len(vals)))
		if err != nil {
			return fmt.Errorf("assign: %w", err)
		}
		s.release()
		s.buf = buf
	} else if len(vals) < s.n {
		clear(s.buf[len(vals):s.n])
	}
	s.n = copy(s.buf, vals)
	s.bump()
	return nil
}

// Resize sets the length to n, zero-filling new slots.
func (s *Store[T]) Resize(n int) error {
	if breach.Enabled {
		if !s.checkLive("resize") {
			return nil
		}
		if n < 0 {
			s.report(&breach.Breach{
				Kind:    breach.KindOutOfRange,
				Op:      "resize",
				Index:   n,
				Len:     s.n,
				Message: fmt.Sprintf("negative length %d", n),
			})
			return nil
		}
	}
	if n > len(s.buf) {
		if err := s.grow(s.recommend(n)); err != nil {
			return fmt.Errorf("resize: %w", err)
		}
	} else if n < s.n {
		clear(s.buf[n:s.n])
	}
	s.n = n
	s.bump()
	return nil
}

// Reserve ensures Cap >= n. It reallocates, and bumps the generation, only
// when the capacity actually grows.
func (s *Store[T]) Reserve(n int) error {
	if breach.Enabled && !s.checkLive("reserve") {
		return nil
	}
	if n <= len(s.buf) {
		return nil
	}
	if err := s.grow(n); err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	s.bump()
	return nil
}

// Destroy releases the buffer and marks the store dead. Iterators issued by
// the store breach on their next use. Destroy is idempotent.
func (s *Store[T]) Destroy() {
	if s.gen == DeadGeneration {
		return
	}
	s.release()
	s.buf = nil
	s.n = 0
	s.gen = DeadGeneration
}

// grow moves the live elements into a block of newCap slots.
// It does not bump the generation; callers do.
func (s *Store[T]) grow(newCap int) error {
	buf, err := s.allocator().Allocate(newCap)
	if err != nil {
		return err
	}
	copy(buf, s.buf[:s.n])
	s.release()
	s.buf = buf
	return nil
}

// release hands the current block back to the allocator.
func (s *Store[T]) release() {
	if len(s.buf) == 0 {
		return
	}
	clear(s.buf[:s.n])
	s.allocator().Deallocate(s.buf, len(s.buf))
}

// recommend returns the capacity to grow to for need elements.
func (s *Store[T]) recommend(need int) int {
	return max(2*len(s.buf), need)
}

func (s *Store[T]) bump() {
	s.gen++
}

func (s *Store[T]) iter(idx int) Iterator[T] {
	if s.self == (weak.Pointer[Store[T]]{}) {
		s.self = weak.Make(s)
	}
	return Iterator[T]{ref: s.self, index: idx, gen: s.gen, rep: s.rep}
}

func (s *Store[T]) allocator() alloc.Allocator[T] {
	if s.alloc == nil {
		s.alloc = alloc.Heap[T]{}
	}
	return s.alloc
}

func (s *Store[T]) terminated() Iterator[T] {
	it := s.iter(0)
	it.terminated = true
	return it
}

func (s *Store[T]) report(b *breach.Breach) {
	b.StoreGeneration = s.gen
	breach.ReportTo(s.rep, b)
}

// checkLive reports a DEAD_STORE breach for operations on a destroyed store.
func (s *Store[T]) checkLive(op string) bool {
	if s.gen != DeadGeneration {
		return true
	}
	s.report(&breach.Breach{
		Kind:    breach.KindDeadStore,
		Op:      op,
		Message: "store destroyed",
	})
	return false
}

// checkPosition validates an iterator argument of a mutating operation: it
// must be current, belong to s and lie in [0, Len], or [0, Len) when
// dereferenceable is set.
func (s *Store[T]) checkPosition(pos Iterator[T], op string, dereferenceable bool) bool {
	if !s.checkLive(op) {
		return false
	}
	owner, ok := pos.resolve(op, 0)
	if !ok {
		return false
	}
	if owner != s {
		s.report(&breach.Breach{
			Kind:    breach.KindForeignIterator,
			Op:      op,
			Index:   pos.index,
			Len:     s.n,
			Message: "iterator belongs to another store",
		})
		return false
	}
	limit := s.n
	if dereferenceable {
		limit = s.n - 1
	}
	if pos.index < 0 || pos.index > limit {
		kind := breach.KindOutOfRange
		if dereferenceable && pos.index == s.n {
			kind = breach.KindEndDereference
		}
		s.report(&breach.Breach{
			Kind:               kind,
			Op:                 op,
			Index:              pos.index,
			Len:                s.n,
			IteratorGeneration: pos.gen,
			Message:            fmt.Sprintf("position %d outside [0, %d]", pos.index, limit),
		})
		return false
	}
	return true
}

// staleKind distinguishes a destroyed store from an ordinary mutation.
func staleKind(gen uint64) breach.Kind {
	if gen == DeadGeneration {
		return breach.KindDeadStore
	}
	return breach.KindStaleGeneration
}
