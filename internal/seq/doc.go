// Package seq implements a contiguous sequence store whose iterators detect
// their own misuse.
//
// # Generations
//
// Every Store carries a generation counter. It starts at 0 and is bumped
// exactly once by each operation that may move elements:
//
//   - Append, only when it has to reallocate
//   - Insert, Erase, EraseRange, PopBack, Clear, Assign, Resize
//   - Reserve, only when it grows the buffer
//
// Destroy moves the generation to DeadGeneration, which no live store ever
// reaches.
//
// An Iterator records the generation it was issued under. Every operation
// except copying compares that value with the store's current generation
// before touching anything, so an iterator that survived a reallocation or a
// shifting mutation is caught on first use rather than reading moved memory.
// Appends that fit in the existing capacity leave the generation alone and
// outstanding iterators keep working.
//
// # Back-References
//
// Iterators hold a weak.Pointer to their store. Holding an iterator never
// keeps a store alive; an iterator whose store was destroyed or collected
// reports a DEAD_STORE breach.
//
// # Breaches
//
// Violations go to a breach.Reporter: the one given in Options, or the
// process-wide reporter. When the reporter returns, the failed operation
// yields a terminated iterator, a nil pointer or a zero value, and any
// further use of a terminated iterator is itself a breach.
//
// With -tags seqguard_release, breach.Enabled is false and the checks
// compile away. Misuse then falls through to Go's own slice bounds checks.
//
// # Concurrency
//
// A Store is not safe for concurrent mutation. Readers may share a store
// only while no goroutine mutates it.
package seq
