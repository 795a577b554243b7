package breach

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes breaches.
type Kind string

const (
	// KindStaleGeneration indicates the store mutated after the iterator was issued.
	KindStaleGeneration Kind = "STALE_GENERATION"

	// KindOutOfRange indicates a position outside [0, len] or an index outside [0, len).
	KindOutOfRange Kind = "OUT_OF_RANGE"

	// KindEndDereference indicates a dereference of the one-past-end position.
	KindEndDereference Kind = "END_DEREFERENCE"

	// KindDeadStore indicates use of an iterator or store after the store was destroyed.
	KindDeadStore Kind = "DEAD_STORE"

	// KindForeignIterator indicates iterators from different stores were mixed.
	KindForeignIterator Kind = "FOREIGN_ITERATOR"

	// KindSingularIterator indicates use of an iterator never attached to a store.
	KindSingularIterator Kind = "SINGULAR_ITERATOR"

	// KindTerminatedIterator indicates use of an iterator produced by a failed operation.
	KindTerminatedIterator Kind = "TERMINATED_ITERATOR"

	// KindEmptyStore indicates an element removal on an empty store.
	KindEmptyStore Kind = "EMPTY_STORE"
)

// Kinds lists every breach kind in declaration order.
var Kinds = []Kind{
	KindStaleGeneration,
	KindOutOfRange,
	KindEndDereference,
	KindDeadStore,
	KindForeignIterator,
	KindSingularIterator,
	KindTerminatedIterator,
	KindEmptyStore,
}

// ParseKind maps a scenario spelling ("out_of_range" or "OUT_OF_RANGE") to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s || k.Slug() == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown breach kind %q", s)
}

// Slug returns the lower-case spelling used in scenario files.
func (k Kind) Slug() string {
	return strings.ToLower(string(k))
}

// Breach describes one detected contract violation.
//
// Generation fields are zero when the violation was detected before the
// store could be consulted (singular or terminated iterators).
type Breach struct {
	Kind Kind

	// Op is the operation that detected the breach (e.g. "advance", "deref").
	Op string

	// Index is the iterator position, or the requested index for At.
	Index int

	// Delta is the requested movement for advance, zero otherwise.
	Delta int

	// Len is the store length at detection time.
	Len int

	IteratorGeneration uint64
	StoreGeneration    uint64

	Message string
}

// Error implements the error interface.
func (b *Breach) Error() string {
	if b.Message == "" {
		return fmt.Sprintf("%s: %s", b.Kind, b.Op)
	}
	return fmt.Sprintf("%s: %s: %s", b.Kind, b.Op, b.Message)
}

// KindOf returns the breach kind carried by err, or "" if err is not a breach.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var b *Breach
	if errors.As(err, &b) {
		return b.Kind
	}
	return ""
}

// IsStale returns true if err is a stale-generation breach.
func IsStale(err error) bool {
	return KindOf(err) == KindStaleGeneration
}

// IsOutOfRange returns true if err is a positioning or end-dereference breach.
func IsOutOfRange(err error) bool {
	k := KindOf(err)
	return k == KindOutOfRange || k == KindEndDereference
}

// IsDeadStore returns true if err is a dead-store breach.
func IsDeadStore(err error) bool {
	return KindOf(err) == KindDeadStore
}
