package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqguard/internal/breach"
)

func sampleResult() *Result {
	zero, one := 0, 1
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, Op: OpBegin, Iterator: "i", Index: &zero},
		{Seq: 2, Op: OpNext, Iterator: "i", Index: &one},
		{Seq: 3, Op: OpAppend, Generation: 1},
		{Seq: 4, Op: OpDeref, Iterator: "i", Generation: 1, Breach: "STALE_GENERATION"},
	}
	r.Breaches = []breach.Breach{{Kind: breach.KindStaleGeneration, Op: "deref"}}
	r.State = FinalState{Len: 2, Cap: 2, Generation: 1, Values: []any{int64(1), int64(2)}}
	return r
}

func TestAssertTraceContains(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceContains, Op: OpNext}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceContains, Op: OpDeref, Iterator: "i"}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceContains, Op: OpDeref, Breach: "stale_generation"}))

	err := evaluate(r, Assertion{Type: AssertTraceContains, Op: OpDeref, Breach: "OUT_OF_RANGE"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, ae.Expected, "breaching OUT_OF_RANGE")
	assert.Contains(t, ae.Error(), "Full trace:")
	assert.Contains(t, ae.Error(), "[4] deref i !STALE_GENERATION")

	assert.Error(t, evaluate(r, Assertion{Type: AssertTraceContains, Op: OpErase}))
	assert.Error(t, evaluate(r, Assertion{Type: AssertTraceContains, Op: OpBegin, Iterator: "j"}))
}

func TestAssertTraceOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceOrder, Ops: []string{OpBegin, OpAppend, OpDeref}}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceOrder, Ops: []string{OpBegin, OpDeref}}))

	err := evaluate(r, Assertion{Type: AssertTraceOrder, Ops: []string{OpDeref, OpBegin}})
	assert.ErrorContains(t, err, "should be before")

	err = evaluate(r, Assertion{Type: AssertTraceOrder, Ops: []string{OpBegin, OpClear}})
	assert.ErrorContains(t, err, "missing op: clear")
}

func TestAssertTraceCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceCount, Op: OpBegin, Count: 1}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertTraceCount, Op: OpClear, Count: 0}))
	assert.ErrorContains(t, evaluate(r, Assertion{Type: AssertTraceCount, Op: OpBegin, Count: 2}), "1 occurrences")
}

func TestAssertBreachCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluate(r, Assertion{Type: AssertBreachCount, Count: 1}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertBreachCount, Breach: "STALE_GENERATION", Count: 1}))
	assert.NoError(t, evaluate(r, Assertion{Type: AssertBreachCount, Breach: "DEAD_STORE", Count: 0}))

	err := evaluate(r, Assertion{Type: AssertBreachCount, Breach: "DEAD_STORE", Count: 1})
	assert.ErrorContains(t, err, "1 DEAD_STORE breaches")
}

func TestAssertFinalState(t *testing.T) {
	r := sampleResult()
	two := 2
	one := uint64(1)
	f := false

	assert.NoError(t, evaluate(r, Assertion{Type: AssertFinalState, Expect: &StateExpect{
		Len: &two, Cap: &two, Generation: &one, Values: []any{1, 2}, Destroyed: &f,
	}}))

	zero := 0
	err := evaluate(r, Assertion{Type: AssertFinalState, Expect: &StateExpect{
		Len: &zero, Values: []any{2, 1},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "len: want 0, got 2")
	assert.Contains(t, err.Error(), "values: want [2 1], got [1 2]")
}

func TestSameValues(t *testing.T) {
	assert.True(t, sameValues([]any{1, int64(2)}, []any{int64(1), int64(2)}))
	assert.True(t, sameValues([]any{"a"}, []any{"a"}))
	assert.True(t, sameValues([]any{}, []any{}))

	assert.False(t, sameValues([]any{1}, []any{"1"}))
	assert.False(t, sameValues([]any{"a"}, []any{int64(1)}))
	assert.False(t, sameValues([]any{true}, []any{"true"}))
	assert.False(t, sameValues([]any{1}, []any{int64(1), int64(2)}))
}

func TestEvaluateAssertions_Prefixes(t *testing.T) {
	r := sampleResult()
	failures := EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceCount, Op: OpBegin, Count: 1},
		{Type: AssertTraceCount, Op: OpBegin, Count: 3},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "assertions[1]:")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
