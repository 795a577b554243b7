package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/seqguard/internal/breach"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Op)
			if ev.Iterator != "" {
				fmt.Fprintf(&buf, " %s", ev.Iterator)
			}
			if ev.Breach != "" {
				fmt.Fprintf(&buf, " !%s", ev.Breach)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertBreachCount:
		return assertBreachCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks for an event with the op and, when given, the
// iterator and breach kind.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want := normalizeKind(a.Breach)
	for _, ev := range trace {
		if ev.Op != a.Op {
			continue
		}
		if a.Iterator != "" && ev.Iterator != a.Iterator {
			continue
		}
		if want != "" && ev.Breach != want {
			continue
		}
		return nil
	}

	expected := "op " + a.Op
	if a.Iterator != "" {
		expected += " on " + a.Iterator
	}
	if want != "" {
		expected += " breaching " + want
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the given order.
// Ops don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if positions[ev.Op] == 0 {
			positions[ev.Op] = i + 1 // 1-indexed for readability
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the op was executed exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertBreachCount checks the number of breaches, optionally of one kind.
func assertBreachCount(result *Result, a Assertion) error {
	want := normalizeKind(a.Breach)
	count := 0
	for _, b := range result.Breaches {
		if want == "" || string(b.Kind) == want {
			count++
		}
	}
	if count != a.Count {
		label := "breaches"
		if want != "" {
			label = want + " breaches"
		}
		return &AssertionError{
			Type:     AssertBreachCount,
			Expected: fmt.Sprintf("%d %s", a.Count, label),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState compares the final store state with a subset of fields.
func assertFinalState(result *Result, a Assertion) error {
	exp := a.Expect
	st := result.State

	var mismatches []string
	if exp.Destroyed != nil && *exp.Destroyed != st.Destroyed {
		mismatches = append(mismatches, fmt.Sprintf("destroyed: want %v, got %v", *exp.Destroyed, st.Destroyed))
	}
	if exp.Len != nil && *exp.Len != st.Len {
		mismatches = append(mismatches, fmt.Sprintf("len: want %d, got %d", *exp.Len, st.Len))
	}
	if exp.Cap != nil && *exp.Cap != st.Cap {
		mismatches = append(mismatches, fmt.Sprintf("cap: want %d, got %d", *exp.Cap, st.Cap))
	}
	if exp.Generation != nil && *exp.Generation != st.Generation {
		mismatches = append(mismatches, fmt.Sprintf("generation: want %d, got %d", *exp.Generation, st.Generation))
	}
	if exp.Values != nil && !sameValues(exp.Values, st.Values) {
		mismatches = append(mismatches, fmt.Sprintf("values: want %v, got %v", exp.Values, st.Values))
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "state matches expect",
		Actual:   strings.Join(mismatches, "; "),
	}
}

// sameValues compares YAML-decoded expected elements with store elements.
func sameValues(want, got []any) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		w, g := want[i], got[i]
		if wi, err := toInt64(w); err == nil {
			if gi, ok := g.(int64); !ok || gi != wi {
				return false
			}
			continue
		}
		ws, ok := w.(string)
		if !ok {
			return false
		}
		if gs, ok := g.(string); !ok || gs != ws {
			return false
		}
	}
	return true
}

func normalizeKind(s string) string {
	if s == "" {
		return ""
	}
	k, err := breach.ParseKind(s)
	if err != nil {
		return s
	}
	return string(k)
}
