// Package harness runs conformance scenarios against validated stores.
//
// A scenario builds one store, walks named iterators through it and records
// one trace event per step. The first breach ends the run, the way a
// terminating reporter would end the process, so each scenario exercises at
// most one contract violation.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: add_past_end
//	description: "Advancing past end breaches"
//	element: int          # int | string
//	allocator: counting   # heap | counting | limited | pooled
//	initial: [0]
//	steps:
//	  - op: begin
//	    as: i
//	  - op: advance
//	    iter: i
//	    delta: 2
//	    expect:
//	      breach: OUT_OF_RANGE
//	assertions:
//	  - type: breach_count
//	    count: 1
//	  - type: final_state
//	    expect: { len: 1, values: [0] }
//
// Files are checked against an embedded CUE schema before they are decoded
// with strict field checking.
//
// # Assertion Types
//
//   - trace_contains: an event with the op, optionally on an iterator or with a breach kind
//   - trace_order: ops first appear in the given order
//   - trace_count: an op was executed exactly N times
//   - final_state: subset match on len, cap, generation, values, destroyed
//   - breach_count: number of breaches, optionally of one kind
//
// # Golden Traces
//
// RunWithGolden and AssertGolden compare the canonical JSON of a run with
// testdata/golden/<name>.golden through goldie. CheckGolden and WriteGolden
// do the same outside of go test for the CLI.
package harness
