// Package breach reports iterator contract violations.
//
// A breach is a detected misuse of a sequence iterator: advancing outside
// the valid range, dereferencing the end position, using an iterator after
// the store reallocated or was destroyed, or mixing iterators of different
// stores. Breaches are never returned as errors from the operation that
// detected them. They are delivered to a Reporter, and the Reporter decides
// whether the process ends.
//
// # Reporters
//
//   - Terminator logs the breach and exits the process. This is the default.
//   - Recorder keeps every breach and returns control to the caller.
//   - Instrumented counts breaches in Prometheus before delegating.
//
// The process-wide reporter is swapped with SetReporter:
//
//	rec := breach.NewRecorder()
//	restore := breach.SetReporter(rec)
//	defer restore()
//
// # Build Modes
//
// Enabled is a constant. Under the seqguard_release build tag it is false
// and every check guarded by it is removed by the compiler.
package breach
