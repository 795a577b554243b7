//go:build !seqguard_release

package breach

// Enabled reports whether iterator validation is compiled in.
//
// Build with -tags seqguard_release to turn every check into dead code.
const Enabled = true
