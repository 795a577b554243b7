//go:build seqguard_release

package breach

// Enabled reports whether iterator validation is compiled in.
const Enabled = false
