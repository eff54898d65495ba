// Package logs reads pipecopy's per-run log files for `pipecopy logs`.
//
// Last returns the final N lines of a file with bounded memory, and Follow
// streams lines appended after an offset until its context is cancelled.
package logs
