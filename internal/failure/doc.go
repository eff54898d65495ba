// Package failure defines the error markers shared by the pipeline
// components.
//
// Every typed error here unwraps to one of the exported sentinels so callers
// can branch with errors.Is without importing the concrete type. The daemon
// runtime uses the sentinel to decide whether a failure is fatal at startup
// (configuration, transport creation) or recoverable per record (copy,
// malformed input).
package failure
