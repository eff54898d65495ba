// Package logging assembles structured slog loggers and formatting helpers used
// across pipecopy components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes helpers that tag log lines with the run identifier,
// component name, and source or destination paths. Warnings carry an
// event_type, error_hint, and impact so an operator can tell what failed and
// what to do next. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
