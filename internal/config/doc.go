// Package config loads, normalizes, and validates pipecopy configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PIPECOPY_TRANSPORT and PIPECOPY_DESTINATION. Positional command-line values
// are layered on top with ApplyArgs before Validate runs, so a missing
// transport or destination surfaces as a ConfigurationError before any worker
// starts.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
