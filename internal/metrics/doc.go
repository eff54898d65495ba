// Package metrics exposes pipecopy counters to Prometheus and to the status
// command.
//
// Metrics implements the observer interfaces of the transport listener and
// the file copier. Every counter is mirrored in an atomic so Snapshot can
// report totals without scraping the registry.
package metrics
