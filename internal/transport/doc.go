// Package transport receives newline-delimited file paths over a named pipe.
//
// Listener owns the FIFO for the lifetime of a run: it creates the pipe,
// reads raw chunks from whichever writers connect, rebuilds complete records
// with a Splitter, and hands each record to a Sink. Because a blocking read on
// a FIFO cannot be interrupted from another goroutine, shutdown is signalled
// by Poke, which marks the listener as stopping and then writes a sentinel
// newline so the pending read returns.
package transport
