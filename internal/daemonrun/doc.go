// Package daemonrun assembles a pipecopy process: configuration checks,
// logging, the single-instance lock, the copy ledger, metrics, the control
// socket, and the pipeline itself.
//
// Run blocks until the pipeline stops, whether from the exit command on
// stdin, a signal, or a stop request over the control socket.
package daemonrun
