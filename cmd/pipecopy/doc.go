// Package main hosts the pipecopy CLI entrypoint and command graph.
//
// `pipecopy run` owns the pipeline: it creates the named pipe, copies every
// path written to it into the destination directory, and stops when the exit
// command arrives on stdin. The remaining commands are thin clients: `send`
// writes paths into a running pipe, `status` and `stop` talk to the control
// socket, and `history` reads the copy ledger directly.
package main
