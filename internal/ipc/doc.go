// Package ipc exposes the running pipeline over JSON-RPC on a Unix domain
// socket.
//
// The server registers a "Pipecopy" service with Status and Stop methods; the
// client wraps net/rpc so CLI commands can query or stop a daemon started by
// "pipecopy run" in another terminal.
package ipc
