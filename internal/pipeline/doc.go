// Package pipeline wires the transport listener, the handoff queue, and the
// file copier into one controllable unit.
//
// The controller owns the queue and both workers. Shutdown runs exactly once
// and always in the same order: finish the queue so no new path is accepted,
// wait for the copier to drain what is already buffered, poke the listener out
// of its blocking read, wait for it, then remove the named pipe. Workers never
// consult the controller state; they observe only the queue and the poke.
package pipeline
