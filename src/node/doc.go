// Package node implements the reactive component of a spantree process.
//
// A Node owns a Process, the monitor under which every message handler runs,
// and two protocol layers registered on it.
//
// Spanning Tree
//
// The root invites all its neighbours. A process accepts the first invitation
// it receives, making the sender its parent, and forwards the invitation to
// all its other neighbours. Any later invitation is rejected. A process is
// Done once every invitation it sent has been answered; the neighbours that
// accepted are its children.
//
// Snapshot Rounds
//
// Once the tree is Done, the root repeatedly broadcasts a round down the tree.
// Each process contributes a local state vector, waits for the merged vectors
// of all its children and forwards the result to its parent. The root
// evaluates a predicate on the global vector; when it holds, termination is
// declared and a halt is relayed to every process.
//
// Inbound messages are routed to one inbox per neighbour and handed to the
// Process in order by a dedicated goroutine, so a handler blocked on one
// channel never stalls the others.
package node
