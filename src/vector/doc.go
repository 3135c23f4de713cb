// Package vector implements the state vectors exchanged during a snapshot
// round.
//
// A State holds one entry per process of the network, indexed by process ID.
// Entry i summarises what is known about process i: an activity flag
// (Unknown, Passive, Active) or any monotonic counter. Vectors collected from
// the leaves of the spanning tree are merged on their way up to the root with
// an element-wise maximum, which is idempotent, commutative and associative,
// so the merged result does not depend on the order in which children report.
//
// At the root, the fully merged State is evaluated against a Predicate to
// decide whether the network has terminated.
package vector
