// Package peers defines the processes of a spantree network and the static
// topology connecting them.
//
// Every process is identified by a dense integer ID in [0, n), which doubles
// as its index in state vectors. A Peer lists the IDs of its neighbours; the
// neighbour relation must be symmetric, ie. if A lists B then B lists A, and
// it may not change during a run.
//
// Upon starting up, a node expects to find a peers.json file in its data
// directory describing the whole network. PeerSet.Validate is called at
// startup to check the invariants above; the protocol itself never re-checks
// them.
package peers
