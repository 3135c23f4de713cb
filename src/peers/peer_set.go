package peers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// PeerSet is the set of all processes of a network.
type PeerSet struct {
	Peers []*Peer          `json:"peers"`
	ByID  map[int]*Peer    `json:"-"`
	Addr  map[string]*Peer `json:"-"`
}

// NewPeerSet creates a new PeerSet from a list of Peers. Peers are sorted by
// ID.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByID: make(map[int]*Peer),
		Addr: make(map[string]*Peer),
	}

	sorted := append([]*Peer{}, peers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, peer := range sorted {
		peerSet.ByID[peer.ID] = peer
		peerSet.Addr[peer.NetAddr] = peer
	}
	peerSet.Peers = sorted

	return peerSet
}

// Len returns the number of Peers in the PeerSet.
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}

// IDs returns the PeerSet's slice of IDs in ascending order.
func (peerSet *PeerSet) IDs() []int {
	res := make([]int, 0, len(peerSet.Peers))
	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID)
	}
	return res
}

// Neighbors returns the neighbours of the given process.
func (peerSet *PeerSet) Neighbors(id int) ([]*Peer, error) {
	peer, ok := peerSet.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown peer %d", id)
	}
	res := make([]*Peer, 0, len(peer.Neighbors))
	for _, n := range peer.Neighbors {
		np, ok := peerSet.ByID[n]
		if !ok {
			return nil, fmt.Errorf("peer %d lists unknown neighbor %d", id, n)
		}
		res = append(res, np)
	}
	return res, nil
}

// Validate checks the topology invariants the protocol relies on: IDs are
// 0..n-1 without duplicates, no process is its own neighbour, every neighbour
// exists, and the neighbour relation is symmetric.
func (peerSet *PeerSet) Validate() error {
	if len(peerSet.ByID) != len(peerSet.Peers) {
		return fmt.Errorf("duplicate peer IDs in peer-set")
	}
	for i, peer := range peerSet.Peers {
		if peer.ID != i {
			return fmt.Errorf("peer IDs should be 0..%d, found %d", len(peerSet.Peers)-1, peer.ID)
		}
		seen := make(map[int]bool, len(peer.Neighbors))
		for _, n := range peer.Neighbors {
			if n == peer.ID {
				return fmt.Errorf("peer %d lists itself as a neighbor", peer.ID)
			}
			if seen[n] {
				return fmt.Errorf("peer %d lists neighbor %d twice", peer.ID, n)
			}
			seen[n] = true
			other, ok := peerSet.ByID[n]
			if !ok {
				return fmt.Errorf("peer %d lists unknown neighbor %d", peer.ID, n)
			}
			if !other.IsNeighbor(peer.ID) {
				return fmt.Errorf("asymmetric link: %d lists %d but not the reverse", peer.ID, n)
			}
		}
	}
	return nil
}

// Connected reports whether every process is reachable from the given root.
func (peerSet *PeerSet) Connected(root int) bool {
	if _, ok := peerSet.ByID[root]; !ok {
		return false
	}
	visited := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range peerSet.ByID[id].Neighbors {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return len(visited) == len(peerSet.Peers)
}

// Marshal marshals the peer slice.
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Complete returns a fully connected PeerSet of n processes with the given
// addresses.
func Complete(addrs []string) *PeerSet {
	peers := make([]*Peer, len(addrs))
	for i, addr := range addrs {
		var neighbors []int
		for j := range addrs {
			if j != i {
				neighbors = append(neighbors, j)
			}
		}
		peers[i] = NewPeer(i, addr, neighbors...)
	}
	return NewPeerSet(peers)
}

// Chain returns a PeerSet where process i is linked to i-1 and i+1.
func Chain(addrs []string) *PeerSet {
	peers := make([]*Peer, len(addrs))
	for i, addr := range addrs {
		var neighbors []int
		if i > 0 {
			neighbors = append(neighbors, i-1)
		}
		if i < len(addrs)-1 {
			neighbors = append(neighbors, i+1)
		}
		peers[i] = NewPeer(i, addr, neighbors...)
	}
	return NewPeerSet(peers)
}
