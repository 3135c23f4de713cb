package peers

import "fmt"

// Peer is a process of the network together with its neighbours.
type Peer struct {
	ID        int    `json:"id"`
	NetAddr   string `json:"net_addr"`
	Moniker   string `json:"moniker,omitempty"`
	Neighbors []int  `json:"neighbors"`
}

// NewPeer ...
func NewPeer(id int, netAddr string, neighbors ...int) *Peer {
	return &Peer{
		ID:        id,
		NetAddr:   netAddr,
		Moniker:   fmt.Sprintf("node%d", id),
		Neighbors: neighbors,
	}
}

// IsNeighbor reports whether id is one of p's neighbours.
func (p *Peer) IsNeighbor(id int) bool {
	for _, n := range p.Neighbors {
		if n == id {
			return true
		}
	}
	return false
}

// String ...
func (p *Peer) String() string {
	return fmt.Sprintf("%d@%s", p.ID, p.NetAddr)
}
