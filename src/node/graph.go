package node

import (
	cm "github.com/mosaicnetworks/spantree/src/common"
	"github.com/mosaicnetworks/spantree/src/history"
)

// Infos is the object used by Graph to collect information about the tree and
// the recorded rounds of a node.
type Infos struct {
	Tree   TreeInfo
	Rounds []*history.Round
}

// Graph is a struct containing a node which is used to collect information
// about the spanning tree and the round history in view of producing a visual
// representation of them.
type Graph struct {
	*Node
}

// NewGraph instantiates a Graph from a Node.
func NewGraph(n *Node) *Graph {
	return &Graph{
		Node: n,
	}
}

// GetRounds returns the recorded rounds still available in the store, oldest
// first. Rounds evicted from an in-memory store, or never reached by this
// process, are skipped.
func (g *Graph) GetRounds() []*history.Round {
	res := []*history.Round{}

	store := g.Node.store
	if store == nil {
		return res
	}

	for round := 0; round <= store.LastRound(); round++ {
		r, err := store.GetRound(round)

		if cm.IsStore(err, cm.TooLate) || cm.IsStore(err, cm.KeyNotFound) {
			continue
		}
		if err != nil {
			break
		}

		res = append(res, r)
	}

	return res
}

// GetInfos returns an Infos struct representing the node's view.
func (g *Graph) GetInfos() Infos {
	return Infos{
		Tree:   g.Node.Tree(),
		Rounds: g.GetRounds(),
	}
}
