package node

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/mosaicnetworks/spantree/src/history"
	"github.com/mosaicnetworks/spantree/src/net"
	"github.com/mosaicnetworks/spantree/src/peers"
	"github.com/mosaicnetworks/spantree/src/vector"
)

type topology func(addrs []string) *peers.PeerSet

func initTransports(n int) ([]*net.InmemTransport, []string) {
	transports := make([]*net.InmemTransport, n)
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		addr, trans := net.NewInmemTransport("", 2*time.Second)
		transports[i] = trans
		addrs[i] = addr
	}
	net.ConnectAll(transports...)
	return transports, addrs
}

func initNodes(n int,
	topo topology,
	active map[int]bool,
	t testing.TB) ([]*Node, []*ActivityRecorder) {

	transports, addrs := initTransports(n)
	peerSet := topo(addrs)
	if err := peerSet.Validate(); err != nil {
		t.Fatalf("invalid topology: %v", err)
	}

	nodes := []*Node{}
	recorders := []*ActivityRecorder{}

	for i := 0; i < n; i++ {
		conf := TestConfig(t)

		rec := NewActivityRecorder(i, active[i])
		store := history.NewInmemStore(100)

		node, err := NewNode(conf, i, peerSet, store, transports[i], rec, vector.AllQuiescent())
		if err != nil {
			t.Fatalf("failed to create node%d: %s", i, err)
		}
		if err := node.Init(); err != nil {
			t.Fatalf("failed to initialize node%d: %s", i, err)
		}

		nodes = append(nodes, node)
		recorders = append(recorders, rec)
	}

	return nodes, recorders
}

func runNodes(nodes []*Node) {
	for _, n := range nodes {
		n.RunAsync()
	}
}

func shutdownNodes(nodes []*Node) {
	for _, n := range nodes {
		n.Shutdown()
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	stopper := time.After(timeout)
	for !cond() {
		select {
		case <-stopper:
			t.Fatalf("timeout waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func waitTrees(t *testing.T, nodes []*Node) {
	waitFor(t, 5*time.Second, "spanning tree", func() bool {
		for _, n := range nodes {
			if n.Tree().State != Done.String() {
				return false
			}
		}
		return true
	})
}

func waitTerminated(t *testing.T, nodes []*Node) {
	waitFor(t, 10*time.Second, "termination", func() bool {
		for _, n := range nodes {
			if n.GetState() != Terminated {
				return false
			}
		}
		return true
	})
}

// checkTree verifies that the parent pointers form a spanning tree rooted at
// root, consistent with the children lists and the neighbour graph.
func checkTree(t *testing.T, nodes []*Node, root int) {
	infos := make(map[int]TreeInfo)
	for _, n := range nodes {
		infos[n.ID()] = n.Tree()
	}

	roots := 0
	for id, info := range infos {
		if info.Parent == id {
			roots++
			if id != root {
				t.Fatalf("node %d is its own parent but root is %d", id, root)
			}
			continue
		}
		if info.Parent < 0 {
			t.Fatalf("node %d has no parent", id)
		}
		if !nodes[id].peers.ByID[id].IsNeighbor(info.Parent) {
			t.Fatalf("node %d has non-neighbour parent %d", id, info.Parent)
		}
		found := false
		for _, c := range infos[info.Parent].Children {
			if c == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("node %d is not a child of its parent %d", id, info.Parent)
		}
	}
	if roots != 1 {
		t.Fatalf("expected exactly one root, got %d", roots)
	}

	for id, info := range infos {
		for _, c := range info.Children {
			if infos[c].Parent != id {
				t.Fatalf("node %d lists %d as child, whose parent is %d", id, c, infos[c].Parent)
			}
		}

		// walk up to the root without cycles
		cur, hops := id, 0
		for cur != root {
			cur = infos[cur].Parent
			hops++
			if hops > len(nodes) {
				t.Fatalf("cycle above node %d", id)
			}
		}
	}
}

func TestCompleteGraphTree(t *testing.T) {
	nodes, _ := initNodes(4, peers.Complete, map[int]bool{}, t)
	defer shutdownNodes(nodes)

	runNodes(nodes)
	waitTrees(t, nodes)

	checkTree(t, nodes, 0)

	root := nodes[0].Tree()
	if !root.Root || len(root.Children) < 1 || len(root.Children) > 3 {
		t.Fatalf("root should have 1 to 3 children, got %v", root.Children)
	}
}

func TestChainTree(t *testing.T) {
	nodes, _ := initNodes(4, peers.Chain, map[int]bool{}, t)
	defer shutdownNodes(nodes)

	runNodes(nodes)
	waitTrees(t, nodes)

	checkTree(t, nodes, 0)

	for i := 1; i < 4; i++ {
		if p := nodes[i].Tree().Parent; p != i-1 {
			t.Fatalf("node %d parent should be %d, not %d", i, i-1, p)
		}
	}
	if c := nodes[3].Tree().Children; len(c) != 0 {
		t.Fatalf("leaf should have no children, got %v", c)
	}
}

func randomConnected(seed int64) topology {
	return func(addrs []string) *peers.PeerSet {
		r := rand.New(rand.NewSource(seed))
		n := len(addrs)
		adj := make([]map[int]bool, n)
		for i := range adj {
			adj[i] = make(map[int]bool)
		}
		link := func(a, b int) {
			adj[a][b] = true
			adj[b][a] = true
		}
		// random spanning backbone, then extra edges
		for i := 1; i < n; i++ {
			link(i, r.Intn(i))
		}
		for k := 0; k < n; k++ {
			a, b := r.Intn(n), r.Intn(n)
			if a != b {
				link(a, b)
			}
		}
		ps := make([]*peers.Peer, n)
		for i := 0; i < n; i++ {
			neighbors := []int{}
			for j := 0; j < n; j++ {
				if adj[i][j] {
					neighbors = append(neighbors, j)
				}
			}
			ps[i] = peers.NewPeer(i, addrs[i], neighbors...)
		}
		return peers.NewPeerSet(ps)
	}
}

func TestLateNeighbor(t *testing.T) {
	nodes, _ := initNodes(3, peers.Chain, map[int]bool{}, t)
	defer shutdownNodes(nodes)

	// node 2 cannot be reached yet
	late := nodes[2].trans.(*net.InmemTransport)
	for _, n := range nodes[:2] {
		n.trans.(*net.InmemTransport).Disconnect(late.LocalAddr())
	}

	runNodes(nodes)

	time.Sleep(100 * time.Millisecond)
	if s := nodes[0].Tree().State; s == Done.String() {
		t.Fatalf("root tree should wait for node 1, which waits for node 2")
	}

	for _, n := range nodes[:2] {
		n.trans.(*net.InmemTransport).Connect(late.LocalAddr(), late)
	}

	waitTerminated(t, nodes)
	checkTree(t, nodes, 0)

	if p := nodes[2].Tree().Parent; p != 1 {
		t.Fatalf("node 2 parent should be 1, not %d", p)
	}
}

func TestRandomGraphTree(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			nodes, _ := initNodes(7, randomConnected(seed), map[int]bool{}, t)
			defer shutdownNodes(nodes)

			runNodes(nodes)
			waitTrees(t, nodes)
			checkTree(t, nodes, 0)
		})
	}
}

func TestTermination(t *testing.T) {
	nodes, _ := initNodes(4, peers.Complete, map[int]bool{}, t)
	defer shutdownNodes(nodes)

	runNodes(nodes)
	waitTerminated(t, nodes)

	for _, n := range nodes {
		res, ok := n.LastResult()
		if !ok || !res.Terminated {
			t.Fatalf("node %d should report termination, got %#v", n.ID(), res)
		}
		expected := vector.State{vector.Passive, vector.Passive, vector.Passive, vector.Passive}
		if !res.Vector.Equal(expected) {
			t.Fatalf("node %d final vector should be %s, not %s", n.ID(), expected, res.Vector)
		}
	}
}

func TestActiveProcessDelaysTermination(t *testing.T) {
	nodes, recorders := initNodes(4, peers.Chain, map[int]bool{3: true}, t)
	defer shutdownNodes(nodes)

	runNodes(nodes)

	// rounds keep completing without termination while 3 is active
	waitFor(t, 5*time.Second, "three rounds", func() bool {
		res, ok := nodes[0].LastResult()
		return ok && res.Round >= 2
	})

	res, _ := nodes[0].LastResult()
	if res.Terminated {
		t.Fatalf("should not terminate while node 3 is active")
	}
	if res.Vector[3] != vector.Active {
		t.Fatalf("node 3 activity should converge to the root, got %s", res.Vector)
	}

	// the leaf's report travelled through the whole chain
	r, err := nodes[1].GetRound(0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Vector[3] != vector.Active || r.Vector[2] != vector.Passive {
		t.Fatalf("node 1 should have merged 3 -> 2 -> 1, got %s", r.Vector)
	}

	recorders[3].SetActive(false)
	waitTerminated(t, nodes)
}

func TestMaxRounds(t *testing.T) {
	nodes, _ := initNodes(3, peers.Chain, map[int]bool{1: true}, t)
	for _, n := range nodes {
		n.conf.MaxRounds = 3
	}
	defer shutdownNodes(nodes)

	runNodes(nodes)

	waitFor(t, 5*time.Second, "max rounds", func() bool {
		res, ok := nodes[0].LastResult()
		return ok && res.Round == 2
	})

	time.Sleep(50 * time.Millisecond)

	if idx := nodes[0].coordinator.Index(); idx != 3 {
		t.Fatalf("root should stop after 3 rounds, next index is %d", idx)
	}

	g := NewGraph(nodes[0])
	if rounds := g.GetInfos().Rounds; len(rounds) != 3 {
		t.Fatalf("root should have recorded 3 rounds, got %d", len(rounds))
	}
}

func TestGetStats(t *testing.T) {
	nodes, _ := initNodes(2, peers.Chain, map[int]bool{}, t)
	defer shutdownNodes(nodes)

	runNodes(nodes)
	waitTerminated(t, nodes)

	stats := nodes[1].GetStats()
	if stats["state"] != "Terminated" || stats["parent"] != "0" || stats["terminated"] != "true" {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestShutdown(t *testing.T) {
	nodes, _ := initNodes(3, peers.Chain, map[int]bool{0: true}, t)
	runNodes(nodes)
	waitTrees(t, nodes)

	shutdownNodes(nodes)

	for _, n := range nodes {
		if n.GetState() != Shutdown {
			t.Fatalf("node %d should be Shutdown, not %s", n.ID(), n.GetState())
		}
	}
}

func TestNewNodeUnknownID(t *testing.T) {
	transports, addrs := initTransports(2)
	_, err := NewNode(TestConfig(t), 5, peers.Chain(addrs), nil, transports[0], NewActivityRecorder(5, false), nil)
	if err == nil {
		t.Fatal("expected an error for an id outside the peer-set")
	}
}
