package node

import (
	"fmt"
	"strconv"
	"time"

	cm "github.com/mosaicnetworks/spantree/src/common"
	"github.com/mosaicnetworks/spantree/src/history"
	"github.com/mosaicnetworks/spantree/src/net"
	"github.com/mosaicnetworks/spantree/src/peers"
	"github.com/mosaicnetworks/spantree/src/vector"
	"github.com/sirupsen/logrus"
)

const (
	minDialBackoff = 10 * time.Millisecond
	maxDialBackoff = time.Second
)

// Node composes a Process, its SpanningTree and its Coordinator, and drives
// them over a Transport.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	id    int
	peers *peers.PeerSet

	process     *Process
	tree        *SpanningTree
	coordinator *Coordinator

	store history.Store

	trans   net.Transport
	netCh   <-chan net.RPC
	inboxes map[int]chan *net.Message

	shutdownCh chan struct{}

	controlTimer *ControlTimer

	start  time.Time
	rounds int
}

// NewNode is a factory method that returns a Node instance. id must belong
// to peerSet.
func NewNode(conf *Config,
	id int,
	peerSet *peers.PeerSet,
	store history.Store,
	trans net.Transport,
	recorder Recorder,
	predicate vector.Predicate,
) (*Node, error) {

	self, ok := peerSet.ByID[id]
	if !ok {
		return nil, cm.NewProtocolErr(cm.UnknownPeer, "%d is not in the peer-set", id)
	}

	if predicate == nil {
		predicate = vector.AllQuiescent()
	}

	logger := conf.Logger.WithField("this_id", id)

	node := &Node{
		conf:         conf,
		logger:       logger,
		id:           id,
		peers:        peerSet,
		store:        store,
		trans:        trans,
		netCh:        trans.Consumer(),
		inboxes:      make(map[int]chan *net.Message),
		shutdownCh:   make(chan struct{}),
		controlTimer: NewRoundTimer(),
	}

	for _, n := range self.Neighbors {
		node.inboxes[n] = make(chan *net.Message, conf.InboxSize)
	}

	node.process = NewProcess(id, self.Neighbors, node, logger)
	node.tree = NewSpanningTree(node.process, id == conf.RootID)
	node.coordinator = NewCoordinator(node.process,
		node.tree,
		peerSet.Len(),
		recorder,
		predicate,
		store)

	return node, nil
}

// Init intialises the node
func (n *Node) Init() error {
	if _, ok := n.peers.ByID[n.conf.RootID]; !ok {
		return cm.NewProtocolErr(cm.UnknownPeer, "root %d is not in the peer-set", n.conf.RootID)
	}

	n.logger.WithFields(logrus.Fields{
		"root":      n.tree.IsRoot(),
		"neighbors": n.process.Neighbors(),
	}).Debug("Init")

	n.start = time.Now()
	n.setState(Building)

	return nil
}

// RunAsync calls Run in a goroutine that Shutdown waits for.
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")
	n.goFunc(n.Run)
}

// Run invokes the main loop of the node
func (n *Node) Run() {
	// route inbound messages regardless of the state of the node. They are
	// queued until the neighbours are connected.
	n.goFunc(n.route)

	if n.tree.IsRoot() {
		n.goFunc(func() { n.controlTimer.Run(n.conf.RoundInterval) })
	}

	for {
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Building:
			n.build()
		case Snapshotting:
			n.snapshot()
		case Terminated:
			<-n.shutdownCh
		case Shutdown:
			return
		}
	}
}

// build connects to every neighbour, then constructs the spanning tree and
// blocks until it is done locally.
func (n *Node) build() {
	if err := n.connect(); err != nil {
		return
	}

	for from, inbox := range n.inboxes {
		from, inbox := from, inbox
		n.goFunc(func() { n.deliver(from, inbox) })
	}

	if err := n.tree.Start(); err != nil {
		n.logger.WithError(err).Error("Starting tree")
	}

	if err := n.tree.WaitForDone(); err != nil {
		return
	}

	n.logger.WithFields(logrus.Fields{
		"parent":   n.tree.Parent(),
		"children": n.tree.Children(),
	}).Info("Spanning tree done")

	n.setState(Snapshotting)
}

// connect dials every neighbour until it is reachable, backing off between
// attempts. It only fails on shutdown.
func (n *Node) connect() error {
	for _, id := range n.process.Neighbors() {
		addr := n.peers.ByID[id].NetAddr
		backoff := minDialBackoff

		for {
			err := n.trans.Dial(addr)
			if err == nil {
				break
			}

			n.logger.WithFields(logrus.Fields{
				"neighbor": id,
				"addr":     addr,
				"error":    err,
				"retry_in": backoff,
			}).Debug("Neighbour not reachable")

			select {
			case <-time.After(backoff):
			case <-n.shutdownCh:
				return ErrShutdown
			}

			if backoff *= 2; backoff > maxDialBackoff {
				backoff = maxDialBackoff
			}
		}
	}

	n.logger.Debug("Neighbours connected")

	return nil
}

// snapshot runs rounds until termination. The root paces them with the
// control timer; other processes follow the broadcasts.
func (n *Node) snapshot() {
	for n.getState() == Snapshotting {
		if n.tree.IsRoot() {
			if n.conf.MaxRounds > 0 && n.rounds >= n.conf.MaxRounds {
				n.logger.WithField("rounds", n.rounds).Info("Max rounds reached")
				n.controlTimer.Stop()
				<-n.shutdownCh
				return
			}

			select {
			case <-n.controlTimer.tickCh:
			case <-n.shutdownCh:
				return
			}
		}

		res, err := n.RunRound()
		if err == ErrShutdown {
			return
		}

		if n.tree.IsRoot() {
			n.controlTimer.Reset(n.conf.RoundInterval)
		}

		if err != nil {
			continue
		}

		if res.Terminated {
			n.logger.WithFields(logrus.Fields{
				"round":  res.Round,
				"vector": res.Vector.String(),
			}).Info("Terminated")
			n.setState(Terminated)
		}
	}
}

// RunRound runs one snapshot round. See Coordinator.RunRound.
func (n *Node) RunRound() (Result, error) {
	res, err := n.coordinator.RunRound()
	if err != nil {
		if err != ErrShutdown {
			n.logger.WithError(err).Error("RunRound")
		}
		return res, err
	}
	n.rounds++
	return res, nil
}

// WaitForDone blocks until the local spanning tree is complete.
func (n *Node) WaitForDone() error {
	return n.tree.WaitForDone()
}

// LastResult returns the outcome of the latest round.
func (n *Node) LastResult() (Result, bool) {
	return n.coordinator.LastResult()
}

// Send implements the Sender interface over the transport.
func (n *Node) Send(dst int, msg *net.Message) error {
	peer, ok := n.peers.ByID[dst]
	if !ok {
		return cm.NewProtocolErr(cm.UnknownPeer, "cannot send %s to %d", msg.Tag, dst)
	}
	return n.trans.Send(peer.NetAddr, msg)
}

// route pushes inbound messages into the inbox of their source. The RPC is
// only acknowledged once the message is queued.
func (n *Node) route() {
	for {
		select {
		case rpc := <-n.netCh:
			n.routeRPC(rpc)
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) routeRPC(rpc net.RPC) {
	msg, ok := rpc.Command.(*net.Message)
	if !ok {
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
		return
	}

	inbox, ok := n.inboxes[msg.SrcID]
	if !ok {
		err := cm.NewProtocolErr(cm.UnknownPeer, "%s from non-neighbour %d", msg.Tag, msg.SrcID)
		n.logger.WithError(err).Error("Routing message")
		rpc.Respond(nil, err)
		return
	}

	select {
	case inbox <- msg:
		rpc.Respond(&net.Ack{FromID: n.id}, nil)
	case <-n.shutdownCh:
		rpc.Respond(nil, ErrShutdown)
	}
}

// deliver hands the messages of one neighbour to the process, in order.
func (n *Node) deliver(from int, inbox <-chan *net.Message) {
	for {
		select {
		case msg := <-inbox:
			err := n.process.HandleMessage(msg)
			if err == ErrShutdown {
				return
			}
			if err != nil {
				n.logger.WithFields(logrus.Fields{
					"from":  from,
					"msg":   msg.String(),
					"error": err,
				}).Error("HandleMessage")
			}
		case <-n.shutdownCh:
			return
		}
	}
}

// Shutdown shuts down the node
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		close(n.shutdownCh)

		//Release every waiter, then the routines that might be blocked on them
		n.process.Shutdown()
		n.controlTimer.Shutdown()

		n.waitRoutines()

		//transport and store should only be closed once all concurrent
		//operations are finished
		n.trans.Close()

		if n.store != nil {
			n.store.Close()
		}
	}
}

// TreeInfo is a snapshot of the local view of the spanning tree.
type TreeInfo struct {
	ID       int
	Root     bool
	Parent   int
	Children []int
	State    string
}

// Tree returns the local view of the spanning tree.
func (n *Node) Tree() TreeInfo {
	n.process.lock()
	defer n.process.unlock()

	return TreeInfo{
		ID:       n.id,
		Root:     n.tree.root,
		Parent:   n.tree.parent,
		Children: append([]int{}, n.tree.children...),
		State:    n.tree.state.String(),
	}
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	tree := n.Tree()

	lastRound := "nil"
	terminated := "false"
	if res, ok := n.LastResult(); ok {
		lastRound = strconv.Itoa(res.Round)
		terminated = strconv.FormatBool(res.Terminated)
	}

	var roundsPerSecond float64
	if elapsed := time.Since(n.start).Seconds(); elapsed > 0 && !n.start.IsZero() {
		roundsPerSecond = float64(n.coordinator.Index()) / elapsed
	}

	s := map[string]string{
		"id":                strconv.Itoa(n.id),
		"state":             n.getState().String(),
		"root":              strconv.FormatBool(tree.Root),
		"parent":            strconv.Itoa(tree.Parent),
		"children":          fmt.Sprint(tree.Children),
		"tree_state":        tree.State,
		"num_peers":         strconv.Itoa(n.peers.Len()),
		"num_neighbors":     strconv.Itoa(len(n.process.Neighbors())),
		"last_round":        lastRound,
		"terminated":        terminated,
		"rounds_per_second": strconv.FormatFloat(roundsPerSecond, 'f', 2, 64),
		"moniker":           n.peers.ByID[n.id].Moniker,
	}
	return s
}

// GetRound returns a finalized round from the history store.
func (n *Node) GetRound(index int) (*history.Round, error) {
	if n.store == nil {
		return nil, cm.NewStoreErr("RoundCache", cm.Empty, strconv.Itoa(index))
	}
	return n.store.GetRound(index)
}

// GetPeers returns the peers
func (n *Node) GetPeers() []*peers.Peer {
	return n.peers.Peers
}

// ID returns the process id
func (n *Node) ID() int {
	return n.id
}

// GetState returns the lifecycle state of the node.
func (n *Node) GetState() State {
	return n.getState()
}
