package node

import (
	"sync"

	"github.com/mosaicnetworks/spantree/src/net"
	"github.com/sirupsen/logrus"
)

// TreeState is the progress of the spanning tree construction at one process.
type TreeState uint32

const (
	// Uninvited means no invitation was accepted yet.
	Uninvited TreeState = iota
	// Invited means a parent was chosen and invitations are outstanding.
	Invited
	// Done means every invitation sent by this process was answered.
	Done
)

// String ...
func (s TreeState) String() string {
	switch s {
	case Uninvited:
		return "Uninvited"
	case Invited:
		return "Invited"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

const noParent = -1

// SpanningTree builds a spanning tree over the neighbour graph with an
// invite/accept/reject handshake started by the root. The first invitation a
// process receives determines its parent; every later one is rejected.
type SpanningTree struct {
	p *Process

	root     bool
	parent   int
	children []int
	state    TreeState

	invites int
	reports int

	doneCond *sync.Cond
}

// NewSpanningTree registers the tree handlers on p. The root is its own
// parent from the start.
func NewSpanningTree(p *Process, root bool) *SpanningTree {
	t := &SpanningTree{
		p:        p,
		root:     root,
		parent:   noParent,
		children: []int{},
		state:    Uninvited,
		doneCond: p.NewCond(),
	}

	if root {
		t.parent = p.ID()
	}

	p.Register(net.TreeInvite, t.handleInvite)
	p.Register(net.TreeAccept, t.handleAccept)
	p.Register(net.TreeReject, t.handleReject)

	return t
}

// Start initiates the construction. It only has an effect at the root.
func (t *SpanningTree) Start() error {
	t.p.lock()
	defer t.p.unlock()

	if !t.root || t.state != Uninvited {
		return nil
	}

	t.state = Invited

	err := t.invite(t.p.Neighbors(), 0)

	t.checkDone()
	return err
}

// WaitForDone blocks until every invitation sent by this process has been
// answered.
func (t *SpanningTree) WaitForDone() error {
	t.p.lock()
	defer t.p.unlock()

	return t.waitForDone()
}

// waitForDone must be called with the monitor held.
func (t *SpanningTree) waitForDone() error {
	return t.p.wait(t.doneCond, func() bool { return t.state == Done })
}

// Parent returns the parent id, the own id at the root, or -1 while unset.
func (t *SpanningTree) Parent() int {
	t.p.lock()
	defer t.p.unlock()
	return t.parent
}

// Children returns a copy of the children accepted so far.
func (t *SpanningTree) Children() []int {
	t.p.lock()
	defer t.p.unlock()
	return append([]int{}, t.children...)
}

// IsRoot ...
func (t *SpanningTree) IsRoot() bool {
	return t.root
}

// Done ...
func (t *SpanningTree) Done() bool {
	t.p.lock()
	defer t.p.unlock()
	return t.state == Done
}

// State ...
func (t *SpanningTree) State() TreeState {
	t.p.lock()
	defer t.p.unlock()
	return t.state
}

func (t *SpanningTree) handleInvite(msg *net.Message) error {
	if t.parent != noParent {
		return t.p.send(msg.SrcID, net.TreeReject, msg.Round, nil)
	}

	t.parent = msg.SrcID
	t.state = Invited

	t.p.logger.WithField("parent", t.parent).Debug("Joined tree")

	if err := t.p.send(msg.SrcID, net.TreeAccept, msg.Round, nil); err != nil {
		return err
	}

	others := make([]int, 0, len(t.p.Neighbors()))
	for _, n := range t.p.Neighbors() {
		if n != t.parent {
			others = append(others, n)
		}
	}

	err := t.invite(others, msg.Round)

	t.checkDone()
	return err
}

// invite sends an invitation to every process in dsts. Only delivered
// invitations are awaited; a neighbour that could not be reached is left to
// the rest of the tree. The first send error is returned.
func (t *SpanningTree) invite(dsts []int, round int) error {
	var firstErr error
	for _, dst := range dsts {
		if err := t.p.send(dst, net.TreeInvite, round, nil); err != nil {
			t.p.logger.WithFields(logrus.Fields{
				"dst":   dst,
				"error": err,
			}).Warn("Invite not delivered")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		t.invites++
	}
	return firstErr
}

func (t *SpanningTree) handleAccept(msg *net.Message) error {
	t.children = append(t.children, msg.SrcID)
	t.reports++
	t.checkDone()
	return nil
}

func (t *SpanningTree) handleReject(msg *net.Message) error {
	t.reports++
	t.checkDone()
	return nil
}

func (t *SpanningTree) checkDone() {
	if t.state != Invited || t.reports < t.invites {
		return
	}

	t.state = Done

	t.p.logger.WithFields(logrus.Fields{
		"parent":   t.parent,
		"children": t.children,
	}).Debug("Tree done")

	t.doneCond.Broadcast()
}
