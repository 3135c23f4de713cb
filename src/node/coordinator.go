package node

import (
	"sync"
	"time"

	cm "github.com/mosaicnetworks/spantree/src/common"
	"github.com/mosaicnetworks/spantree/src/history"
	"github.com/mosaicnetworks/spantree/src/net"
	"github.com/mosaicnetworks/spantree/src/telemetry"
	"github.com/mosaicnetworks/spantree/src/vector"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of a snapshot round at one process.
type Result struct {
	Round  int
	Vector vector.State

	// Evaluated is only set at the root, or on a halt relayed from the root.
	Evaluated  bool
	Terminated bool
}

// round is the live state of one snapshot round. Rounds are kept in an arena
// keyed by index so that messages for the next round can be absorbed while
// the current one is still converging.
type round struct {
	index       int
	awake       bool
	established bool
	pending     map[int]bool
	vector      vector.State
	err         error
	started     time.Time
}

// Coordinator runs broadcast/convergecast rounds over a completed spanning
// tree. The root evaluates the predicate on the merged vector and, once it
// holds, halts the whole tree.
type Coordinator struct {
	p    *Process
	tree *SpanningTree

	size      int
	recorder  Recorder
	predicate vector.Predicate
	store     history.Store

	index  int
	rounds map[int]*round

	// synced is set once a non-root process has adopted the round index of
	// the root from a broadcast. The root is always synced.
	synced bool

	halted bool
	last   *Result

	awakeCond   *sync.Cond
	readyCond   *sync.Cond
	pendingCond *sync.Cond
}

// NewCoordinator registers the round handlers on p. size is the total number
// of processes, ie. the length of every state vector.
func NewCoordinator(p *Process,
	tree *SpanningTree,
	size int,
	recorder Recorder,
	predicate vector.Predicate,
	store history.Store,
) *Coordinator {
	c := &Coordinator{
		p:           p,
		tree:        tree,
		size:        size,
		recorder:    recorder,
		predicate:   predicate,
		store:       store,
		rounds:      make(map[int]*round),
		awakeCond:   p.NewCond(),
		readyCond:   p.NewCond(),
		pendingCond: p.NewCond(),
	}

	// resume numbering after the recorded history. Other processes follow
	// the index of the first broadcast they receive.
	if store != nil {
		c.index = store.LastRound() + 1
	}
	c.synced = tree.root

	p.Register(net.TreeBroadcast, c.handleBroadcast)
	p.Register(net.TreeConverge, c.handleConverge)
	p.Register(net.TreeHalt, c.handleHalt)

	return c
}

// RunRound runs one snapshot round and blocks until it completes at this
// process. At a non-root process, it first waits for the round to be
// broadcast by the parent. Once termination is known, RunRound returns the
// terminated result without starting a new round.
func (c *Coordinator) RunRound() (Result, error) {
	c.p.lock()
	defer c.p.unlock()

	if c.halted {
		return *c.last, nil
	}

	if c.tree.state != Done {
		return Result{}, cm.NewProtocolErr(cm.TreeNotDone, "process %d", c.p.ID())
	}

	var rs *round

	if c.tree.root {
		rs = c.getRound(c.index)
		rs.awake = true
		if err := c.p.multicast(c.tree.children, net.TreeBroadcast, rs.index); err != nil {
			c.abort(rs, err)
			return Result{}, err
		}
	} else {
		// the index may move while waiting, when the broadcast is the first
		// one or skips a round
		err := c.p.wait(c.awakeCond, func() bool {
			if c.halted {
				return true
			}
			r, ok := c.rounds[c.index]
			return c.synced && ok && r.awake
		})
		if err != nil {
			return Result{}, err
		}
		if c.halted {
			return *c.last, nil
		}
		rs = c.rounds[c.index]
	}

	idx := rs.index

	local := c.recorder.Record(idx, c.size)
	if len(local) != c.size {
		err := cm.NewProtocolErr(cm.VectorMismatch,
			"local contribution has %d entries, expected %d", len(local), c.size)
		c.abort(rs, err)
		return Result{}, err
	}

	rs.vector = local.Copy()
	for _, child := range c.tree.children {
		rs.pending[child] = true
	}
	rs.established = true
	c.readyCond.Broadcast()

	err := c.p.wait(c.pendingCond, func() bool { return len(rs.pending) == 0 || rs.err != nil })
	if err != nil {
		return Result{}, err
	}
	if rs.err != nil {
		c.abort(rs, rs.err)
		return Result{}, rs.err
	}

	res := Result{
		Round:  idx,
		Vector: rs.vector.Copy(),
	}

	if c.tree.root {
		res.Evaluated = true
		res.Terminated = c.predicate.Holds(rs.vector)
	} else {
		if err := c.p.send(c.tree.parent, net.TreeConverge, idx, rs.vector); err != nil {
			c.abort(rs, err)
			return Result{}, err
		}
	}

	c.finalize(rs, res)

	if res.Terminated {
		c.halted = true
		if err := c.relayHalt(idx, res.Vector); err != nil {
			c.p.logger.WithError(err).Error("Relaying halt")
		}
	}

	return res, nil
}

// LastResult returns the result of the latest finalized round, if any.
func (c *Coordinator) LastResult() (Result, bool) {
	c.p.lock()
	defer c.p.unlock()

	if c.last == nil {
		return Result{}, false
	}
	res := *c.last
	res.Vector = c.last.Vector.Copy()
	return res, true
}

// Halted reports whether termination was declared or received.
func (c *Coordinator) Halted() bool {
	c.p.lock()
	defer c.p.unlock()
	return c.halted
}

// Index returns the index of the next round.
func (c *Coordinator) Index() int {
	c.p.lock()
	defer c.p.unlock()
	return c.index
}

func (c *Coordinator) getRound(index int) *round {
	rs, ok := c.rounds[index]
	if !ok {
		rs = &round{
			index:   index,
			pending: make(map[int]bool),
			started: time.Now(),
		}
		c.rounds[index] = rs
	}
	return rs
}

// follow moves a non-root process to the round index broadcast by its
// parent. Rounds below it are dropped and their waiting reports become stale.
func (c *Coordinator) follow(index int) {
	if c.synced && index == c.index {
		return
	}

	c.p.logger.WithFields(logrus.Fields{
		"from": c.index,
		"to":   index,
	}).Debug("Following root round")

	for i := range c.rounds {
		if i < index {
			delete(c.rounds, i)
		}
	}
	c.index = index
	c.synced = true
	c.readyCond.Broadcast()
}

// abort drops a failed round and moves on, so that late messages for it are
// recognised as stale. The failure is recorded in the history.
func (c *Coordinator) abort(rs *round, err error) {
	delete(c.rounds, rs.index)
	if rs.index == c.index {
		c.index++
	}
	c.readyCond.Broadcast()

	telemetry.ObserveRound(false, err, time.Since(rs.started))

	c.p.logger.WithFields(logrus.Fields{
		"round": rs.index,
		"error": err,
	}).Error("Round failed")

	c.record(&history.Round{
		Index:  rs.index,
		Vector: rs.vector.Copy(),
		Error:  err.Error(),
	})
}

func (c *Coordinator) finalize(rs *round, res Result) {
	delete(c.rounds, rs.index)
	c.index = rs.index + 1
	c.last = &res

	telemetry.ObserveRound(res.Terminated, nil, time.Since(rs.started))

	c.p.logger.WithFields(logrus.Fields{
		"round":      res.Round,
		"vector":     res.Vector.String(),
		"evaluated":  res.Evaluated,
		"terminated": res.Terminated,
	}).Debug("Round complete")

	c.record(&history.Round{
		Index:      res.Round,
		Vector:     res.Vector.Copy(),
		Evaluated:  res.Evaluated,
		Terminated: res.Terminated,
	})
}

// record fills in the tree of this process and stores r.
func (c *Coordinator) record(r *history.Round) {
	if c.store == nil {
		return
	}

	r.ProcessID = c.p.ID()
	r.Root = c.tree.root
	r.Parent = c.tree.parent
	r.Children = append([]int{}, c.tree.children...)
	r.Completed = time.Now().UTC()

	if err := c.store.SetRound(r); err != nil {
		c.p.logger.WithError(err).Error("Recording round")
	}
}

func (c *Coordinator) stale(msg *net.Message) error {
	return cm.NewProtocolErr(cm.StaleRound,
		"%s from %d for round %d, current round is %d", msg.Tag, msg.SrcID, msg.Round, c.index)
}

// handleBroadcast wakes the round and relays it down the tree. The children
// are only final once the local tree is done. The first broadcast sets the
// round index of a non-root process, and a broadcast past a round that never
// woke up skips it.
func (c *Coordinator) handleBroadcast(msg *net.Message) error {
	if c.synced && msg.Round < c.index {
		return c.stale(msg)
	}

	if err := c.tree.waitForDone(); err != nil {
		return err
	}

	if c.synced && msg.Round < c.index {
		return c.stale(msg)
	}

	if !c.synced {
		c.follow(msg.Round)
	} else if msg.Round > c.index {
		if cur, ok := c.rounds[c.index]; !ok || !cur.awake {
			c.follow(msg.Round)
		}
	}

	rs := c.getRound(msg.Round)
	rs.awake = true
	c.awakeCond.Broadcast()

	return c.p.multicast(c.tree.children, net.TreeBroadcast, msg.Round)
}

// handleConverge merges a child's report into its round. A report that
// arrives before the local driver has established the round waits for it.
func (c *Coordinator) handleConverge(msg *net.Message) error {
	if msg.Round < c.index {
		return c.stale(msg)
	}

	rs := c.getRound(msg.Round)

	err := c.p.wait(c.readyCond, func() bool {
		return rs.established || msg.Round < c.index
	})
	if err != nil {
		return err
	}

	if msg.Round < c.index || rs.err != nil {
		return c.stale(msg)
	}

	fail := func(err error) error {
		rs.err = err
		c.pendingCond.Broadcast()
		return err
	}

	if !msg.HasVector() {
		return fail(cm.NewProtocolErr(cm.MissingVector,
			"round %d from %d", msg.Round, msg.SrcID))
	}

	if !rs.pending[msg.SrcID] {
		return fail(cm.NewProtocolErr(cm.UnexpectedReport,
			"round %d from %d", msg.Round, msg.SrcID))
	}

	if err := rs.vector.Merge(msg.Vector); err != nil {
		return fail(err)
	}

	delete(rs.pending, msg.SrcID)
	if len(rs.pending) == 0 {
		c.pendingCond.Broadcast()
	}

	return nil
}

// handleHalt records the terminated result announced by the root and relays
// it down the tree.
func (c *Coordinator) handleHalt(msg *net.Message) error {
	if c.halted {
		return nil
	}

	if err := c.tree.waitForDone(); err != nil {
		return err
	}

	c.halted = true
	c.last = &Result{
		Round:      msg.Round,
		Vector:     msg.Vector.Copy(),
		Evaluated:  true,
		Terminated: true,
	}
	telemetry.Terminated.Set(1)

	c.awakeCond.Broadcast()

	c.p.logger.WithField("round", msg.Round).Debug("Halt")

	return c.relayHalt(msg.Round, msg.Vector)
}

func (c *Coordinator) relayHalt(index int, vec vector.State) error {
	for _, child := range c.tree.children {
		if err := c.p.send(child, net.TreeHalt, index, vec); err != nil {
			return err
		}
	}
	return nil
}
