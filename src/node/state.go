package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a node: Building, Snapshotting, Terminated, or
// Shutdown
type State uint32

const (
	//Building is the initial state, while the spanning tree is constructed.
	Building State = iota
	//Snapshotting runs broadcast/convergecast rounds over the tree
	Snapshotting
	//Terminated means the global predicate held
	Terminated
	//Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Building:
		return "Building"
	case Snapshotting:
		return "Snapshotting"
	case Terminated:
		return "Terminated"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
