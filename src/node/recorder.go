package node

import (
	"sync/atomic"

	"github.com/mosaicnetworks/spantree/src/vector"
)

// Recorder supplies the local contribution of a process to a snapshot round.
// Record is called with the process monitor held and must not block.
type Recorder interface {
	Record(round int, size int) vector.State
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(round int, size int) vector.State

// Record implements the Recorder interface.
func (f RecorderFunc) Record(round int, size int) vector.State {
	return f(round, size)
}

// ActivityRecorder reports whether the local application is active. Only the
// process's own entry is filled; the others are left Unknown for the other
// processes to fill in.
type ActivityRecorder struct {
	id     int
	active int32
}

// NewActivityRecorder ...
func NewActivityRecorder(id int, active bool) *ActivityRecorder {
	r := &ActivityRecorder{id: id}
	r.SetActive(active)
	return r
}

// SetActive can be called concurrently with rounds.
func (r *ActivityRecorder) SetActive(active bool) {
	var v int32
	if active {
		v = 1
	}
	atomic.StoreInt32(&r.active, v)
}

// Active ...
func (r *ActivityRecorder) Active() bool {
	return atomic.LoadInt32(&r.active) == 1
}

// Record implements the Recorder interface.
func (r *ActivityRecorder) Record(round int, size int) vector.State {
	s := vector.New(size)
	if r.id < 0 || r.id >= size {
		return s
	}
	if r.Active() {
		s[r.id] = vector.Active
	} else {
		s[r.id] = vector.Passive
	}
	return s
}
