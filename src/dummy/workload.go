// Package dummy provides a stand-in for the application whose quiescence the
// snapshot rounds detect.
package dummy

import (
	"sync"
	"time"

	"github.com/mosaicnetworks/spantree/src/node"
	"github.com/sirupsen/logrus"
)

// Workload pretends to be busy for a fixed duration after Start, then goes
// passive for good. Its activity is reported through an ActivityRecorder.
type Workload struct {
	recorder  *node.ActivityRecorder
	activeFor time.Duration

	stopOnce   sync.Once
	shutdownCh chan struct{}
	doneCh     chan struct{}

	logger *logrus.Entry
}

// NewWorkload returns a Workload for process id. A zero activeFor makes the
// workload passive from the start.
func NewWorkload(id int, activeFor time.Duration, logger *logrus.Entry) *Workload {
	return &Workload{
		recorder:   node.NewActivityRecorder(id, activeFor > 0),
		activeFor:  activeFor,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
		logger:     logger,
	}
}

// Recorder returns the recorder to pass to the node.
func (w *Workload) Recorder() *node.ActivityRecorder {
	return w.recorder
}

// Active ...
func (w *Workload) Active() bool {
	return w.recorder.Active()
}

// Start runs the workload in the background.
func (w *Workload) Start() {
	go w.run()
}

// Done is closed once the workload has gone passive.
func (w *Workload) Done() <-chan struct{} {
	return w.doneCh
}

// Stop makes the workload passive immediately.
func (w *Workload) Stop() {
	w.stopOnce.Do(func() { close(w.shutdownCh) })
}

func (w *Workload) run() {
	defer close(w.doneCh)

	if w.activeFor > 0 {
		w.logger.WithField("active_for", w.activeFor).Info("Workload active")

		select {
		case <-time.After(w.activeFor):
		case <-w.shutdownCh:
		}
	}

	w.recorder.SetActive(false)
	w.logger.Info("Workload passive")
}
