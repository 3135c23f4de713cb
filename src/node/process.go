package node

import (
	"errors"
	"sync"

	"github.com/mosaicnetworks/spantree/src/net"
	"github.com/mosaicnetworks/spantree/src/telemetry"
	"github.com/mosaicnetworks/spantree/src/vector"
	"github.com/sirupsen/logrus"
)

// ErrShutdown is returned by any blocking operation interrupted by Shutdown.
var ErrShutdown = errors.New("process is shut down")

// Sender delivers a Message to the process identified by dst. Send must not
// return before the destination has queued the Message.
type Sender interface {
	Send(dst int, msg *net.Message) error
}

// Handler reacts to one Message. It always runs with the process monitor
// held.
type Handler func(msg *net.Message) error

// Process is the monitor shared by the tree and the coordinator. Every
// handler body and every state mutation runs under its lock, and waiters
// sleep on condition variables tied to that same lock.
type Process struct {
	id        int
	neighbors []int

	mu       sync.Mutex
	conds    []*sync.Cond
	handlers map[net.Tag]Handler
	shutdown bool

	sender Sender
	logger *logrus.Entry
}

// NewProcess ...
func NewProcess(id int, neighbors []int, sender Sender, logger *logrus.Entry) *Process {
	return &Process{
		id:        id,
		neighbors: neighbors,
		handlers:  make(map[net.Tag]Handler),
		sender:    sender,
		logger:    logger,
	}
}

// ID returns the process identifier.
func (p *Process) ID() int {
	return p.id
}

// Neighbors returns the fixed neighbour set.
func (p *Process) Neighbors() []int {
	return p.neighbors
}

// Register binds a handler to a message tag. It must be called before any
// message is handled.
func (p *Process) Register(tag net.Tag, h Handler) {
	p.handlers[tag] = h
}

// NewCond returns a condition variable bound to the monitor. Shutdown wakes
// every condition created this way.
func (p *Process) NewCond() *sync.Cond {
	c := sync.NewCond(&p.mu)
	p.conds = append(p.conds, c)
	return c
}

// HandleMessage dispatches msg to the handler registered for its tag. Unknown
// tags are ignored.
func (p *Process) HandleMessage(msg *net.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return ErrShutdown
	}

	h, ok := p.handlers[msg.Tag]
	if !ok {
		p.logger.WithField("msg", msg.String()).Debug("No handler")
		return nil
	}

	err := h(msg)

	status := "ok"
	if err != nil {
		status = "error"
	}
	telemetry.MessagesReceived.WithLabelValues(msg.Tag.String(), status).Inc()

	return err
}

// Shutdown releases every waiter. Subsequent waits and messages fail with
// ErrShutdown.
func (p *Process) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shutdown = true
	for _, c := range p.conds {
		c.Broadcast()
	}
}

func (p *Process) lock() {
	p.mu.Lock()
}

func (p *Process) unlock() {
	p.mu.Unlock()
}

// wait blocks on c until done holds. Must be called with the monitor held.
func (p *Process) wait(c *sync.Cond, done func() bool) error {
	for !done() {
		if p.shutdown {
			return ErrShutdown
		}
		c.Wait()
	}
	return nil
}

// send must be called with the monitor held, which orders all outbound
// messages of the process.
func (p *Process) send(dst int, tag net.Tag, round int, vec vector.State) error {
	msg := net.NewMessage(tag, p.id, round, "")
	if vec != nil {
		msg.Vector = vec.Copy()
	}

	p.logger.WithFields(logrus.Fields{
		"dst": dst,
		"msg": msg.String(),
	}).Debug("Send")

	if err := p.sender.Send(dst, msg); err != nil {
		return err
	}
	telemetry.MessagesSent.WithLabelValues(tag.String()).Inc()
	return nil
}

func (p *Process) multicast(dsts []int, tag net.Tag, round int) error {
	for _, dst := range dsts {
		if err := p.send(dst, tag, round, nil); err != nil {
			return err
		}
	}
	return nil
}
