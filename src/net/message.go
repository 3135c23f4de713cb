package net

import (
	"fmt"

	"github.com/mosaicnetworks/spantree/src/vector"
)

// Tag identifies the kind of a protocol Message.
type Tag uint8

const (
	// TreeInvite asks the receiver to become a child of the sender.
	TreeInvite Tag = iota
	// TreeAccept answers an invitation positively.
	TreeAccept
	// TreeReject answers an invitation negatively.
	TreeReject
	// TreeBroadcast is the "go" signal of a snapshot round, sent down the tree.
	TreeBroadcast
	// TreeConverge carries a merged state vector up the tree.
	TreeConverge
	// TreeHalt announces, down the tree, that termination was declared.
	TreeHalt
)

var tags = []string{
	"TREE_INVITE",
	"TREE_ACCEPT",
	"TREE_REJECT",
	"TREE_BROADCAST",
	"TREE_CONVERGE",
	"TREE_HALT",
}

// String ...
func (t Tag) String() string {
	if int(t) < len(tags) {
		return tags[t]
	}
	return fmt.Sprintf("TAG(%d)", uint8(t))
}

// Message is the unit of communication between neighbouring processes. Vector
// is only set on TreeConverge messages, where it is mandatory.
type Message struct {
	Tag     Tag
	SrcID   int
	Round   int
	Payload string
	Vector  vector.State
}

// NewMessage ...
func NewMessage(tag Tag, srcID int, round int, payload string) *Message {
	return &Message{
		Tag:     tag,
		SrcID:   srcID,
		Round:   round,
		Payload: payload,
	}
}

// HasVector reports whether the message carries a state vector.
func (m *Message) HasVector() bool {
	return m.Vector != nil
}

// Copy returns a copy of the message that shares no memory with m.
func (m *Message) Copy() *Message {
	c := *m
	c.Vector = m.Vector.Copy()
	return &c
}

// String ...
func (m *Message) String() string {
	if m.HasVector() {
		return fmt.Sprintf("%s from %d round %d %s", m.Tag, m.SrcID, m.Round, m.Vector)
	}
	return fmt.Sprintf("%s from %d round %d", m.Tag, m.SrcID, m.Round)
}

// Ack is the response to a delivered Message. A transport only acknowledges a
// Message once the receiver has queued it, which is what gives Send its FIFO
// guarantee.
type Ack struct {
	FromID int
}
