package common

import "fmt"

// ProtocolErrType identifies a violation of the tree or snapshot protocol.
type ProtocolErrType uint32

const (
	// MissingVector is a TREE_CONVERGE message without a state vector.
	MissingVector ProtocolErrType = iota
	// VectorMismatch is a merge between vectors of different lengths.
	VectorMismatch
	// UnexpectedReport is a convergecast report from a process that is not
	// pending in the round, ie. a duplicate or a non-child.
	UnexpectedReport
	// StaleRound is a message for a round that is already finalized.
	StaleRound
	// TreeNotDone is a round requested before the spanning tree is complete.
	TreeNotDone
	// UnknownPeer is a message from or to a process outside the peer-set.
	UnknownPeer
)

var protocolErrMessages = []string{
	"Missing Vector",
	"Vector Mismatch",
	"Unexpected Report",
	"Stale Round",
	"Tree Not Done",
	"Unknown Peer",
}

// ProtocolErr is returned by handlers and rounds when a peer, or the local
// driver, breaks the protocol. It is never retried.
type ProtocolErr struct {
	errType ProtocolErrType
	detail  string
}

// NewProtocolErr ...
func NewProtocolErr(errType ProtocolErrType, format string, args ...interface{}) ProtocolErr {
	return ProtocolErr{
		errType: errType,
		detail:  fmt.Sprintf(format, args...),
	}
}

// Type returns the kind of violation.
func (e ProtocolErr) Type() ProtocolErrType {
	return e.errType
}

// Error ...
func (e ProtocolErr) Error() string {
	return fmt.Sprintf("%s: %s", protocolErrMessages[e.errType], e.detail)
}

// IsProtocol checks that an error is a ProtocolErr of the given type.
func IsProtocol(err error, t ProtocolErrType) bool {
	protocolErr, ok := err.(ProtocolErr)
	return ok && protocolErr.errType == t
}
