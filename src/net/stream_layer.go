package net

import (
	"net"
	"time"
)

// StreamLayer is the connection layer under NetworkTransport. It accepts
// the links opened by neighbours and dials links towards them.
type StreamLayer interface {
	net.Listener

	// Dial opens a link to the neighbour listening on address, giving up
	// after timeout.
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr is the address neighbours list for this process in
	// peers.json.
	AdvertiseAddr() string
}
