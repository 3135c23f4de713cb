package net

// Transport provides an interface for network transports to allow a process
// to exchange Messages with its neighbours.
//
// Send is synchronous: it returns once the target has queued the Message. A
// caller that serialises its own Sends therefore gets FIFO delivery per
// target.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Dial checks that the target is reachable.
	Dial(target string) error

	// Send delivers a Message to the target address.
	Send(target string, msg *Message) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
