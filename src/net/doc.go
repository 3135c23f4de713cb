// Package net implements the channel layer connecting spantree processes.
//
// Processes exchange typed Messages (TREE_INVITE, TREE_ACCEPT, ...) over a
// Transport. Delivery is reliable and, as long as a sender does not issue
// concurrent Sends to the same target, FIFO: Send only returns after the
// receiving transport has handed the Message to its consumer, which
// acknowledges it once queued.
//
// There are two implementations:
//
// - Inmem: in-memory transport used for tests and single-process simulations
//
// - TCP: Messages are framed by an RPC type byte followed by the msgpack
// encoded Message; the response is an error string followed by the msgpack
// encoded Ack.
//
// To use a TCP transport, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket the process binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes.
package net
