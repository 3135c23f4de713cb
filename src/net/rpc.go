package net

// RPCResponse is what the receiving process answers to a delivered Message:
// an Ack once it is queued in the inbox of the sender, or the reason it was
// refused.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC is an inbound Message waiting to be routed. The transport blocks the
// sender until Respond is called.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond acknowledges or refuses the Message. It must be called exactly once.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
