package net

// RPCResponse captures both a response and a potential error.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC encapsulates an inbound request, the header of the hop that carried it,
// and an optional response mechanism.
type RPC struct {
	Header   Header
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond is used to respond with a response, error or both. It never blocks:
// push-only transports do not set a RespChan and the response is dropped.
func (r *RPC) Respond(resp interface{}, err error) {
	if r.RespChan == nil {
		return
	}
	select {
	case r.RespChan <- RPCResponse{resp, err}:
	default:
	}
}
