package net

import (
	"crypto/rand"
	"fmt"
	"sync"
)

// NewInmemAddr returns a new in-memory addr with
// a randomly generate UUID as the ID.
func NewInmemAddr() string {
	return generateUUID()
}

// generateUUID is used to generate a random UUID.
func generateUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// InmemTransport Implements the Transport interface, to allow nodes to be
// tested in-memory without going over a network. Delivery is a non-blocking
// push of a copy of the request into the target's consumer channel.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	shutdown   bool
	shutdownCh chan struct{}
}

// NewInmemTransport is used to initialize a new transport and generates a
// random local address if none is specified. queueSize bounds the number of
// undelivered inbound requests.
func NewInmemTransport(addr string, queueSize int) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, queueSize),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		shutdownCh: make(chan struct{}),
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// Done implements the Transport interface.
func (i *InmemTransport) Done() <-chan struct{} {
	return i.shutdownCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Broadcast implements the Transport interface.
func (i *InmemTransport) Broadcast(target string, header Header, req *BroadcastRequest) error {
	i.RLock()
	shutdown := i.shutdown
	peer, ok := i.peers[target]
	i.RUnlock()

	if shutdown {
		return ErrTransportShutdown
	}

	if !ok {
		return fmt.Errorf("%w: failed to connect to peer: %v", ErrUnknownTarget, target)
	}

	select {
	case <-peer.shutdownCh:
		return fmt.Errorf("%w: peer %v is shut down", ErrUnknownTarget, target)
	default:
	}

	rpc := RPC{
		Header:   header,
		Command:  req.Clone(),
		RespChan: make(chan RPCResponse, 1),
	}

	select {
	case peer.consumerCh <- rpc:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, target)
	}
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.DisconnectAll()

	i.Lock()
	defer i.Unlock()
	if !i.shutdown {
		i.shutdown = true
		close(i.shutdownCh)
	}
	return nil
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}
