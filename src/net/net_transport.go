package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

/*******************************************************************************
MOST OF THIS IS TAKEN FROM HASHICORP RAFT
*******************************************************************************/

const (
	rpcBroadcast uint8 = iota
)

const (
	bufSize = math.MaxUint16
)

/*
NetworkTransport provides a network based transport that can be used to
communicate with neighbors on remote machines. It requires an underlying stream
layer to provide a stream abstraction, which can be simple TCP, TLS, etc.

Outbound requests are queued per target and written by one routine per target,
over pooled connections, so Broadcast never waits on the network. Each request
is framed as the msgpack encoded rpc type, header and request. The response is
an error string followed by the response object, both msgpack encoded.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex
	maxPool      int

	consumeCh chan RPC
	outbox    *outbox
	limits    Limits

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer

	timeout time.Duration
}

type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	dec    *codec.Decoder
	enc    *codec.Encoder
}

// Release closes the underlying connection
func (n *netConn) Release() error {
	return n.conn.Close()
}

// NewNetworkTransport creates a new network transport with the given stream
// layer. The maxPool controls how many connections we will pool (per target).
// The queueSize bounds both the inbound consumer channel and each outbound
// queue. The timeout is used to apply I/O deadlines.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	queueSize int,
	timeout time.Duration,
	limits Limits,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	trans := &NetworkTransport{
		connPool:   make(map[string][]*netConn),
		consumeCh:  make(chan RPC, queueSize),
		limits:     limits,
		logger:     logger,
		maxPool:    maxPool,
		shutdownCh: make(chan struct{}),
		stream:     stream,
		timeout:    timeout,
	}

	trans.outbox = newOutbox(queueSize, trans.deliver)

	return trans
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()
		n.outbox.close()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// Done implements the Transport interface.
func (n *NetworkTransport) Done() <-chan struct{} {
	return n.shutdownCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// getConn is used to get a connection from the pool.
func (n *NetworkTransport) getConn(target string, timeout time.Duration) (*netConn, error) {
	// Check for a pooled conn
	if conn := n.getPooledConn(target); conn != nil {
		return conn, nil
	}

	// Dial a new connection
	conn, err := n.stream.Dial(target, timeout)
	if err != nil {
		return nil, err
	}

	// Wrap the conn
	netConn := &netConn{
		target: target,
		conn:   conn,
		r:      bufio.NewReaderSize(conn, bufSize),
		w:      bufio.NewWriterSize(conn, bufSize),
	}
	// Setup encoder/decoders
	netConn.dec = codec.NewDecoder(netConn.r, msgpackHandle)
	netConn.enc = codec.NewEncoder(netConn.w, msgpackHandle)

	// Done
	return netConn, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.maxPool {
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

// Broadcast implements the Transport interface.
func (n *NetworkTransport) Broadcast(target string, header Header, req *BroadcastRequest) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}
	return n.outbox.enqueue(target, outbound{header: header, req: req})
}

// OnSendFailure implements the FailureReporter interface.
func (n *NetworkTransport) OnSendFailure(h func(SendFailure)) {
	n.outbox.setOnFailure(h)
}

// deliver runs in the outbound routine of the target. Failures are reported
// here; the caller of Broadcast has already moved on.
func (n *NetworkTransport) deliver(target string, msg outbound) {
	var resp BroadcastResponse

	start := time.Now()
	err := n.genericRPC(target, rpcBroadcast, n.timeout, msg, &resp)
	elapsed := time.Since(start)

	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"target": target,
			"origin": msg.req.Origin,
			"error":  err,
		}).Error("Failed to deliver BroadcastRequest")
		n.outbox.fail(target, msg, err)
		return
	}

	n.logger.WithFields(logrus.Fields{
		"target":    target,
		"origin":    msg.req.Origin,
		"round":     resp.Round,
		"knowledge": resp.Knowledge.IDs(),
		"duration":  elapsed.Nanoseconds(),
	}).Debug("BroadcastResponse")
}

// genericRPC handles a simple request/response RPC.
func (n *NetworkTransport) genericRPC(target string, rpcType uint8, timeout time.Duration, msg outbound, resp *BroadcastResponse) error {
	// Get a conn
	conn, err := n.getConn(target, timeout)
	if err != nil {
		return err
	}

	// Set a deadline
	if timeout > 0 {
		conn.conn.SetDeadline(time.Now().Add(timeout))
	}

	// Send the RPC
	if err = sendRPC(conn, rpcType, msg); err != nil {
		return err
	}

	// Decode the response
	canReturn, err := n.decodeResponse(conn, resp)
	if canReturn {
		n.returnConn(conn)
	}

	return err
}

// sendRPC is used to encode and send the RPC.
func sendRPC(conn *netConn, rpcType uint8, msg outbound) error {
	// Write the request type
	if err := conn.enc.Encode(rpcType); err != nil {
		conn.Release()
		return err
	}

	// Send the header
	if err := conn.enc.Encode(&msg.header); err != nil {
		conn.Release()
		return err
	}

	// Send the request
	wreq := toWireRequest(msg.req)
	if err := conn.enc.Encode(&wreq); err != nil {
		conn.Release()
		return err
	}

	// Flush
	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}
	return nil
}

// decodeResponse is used to decode an RPC response and reports whether
// the connection can be reused.
func (n *NetworkTransport) decodeResponse(conn *netConn, resp *BroadcastResponse) (bool, error) {
	// Decode the error if any
	var rpcError string
	if err := conn.dec.Decode(&rpcError); err != nil {
		conn.Release()
		return false, err
	}

	// Decode the response
	var wresp wireBroadcastResponse
	if err := conn.dec.Decode(&wresp); err != nil {
		conn.Release()
		return false, err
	}

	// Format an error if any
	if rpcError != "" {
		return true, errors.New(rpcError)
	}

	out, err := n.limits.fromWireResponse(&wresp)
	if err != nil {
		return true, err
	}
	*resp = *out

	return true, nil
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		// Accept incoming connections
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		// Handle the connection in dedicated routine
		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	dec := codec.NewDecoder(r, msgpackHandle)
	enc := codec.NewEncoder(w, msgpackHandle)

	for {
		if err := n.handleCommand(dec, enc); err != nil {

			if err == ErrTransportShutdown {
				n.logger.WithField("error", err).Warn("Failed to decode incoming command")
			} else {
				if err != io.EOF {
					n.logger.WithField("error", err).Debug("Closing inbound connection")
				}
			}
			return
		}
		if err := w.Flush(); err != nil {
			n.logger.WithField("error", err).Error("Failed to flush response")
			return
		}
	}
}

// handleCommand is used to decode and dispatch a single command.
func (n *NetworkTransport) handleCommand(dec *codec.Decoder, enc *codec.Encoder) error {
	// Get the rpc type
	var rpcType uint8
	if err := dec.Decode(&rpcType); err != nil {
		return err
	}

	// Create the RPC object
	respCh := make(chan RPCResponse, 1)
	rpc := RPC{
		RespChan: respCh,
	}

	// Decode the command
	switch rpcType {
	case rpcBroadcast:
		if err := dec.Decode(&rpc.Header); err != nil {
			return err
		}
		var wreq wireBroadcastRequest
		if err := dec.Decode(&wreq); err != nil {
			return err
		}
		req, err := n.limits.fromWireRequest(&wreq)
		if err != nil {
			// The stream is intact, only the request is refused.
			n.logger.WithFields(logrus.Fields{
				"src":   rpc.Header.Src,
				"error": err,
			}).Error("Refusing BroadcastRequest")
			return encodeResponse(enc, RPCResponse{Error: err})
		}
		rpc.Command = req
	default:
		return fmt.Errorf("unknown rpc type %d", rpcType)
	}

	// Dispatch the RPC
	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	// Wait for response
	select {
	case resp := <-respCh:
		return encodeResponse(enc, resp)
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}
}

func encodeResponse(enc *codec.Encoder, resp RPCResponse) error {
	// Send the error first
	respErr := ""
	if resp.Error != nil {
		respErr = resp.Error.Error()
	}
	if err := enc.Encode(respErr); err != nil {
		return err
	}

	// Send the response
	var wresp wireBroadcastResponse
	if r, ok := resp.Response.(*BroadcastResponse); ok && r != nil {
		wresp = toWireResponse(r)
	}
	return enc.Encode(&wresp)
}
