package net

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/sirupsen/logrus"
)

// ZmqTransport is a push-only Transport over ZeroMQ. Inbound requests arrive on
// a ROUTER socket bound to the listen address; each target is reached through
// its own DEALER socket, fed by the same per-target outbound queues as the
// NetworkTransport. No responses travel back, so RPCs produced by this
// transport have no RespChan.
type ZmqTransport struct {
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	identity  string
	bindAddr  string
	advertise string

	router      zmq4.Socket
	dealers     map[string]zmq4.Socket
	dealersLock sync.Mutex

	consumeCh chan RPC
	outbox    *outbox
	limits    Limits

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewZmqTransport binds a ROUTER socket to bindAddr. Addresses may be given
// as host:port or as full tcp:// endpoints.
func NewZmqTransport(
	identity string,
	bindAddr string,
	advertise string,
	queueSize int,
	limits Limits,
	logger *logrus.Entry,
) (*ZmqTransport, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	ctx, cancel := context.WithCancel(context.Background())

	router := zmq4.NewRouter(ctx, zmq4.WithID(zmq4.SocketIdentity(identity)))
	if err := router.Listen(zmqEndpoint(bindAddr)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to bind router: %w", err)
	}

	trans := &ZmqTransport{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		identity:   identity,
		bindAddr:   bindAddr,
		advertise:  advertise,
		router:     router,
		dealers:    make(map[string]zmq4.Socket),
		consumeCh:  make(chan RPC, queueSize),
		limits:     limits,
		shutdownCh: make(chan struct{}),
	}

	trans.outbox = newOutbox(queueSize, trans.deliver)

	return trans, nil
}

func zmqEndpoint(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}

// Consumer implements the Transport interface.
func (z *ZmqTransport) Consumer() <-chan RPC {
	return z.consumeCh
}

// Done implements the Transport interface.
func (z *ZmqTransport) Done() <-chan struct{} {
	return z.shutdownCh
}

// LocalAddr implements the Transport interface.
func (z *ZmqTransport) LocalAddr() string {
	if addr := z.router.Addr(); addr != nil {
		return addr.String()
	}
	return z.bindAddr
}

// AdvertiseAddr implements the Transport interface.
func (z *ZmqTransport) AdvertiseAddr() string {
	if z.advertise != "" {
		return z.advertise
	}
	return z.LocalAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (z *ZmqTransport) IsShutdown() bool {
	select {
	case <-z.shutdownCh:
		return true
	default:
		return false
	}
}

// Broadcast implements the Transport interface.
func (z *ZmqTransport) Broadcast(target string, header Header, req *BroadcastRequest) error {
	if z.IsShutdown() {
		return ErrTransportShutdown
	}
	return z.outbox.enqueue(target, outbound{header: header, req: req})
}

// Listen receives from the ROUTER socket until the transport is closed.
func (z *ZmqTransport) Listen() {
	for {
		msg, err := z.router.Recv()
		if err != nil {
			if z.IsShutdown() {
				return
			}
			z.logger.WithField("error", err).Error("Failed to receive message")
			continue
		}

		if len(msg.Frames) == 0 {
			continue
		}

		// The ROUTER prepends the identity of the sending DEALER
		payload := msg.Frames[len(msg.Frames)-1]

		rpcType, header, req, err := z.limits.decodeEnvelope(payload)
		if err != nil {
			z.logger.WithField("error", err).Error("Failed to decode incoming message")
			continue
		}

		if rpcType != rpcBroadcast {
			z.logger.WithField("type", rpcType).Error("Unknown rpc type")
			continue
		}

		select {
		case z.consumeCh <- RPC{Header: header, Command: req}:
		case <-z.shutdownCh:
			return
		}
	}
}

// getOrCreateDealer gets or creates a DEALER socket for a target.
func (z *ZmqTransport) getOrCreateDealer(target string) (zmq4.Socket, error) {
	z.dealersLock.Lock()
	defer z.dealersLock.Unlock()

	if dealer, ok := z.dealers[target]; ok {
		return dealer, nil
	}

	dealer := zmq4.NewDealer(z.ctx, zmq4.WithID(zmq4.SocketIdentity(z.identity)))
	if err := dealer.Dial(zmqEndpoint(target)); err != nil {
		dealer.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	z.dealers[target] = dealer
	return dealer, nil
}

// dropDealer closes the DEALER of a target so that the next message redials.
func (z *ZmqTransport) dropDealer(target string) {
	z.dealersLock.Lock()
	defer z.dealersLock.Unlock()

	if dealer, ok := z.dealers[target]; ok {
		dealer.Close()
		delete(z.dealers, target)
	}
}

// OnSendFailure implements the FailureReporter interface.
func (z *ZmqTransport) OnSendFailure(h func(SendFailure)) {
	z.outbox.setOnFailure(h)
}

func (z *ZmqTransport) deliver(target string, msg outbound) {
	data, err := encodeEnvelope(rpcBroadcast, msg.header, msg.req)
	if err != nil {
		z.logger.WithField("error", err).Error("Failed to encode BroadcastRequest")
		z.outbox.fail(target, msg, err)
		return
	}

	dealer, err := z.getOrCreateDealer(target)
	if err != nil {
		z.logger.WithFields(logrus.Fields{
			"target": target,
			"error":  err,
		}).Error("Failed to deliver BroadcastRequest")
		z.outbox.fail(target, msg, err)
		return
	}

	if err := dealer.Send(zmq4.NewMsg(data)); err != nil {
		z.logger.WithFields(logrus.Fields{
			"target": target,
			"origin": msg.req.Origin,
			"error":  err,
		}).Error("Failed to deliver BroadcastRequest")
		z.dropDealer(target)
		z.outbox.fail(target, msg, err)
		return
	}

	z.logger.WithFields(logrus.Fields{
		"target": target,
		"origin": msg.req.Origin,
	}).Debug("Delivered BroadcastRequest")
}

// Close is used to stop the transport.
func (z *ZmqTransport) Close() error {
	z.shutdownLock.Lock()
	defer z.shutdownLock.Unlock()

	if z.shutdown {
		return nil
	}
	z.shutdown = true
	close(z.shutdownCh)

	z.outbox.close()

	z.dealersLock.Lock()
	for target, dealer := range z.dealers {
		dealer.Close()
		delete(z.dealers, target)
	}
	z.dealersLock.Unlock()

	err := z.router.Close()
	z.cancel()

	return err
}
