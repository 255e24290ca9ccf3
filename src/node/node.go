package node

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	cm "github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/config"
	"github.com/polyferno/polyferno/src/metrics"
	"github.com/polyferno/polyferno/src/net"
	"github.com/polyferno/polyferno/src/node/state"
	"github.com/polyferno/polyferno/src/peers"
	"github.com/polyferno/polyferno/src/store"
	"github.com/sirupsen/logrus"
)

// ErrNodeShutdown is returned by Submit when the node is shut down.
var ErrNodeShutdown = errors.New("node is shut down")

type submission struct {
	round net.RoundID
	model []byte
	errCh chan error
}

// Node defines a polyferno node
type Node struct {
	// The node runs in a single goroutine; coreLock only protects the core
	// from the read accessors used by the service.
	state.Manager

	conf   *config.Config
	logger *logrus.Entry

	id      net.NodeID
	moniker string

	core     *Core
	coreLock sync.Mutex

	peers *peers.PeerSet

	trans net.Transport
	netCh <-chan net.RPC

	store    store.Store
	submitCh chan submission

	sigintCh   chan os.Signal
	shutdownCh chan struct{}
	doneCh     chan struct{}

	runLock      sync.Mutex
	running      bool
	teardownOnce sync.Once

	controlTimer *ControlTimer

	start time.Time
}

// NewNode is a factory method that returns a Node instance. The node's
// neighbors are the peers listed in conf.Neighbors, or every other peer of the
// peer-set when the list is empty.
func NewNode(conf *config.Config,
	id net.NodeID,
	peerSet *peers.PeerSet,
	store store.Store,
	trans net.Transport,
	m *metrics.Metrics,
) (*Node, error) {

	self, ok := peerSet.ByID[uint64(id)]
	if !ok {
		return nil, fmt.Errorf("node %d is not in the peer-set", id)
	}

	neighbors, err := selectNeighbors(conf.Neighbors, id, peerSet)
	if err != nil {
		return nil, err
	}

	limits := conf.Limits(peerSet.Len())
	if limits.NumNodes < peerSet.Len() {
		return nil, cm.NewGossipErr("Config", cm.CapacityExceeded,
			fmt.Sprintf("num-nodes %d < %d peers", limits.NumNodes, peerSet.Len()))
	}

	moniker := conf.Moniker
	if moniker == "" {
		moniker = self.Moniker
	}

	logger := conf.Logger().WithField("this_id", id)

	// Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		conf:         conf,
		logger:       logger,
		id:           id,
		moniker:      moniker,
		core:         NewCore(id, limits, NewRegistry(limits.NumNodes, neighbors), trans, m, conf.Logger()),
		peers:        peerSet,
		trans:        trans,
		netCh:        trans.Consumer(),
		store:        store,
		submitCh:     make(chan submission),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		doneCh:       make(chan struct{}),
		controlTimer: NewRandomControlTimer(),
	}

	if r, ok := trans.(net.FailureReporter); ok {
		r.OnSendFailure(node.recordSendFailure)
	}

	return &node, nil
}

// recordSendFailure is called from the delivery routines of the transport.
func (n *Node) recordSendFailure(f net.SendFailure) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	n.core.RecordSendFailure(f)
}

func selectNeighbors(ids []uint64, self net.NodeID, peerSet *peers.PeerSet) ([]*peers.Peer, error) {
	if len(ids) == 0 {
		_, others := peers.ExcludePeer(peerSet.Peers, uint64(self))
		return others, nil
	}
	selected, err := peerSet.Select(ids)
	if err != nil {
		return nil, err
	}
	_, others := peers.ExcludePeer(selected, uint64(self))
	return others, nil
}

// Init intialises the node. With Bootstrap, the inbox of the last recorded
// round is reloaded from the store without being forwarded again.
func (n *Node) Init() error {
	if n.conf.Bootstrap {
		n.logger.Debug("Bootstrap")
		if err := n.bootstrap(); err != nil {
			return err
		}
	}

	n.SetState(state.Listening)

	return nil
}

func (n *Node) bootstrap() error {
	round, err := n.store.LastRound()
	if err != nil {
		if cm.IsStore(err, cm.Empty) {
			n.logger.Debug("Nothing to bootstrap")
			return nil
		}
		return err
	}

	models, err := n.store.RoundModels(round)
	if err != nil {
		return err
	}

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	n.core.Advance(round)
	for origin, model := range models {
		if err := n.core.Restore(origin, model); err != nil {
			return err
		}
	}

	n.logger.WithFields(logrus.Fields{
		"round":  round,
		"models": len(models),
	}).Info("Bootstrapped from store")

	return nil
}

// RunAsync calls Run as a separate thread and logs its error
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	go func() {
		if err := n.Run(); err != nil {
			n.logger.WithError(err).Error("Node stopped")
		}
	}()
}

// Run invokes the main loop of the node. It returns when the node is shut down,
// when the transport is closed, or when a fatal error occurs. In the latter
// case the node is shut down and the error returned.
func (n *Node) Run() error {
	n.runLock.Lock()
	if n.GetState() == state.Shutdown || n.running {
		n.runLock.Unlock()
		return nil
	}
	n.running = true
	n.runLock.Unlock()

	defer close(n.doneCh)
	defer n.teardown()

	var init time.Duration
	n.coreLock.Lock()
	n.start = time.Now()
	if n.core.HasModel() {
		init = n.conf.HeartbeatTimeout
	}
	n.coreLock.Unlock()

	go n.controlTimer.Run(init)

	n.logger.WithField("state", n.GetState().String()).Debug("Run loop")

	for {
		var err error

		select {
		case rpc := <-n.netCh:
			err = n.processRPC(rpc)
		case s := <-n.submitCh:
			err = n.submit(s.round, s.model)
			s.errCh <- err
			// a refused submission is the caller's problem
			if !isFatal(err) {
				err = nil
			}
		case <-n.controlTimer.tickCh:
			err = n.heartbeat()
		case <-n.trans.Done():
			n.logger.Debug("Transport closed")
			n.stop()
			return nil
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT")
			n.stop()
			return nil
		case <-n.shutdownCh:
			return nil
		}

		if err != nil {
			n.logger.WithError(err).Error("Fatal error")
			n.stop()
			return err
		}
	}
}

// isFatal reports whether err leaves the node unable to continue. Capacity
// errors from a submission only refuse that model.
func isFatal(err error) bool {
	return err != nil &&
		(cm.IsGossip(err, cm.NeighborNotFound) || cm.IsGossip(err, cm.MissingOrigin))
}

// Submit sets the local model for round and originates it. If round differs
// from the current round, the node advances to it, keeping only the models
// already received for that round. It blocks until the run loop has handled
// the submission.
func (n *Node) Submit(round net.RoundID, model []byte) error {
	errCh := make(chan error, 1)

	select {
	case n.submitCh <- submission{round: round, model: model, errCh: errCh}:
	case <-n.shutdownCh:
		return ErrNodeShutdown
	}

	select {
	case err := <-errCh:
		return err
	case <-n.shutdownCh:
		return ErrNodeShutdown
	}
}

func (n *Node) submit(round net.RoundID, model []byte) error {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if err := n.core.SetModel(model); err != nil {
		n.logger.WithError(err).Error("Refusing model")
		return err
	}

	if n.core.Advance(round) {
		n.logger.WithField("round", round).Info("New round")
	}

	if err := n.store.SetLastRound(round); err != nil {
		n.logger.WithError(err).Error("Failed to store round")
	}
	if err := n.store.SetModel(round, n.id, model); err != nil {
		n.logger.WithError(err).Error("Failed to store model")
	}

	report, err := n.core.Broadcast(n.id)
	if err != nil {
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"round":      report.Round,
		"size":       len(model),
		"hash":       cm.ModelHash(model),
		"sent":       len(report.Sent),
		"suppressed": len(report.Suppressed),
		"failed":     len(report.Failed),
	}).Debug("Originated model")

	n.resetTimer()

	return nil
}

// heartbeat re-originates the local model. Neighbors that lost it, or joined
// late, receive it again; the others overwrite it with identical bytes.
func (n *Node) heartbeat() error {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if !n.core.HasModel() {
		return nil
	}

	n.logger.Debug("Heartbeat")

	if _, err := n.core.Broadcast(n.id); err != nil {
		return err
	}

	n.resetTimer()

	return nil
}

// resetTimer must be called from the run loop
func (n *Node) resetTimer() {
	if n.conf.HeartbeatTimeout > 0 {
		n.controlTimer.Reset(n.conf.HeartbeatTimeout)
	}
}

// stop marks the node as shut down and releases everything waiting on it. It
// does not wait for the run loop.
func (n *Node) stop() bool {
	n.runLock.Lock()
	defer n.runLock.Unlock()

	if n.GetState() == state.Shutdown {
		return n.running
	}

	n.logger.Debug("Shutdown")

	// Exit any non-shutdown state immediately
	n.SetState(state.Shutdown)
	close(n.shutdownCh)

	return n.running
}

// teardown releases the timer, the transport, and the store once.
func (n *Node) teardown() {
	n.teardownOnce.Do(func() {
		n.controlTimer.Shutdown()

		signal.Stop(n.sigintCh)

		// transport and store should only be closed once the run loop is
		// finished otherwise it would try to use closed objects
		n.trans.Close()

		if err := n.store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	})
}

// Shutdown shuts down the node and waits for the run loop to exit
func (n *Node) Shutdown() {
	if running := n.stop(); running {
		<-n.doneCh
		return
	}
	n.teardown()
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	s := map[string]string{
		"id":            n.id.String(),
		"moniker":       n.moniker,
		"state":         n.GetState().String(),
		"round":         strconv.FormatUint(uint64(n.core.Round()), 10),
		"inbox_size":    strconv.Itoa(len(n.core.state.Origins())),
		"has_model":     strconv.FormatBool(n.core.HasModel()),
		"num_neighbors": strconv.Itoa(n.core.registry.Len()),
		"num_peers":     strconv.Itoa(n.peers.Len()),
		"received":      strconv.Itoa(n.core.received),
		"sent":          strconv.Itoa(n.core.sent),
		"suppressed":    strconv.Itoa(n.core.suppressed),
		"send_errors":   strconv.Itoa(n.core.sendErrors),
	}

	if !n.start.IsZero() {
		s["uptime"] = time.Since(n.start).Round(time.Second).String()
	}

	return s
}

// ID returns the id of the node
func (n *Node) ID() net.NodeID {
	return n.id
}

// Limits returns the capacity constants the node enforces
func (n *Node) Limits() net.Limits {
	return n.core.limits
}

// GetPeers returns the peers of the topology ordered by id
func (n *Node) GetPeers() []*peers.Peer {
	return n.peers.Sorted()
}

// NeighborInfo is a snapshot of a neighbor and its knowledge set.
type NeighborInfo struct {
	ID        uint64
	NetAddr   string
	Moniker   string
	Knowledge []uint64
}

// GetNeighbors returns a snapshot of the neighbors and their knowledge sets
func (n *Node) GetNeighbors() []NeighborInfo {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	res := []NeighborInfo{}
	for _, nb := range n.core.registry.All() {
		info := NeighborInfo{
			ID:        uint64(nb.ID),
			NetAddr:   nb.NetAddr,
			Moniker:   nb.Moniker,
			Knowledge: []uint64{},
		}
		for _, k := range nb.Knowledge() {
			info.Knowledge = append(info.Knowledge, uint64(k))
		}
		res = append(res, info)
	}
	return res
}

// GetInbox returns the current round and a copy of the inbox
func (n *Node) GetInbox() (net.RoundID, map[net.NodeID][]byte) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.Round(), n.core.Inbox()
}
