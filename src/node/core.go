package node

import (
	"time"

	cm "github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/metrics"
	"github.com/polyferno/polyferno/src/net"
	"github.com/sirupsen/logrus"
)

// Sender hands a BroadcastRequest to the messaging substrate for one target.
// It must not block; an error only means the request was not enqueued.
type Sender interface {
	Broadcast(target string, header net.Header, req *net.BroadcastRequest) error
}

// BroadcastReport describes one forwarding step: which neighbors were sent the
// request, which were skipped because they already had it, and which sends
// the transport refused.
type BroadcastReport struct {
	Origin     net.NodeID
	Round      net.RoundID
	Sent       []net.NodeID
	Suppressed []net.NodeID
	Failed     map[net.NodeID]error
}

// Core is the propagation engine of a node. It is not safe for concurrent use;
// the Node serializes access to it.
type Core struct {
	// id is the id of this node. It is the origin of the local model.
	id net.NodeID

	// limits bound models and knowledge sets.
	limits net.Limits

	// state holds the round, the inbox, and the local model.
	state *NodeState

	// registry holds the neighbors and their knowledge sets.
	registry *Registry

	sender  Sender
	metrics *metrics.Metrics
	label   string

	received   int
	sent       int
	suppressed int
	sendErrors int

	logger *logrus.Entry
}

// NewCore is a factory method that returns a new Core object
func NewCore(
	id net.NodeID,
	limits net.Limits,
	registry *Registry,
	sender Sender,
	m *metrics.Metrics,
	logger *logrus.Entry,
) *Core {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if m == nil {
		m = metrics.DefaultMetrics
	}

	return &Core{
		id:       id,
		limits:   limits,
		state:    NewNodeState(0),
		registry: registry,
		sender:   sender,
		metrics:  m,
		label:    id.String(),
		logger:   logger.WithField("this_id", id),
	}
}

// Receive handles an inbound BroadcastRequest: it stores the model under its
// origin and round, records that the sender holds that origin when the sender
// is a relay, and forwards the model to the neighbors that may not have it.
// The node's own model coming back takes the same path.
//
// Errors are fatal: they denote a misconfigured topology or capacity.
func (c *Core) Receive(hdr net.Header, req *net.BroadcastRequest) (BroadcastReport, error) {
	c.received++
	c.metrics.RecordReceive(c.label)

	if err := c.state.Insert(req.Origin, req.Round, req.Model.Bytes(), c.limits); err != nil {
		return BroadcastReport{}, err
	}
	c.updateMetrics()

	if err := c.recordRelay(hdr, req); err != nil {
		return BroadcastReport{}, err
	}

	return c.Broadcast(req.Origin)
}

func (c *Core) recordRelay(hdr net.Header, req *net.BroadcastRequest) error {
	if hdr.Src == req.Origin {
		return nil
	}
	return c.registry.RecordRelay(hdr.Src, req.Origin)
}

// Broadcast sends the model of origin to every neighbor that is not the origin
// and is not known to hold it already. The model is the local one, tagged with
// the current round, when origin is this node and a local model is set. It is
// the inbox entry, with the round it was received with, otherwise.
//
// A send refused by the transport is logged and reported, and does not stop
// the loop. Only a missing model or an oversized local model is an error.
func (c *Core) Broadcast(origin net.NodeID) (BroadcastReport, error) {
	start := time.Now()

	report := BroadcastReport{
		Origin: origin,
		Failed: make(map[net.NodeID]error),
	}

	round, model, err := c.payload(origin)
	if err != nil {
		return report, err
	}
	report.Round = round

	req := &net.BroadcastRequest{
		Origin: origin,
		Round:  round,
		Model:  model,
	}

	for _, n := range c.registry.All() {
		if c.registry.AlreadyKnows(n.ID, origin) {
			report.Suppressed = append(report.Suppressed, n.ID)
			continue
		}

		hdr := net.Header{Src: c.id, Dst: n.ID}
		if err := c.sender.Broadcast(n.NetAddr, hdr, req); err != nil {
			c.logger.WithFields(logrus.Fields{
				"dst":    n.ID,
				"origin": origin,
				"error":  err,
			}).Error("Failed to send BroadcastRequest")
			report.Failed[n.ID] = err
			continue
		}

		c.logger.WithFields(logrus.Fields{
			"dst":    n.ID,
			"origin": origin,
			"round":  req.Round,
		}).Debug("Sent BroadcastRequest")
		report.Sent = append(report.Sent, n.ID)
	}

	c.sent += len(report.Sent)
	c.suppressed += len(report.Suppressed)
	c.sendErrors += len(report.Failed)
	c.metrics.RecordBroadcast(c.label,
		len(report.Sent),
		len(report.Suppressed),
		len(report.Failed),
		time.Since(start))

	return report, nil
}

func (c *Core) payload(origin net.NodeID) (net.RoundID, net.ModelBytes, error) {
	if origin == c.id && c.state.Model != nil {
		model, err := net.ModelBytesFrom(c.limits.ModelSize, c.state.Model)
		return c.state.Round, model, err
	}
	e, ok := c.state.Inbox[origin]
	if !ok {
		return 0, net.ModelBytes{}, cm.NewGossipErr("Inbox", cm.MissingOrigin, origin.String())
	}
	return e.Round, e.Model, nil
}

// RecordSendFailure accounts for a request the transport accepted in Broadcast
// but could not deliver.
func (c *Core) RecordSendFailure(f net.SendFailure) {
	c.sendErrors++
	c.metrics.RecordSendFailure(c.label)
	c.logger.WithFields(logrus.Fields{
		"dst":    f.Header.Dst,
		"origin": f.Origin,
		"error":  f.Err,
	}).Debug("BroadcastRequest lost")
}

// SetModel replaces the local model. It fails with CapacityExceeded, leaving
// the previous model in place, if the model is larger than the model size.
func (c *Core) SetModel(model []byte) error {
	if len(model) > c.limits.ModelSize {
		return cm.NewGossipErr("Model", cm.CapacityExceeded, c.id.String())
	}
	m := make([]byte, len(model))
	copy(m, model)
	c.state.Model = m
	return nil
}

// HasModel reports whether a local model was set.
func (c *Core) HasModel() bool {
	return c.state.Model != nil
}

// Advance moves to round if it differs from the current round. Inbox entries
// received for round are kept; the others are dropped. It reports whether the
// round changed.
func (c *Core) Advance(round net.RoundID) bool {
	if round == c.state.Round {
		return false
	}
	c.logger.WithFields(logrus.Fields{
		"from": c.state.Round,
		"to":   round,
	}).Debug("Advance round")
	c.state.Reset(round)
	c.updateMetrics()
	return true
}

// Restore puts a persisted model back in place without forwarding it. The
// model of this node becomes the local model.
func (c *Core) Restore(origin net.NodeID, model []byte) error {
	if origin == c.id {
		return c.SetModel(model)
	}
	if err := c.state.Insert(origin, c.state.Round, model, c.limits); err != nil {
		return err
	}
	c.updateMetrics()
	return nil
}

// Knowledge returns this node's knowledge for the current round: the origins
// present in the inbox.
func (c *Core) Knowledge() (*net.BroadcastResponse, error) {
	return net.NewBroadcastResponse(c.state.Round, c.limits.NumNodes, c.state.Origins())
}

// Round returns the current round.
func (c *Core) Round() net.RoundID {
	return c.state.Round
}

// Inbox returns a copy of the inbox entries of the current round.
func (c *Core) Inbox() map[net.NodeID][]byte {
	res := make(map[net.NodeID][]byte, len(c.state.Inbox))
	for o, e := range c.state.Inbox {
		if e.Round == c.state.Round {
			res[o] = append([]byte(nil), e.Model.Bytes()...)
		}
	}
	return res
}

// Model returns a copy of the local model.
func (c *Core) Model() []byte {
	if c.state.Model == nil {
		return nil
	}
	return append([]byte(nil), c.state.Model...)
}

func (c *Core) updateMetrics() {
	c.metrics.UpdateState(c.label, uint64(c.state.Round), len(c.state.Origins()))
}
