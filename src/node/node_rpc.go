package node

import (
	"fmt"

	"github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/net"
	"github.com/sirupsen/logrus"
)

// processRPC dispatches an inbound RPC. The returned error is fatal.
func (n *Node) processRPC(rpc net.RPC) error {
	switch cmd := rpc.Command.(type) {
	case *net.BroadcastRequest:
		return n.processBroadcastRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
		return nil
	}
}

// processBroadcastRequest hands the request to the core, mirrors the new inbox
// entry to the store, and responds with this node's knowledge for the round.
func (n *Node) processBroadcastRequest(rpc net.RPC, cmd *net.BroadcastRequest) error {
	n.logger.WithFields(logrus.Fields{
		"src":    rpc.Header.Src,
		"dst":    rpc.Header.Dst,
		"origin": cmd.Origin,
		"round":  cmd.Round,
		"size":   cmd.Model.Len(),
		"hash":   common.ModelHash(cmd.Model.Bytes()),
	}).Debug("process BroadcastRequest")

	if rpc.Header.Dst != n.id {
		n.logger.WithField("dst", rpc.Header.Dst).Warn("BroadcastRequest addressed to another node")
	}

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	report, err := n.core.Receive(rpc.Header, cmd)
	if err != nil {
		n.logger.WithError(err).Error("Receive")
		rpc.Respond(nil, err)
		return err
	}

	if cmd.Origin != n.id {
		if err := n.store.SetModel(cmd.Round, cmd.Origin, cmd.Model.Bytes()); err != nil {
			n.logger.WithError(err).Error("Failed to store model")
		}
	}

	n.logger.WithFields(logrus.Fields{
		"origin":     report.Origin,
		"sent":       len(report.Sent),
		"suppressed": len(report.Suppressed),
		"failed":     len(report.Failed),
	}).Debug("Forwarded")

	resp, err := n.core.Knowledge()
	if err != nil {
		rpc.Respond(nil, err)
		return err
	}

	rpc.Respond(resp, nil)

	return nil
}
