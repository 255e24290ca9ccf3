package net

import (
	"strings"
	"testing"
	"time"

	"github.com/polyferno/polyferno/src/common"
)

func TestNetworkTransport_StartStop(t *testing.T) {
	trans, err := NewTCPTransport("127.0.0.1:0", "", 2, 16, time.Second, testLimits, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	trans.Close()
}

func TestNetworkTransport_BroadcastResponse(t *testing.T) {
	// Transport 1 is consumer
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, 16, time.Second, testLimits, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()
	rpcCh := trans1.Consumer()

	req := testRequest(t, 1, 4, []byte{0xAA})
	resp, err := NewBroadcastResponse(4, testLimits.NumNodes, []NodeID{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	// Listen for a request
	go func() {
		select {
		case rpc := <-rpcCh:
			rpc.Respond(resp, nil)
		case <-time.After(2 * time.Second):
		}
	}()

	// Transport 2 makes outbound request
	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, 16, time.Second, testLimits, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	var out BroadcastResponse
	msg := outbound{header: Header{Src: 2, Dst: 1}, req: req}
	if err := trans2.genericRPC(trans1.LocalAddr(), rpcBroadcast, time.Second, msg, &out); err != nil {
		t.Fatalf("err: %v", err)
	}

	if out.Round != 4 {
		t.Fatalf("round should be 4, not %d", out.Round)
	}
	ids := out.Knowledge.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("knowledge should be [1 2], not %v", ids)
	}
}

func TestNetworkTransport_RefusesOversizedModel(t *testing.T) {
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, 16, time.Second, testLimits, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()

	// the sender is configured with a larger model size than the receiver
	bigLimits := Limits{ModelSize: testLimits.ModelSize * 2, NumNodes: testLimits.NumNodes}
	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, 16, time.Second, bigLimits, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	model, err := ModelBytesFrom(bigLimits.ModelSize, make([]byte, testLimits.ModelSize+1))
	if err != nil {
		t.Fatal(err)
	}
	big := &BroadcastRequest{Origin: 2, Round: 1, Model: model}

	var out BroadcastResponse
	err = trans2.genericRPC(trans1.LocalAddr(), rpcBroadcast, time.Second,
		outbound{header: Header{Src: 2, Dst: 1}, req: big}, &out)
	if err == nil || !strings.Contains(err.Error(), common.CapacityExceeded.String()) {
		t.Fatalf("expected a capacity error, got %v", err)
	}

	// the connection survives the refusal
	small := testRequest(t, 2, 1, []byte{0x01})
	go func() {
		select {
		case rpc := <-trans1.Consumer():
			rpc.Respond(&BroadcastResponse{Round: 1, Knowledge: *NewNodeSet(testLimits.NumNodes)}, nil)
		case <-time.After(2 * time.Second):
		}
	}()
	if err := trans2.genericRPC(trans1.LocalAddr(), rpcBroadcast, time.Second,
		outbound{header: Header{Src: 2, Dst: 1}, req: small}, &out); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestNetworkTransport_ReportsLostRequest(t *testing.T) {
	// nothing listens at the address of a closed transport
	gone, err := NewTCPTransport("127.0.0.1:0", "", 2, 16, time.Second, testLimits, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	target := gone.LocalAddr()
	gone.Close()

	trans, err := NewTCPTransport("127.0.0.1:0", "", 2, 16, time.Second, testLimits, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()

	failures := make(chan SendFailure, 1)
	trans.OnSendFailure(func(f SendFailure) {
		failures <- f
	})

	if err := trans.Broadcast(target, Header{Src: 2, Dst: 1}, testRequest(t, 2, 0, []byte{0x01})); err != nil {
		t.Fatalf("the request should be enqueued: %v", err)
	}

	select {
	case f := <-failures:
		if f.Target != target || f.Origin != 2 || f.Header.Dst != 1 || f.Err == nil {
			t.Fatalf("unexpected failure %#v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("the lost request should be reported")
	}
}
