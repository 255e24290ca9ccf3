package net

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/polyferno/polyferno/src/common"
)

const (
	INMEM = iota
	TCP
	ZMQ
	numTestTransports // NOTE: must be last
)

var testLimits = Limits{ModelSize: 64, NumNodes: 4}

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr, 16)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, 16, time.Second, testLimits, common.NewTestEntry(t, common.TestLogLevel))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	case ZMQ:
		zt, err := NewZmqTransport(NewInmemAddr(), addr, "", 16, testLimits, common.NewTestEntry(t, common.TestLogLevel))
		if err != nil {
			t.Fatal(err)
		}
		go zt.Listen()
		return zt
	default:
		panic("Unknown transport type")
	}
}

func testRequest(t *testing.T, origin NodeID, round RoundID, data []byte) *BroadcastRequest {
	model, err := ModelBytesFrom(testLimits.ModelSize, data)
	if err != nil {
		t.Fatal(err)
	}
	return &BroadcastRequest{
		Origin: origin,
		Round:  round,
		Model:  model,
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
		select {
		case <-trans.Done():
		default:
			t.Fatalf("transport %d: Done should be closed after Close", ttype)
		}
	}
}

func TestTransport_Broadcast(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)

		if ttype == INMEM {
			trans2.(*InmemTransport).Connect(trans1.LocalAddr(), trans1)
		}

		header := Header{Src: 2, Dst: 1}
		req := testRequest(t, 3, 7, []byte{0xAA, 0xBB, 0xCC})

		if err := trans2.Broadcast(trans1.AdvertiseAddr(), header, req); err != nil {
			t.Fatalf("transport %d: err: %v", ttype, err)
		}

		select {
		case rpc := <-trans1.Consumer():
			if !reflect.DeepEqual(rpc.Header, header) {
				t.Fatalf("transport %d: header mismatch: %#v %#v", ttype, rpc.Header, header)
			}
			got := rpc.Command.(*BroadcastRequest)
			if got.Origin != req.Origin || got.Round != req.Round || !got.Model.Equal(req.Model) {
				t.Fatalf("transport %d: command mismatch: %#v %#v", ttype, got, req)
			}
			if got.Model.Cap() != testLimits.ModelSize {
				t.Fatalf("transport %d: model capacity should be %d, not %d", ttype, testLimits.ModelSize, got.Model.Cap())
			}
			rpc.Respond(nil, nil)
		case <-time.After(2 * time.Second):
			t.Fatalf("transport %d: timeout", ttype)
		}

		trans2.Close()
		trans1.Close()
	}
}

func TestTransport_BroadcastAfterClose(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		trans.Close()

		err := trans.Broadcast("127.0.0.1:1", Header{}, testRequest(t, 1, 1, nil))
		if !errors.Is(err, ErrTransportShutdown) {
			t.Fatalf("transport %d: expected ErrTransportShutdown, got %v", ttype, err)
		}
	}
}

func TestInmemTransport_Delivery(t *testing.T) {
	addr1, trans1 := NewInmemTransport("", 1)
	_, trans2 := NewInmemTransport("", 1)

	req := testRequest(t, 2, 1, []byte{0x01})

	if err := trans2.Broadcast(addr1, Header{Src: 2, Dst: 1}, req); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}

	trans2.Connect(addr1, trans1)

	if err := trans2.Broadcast(addr1, Header{Src: 2, Dst: 1}, req); err != nil {
		t.Fatal(err)
	}
	if err := trans2.Broadcast(addr1, Header{Src: 2, Dst: 1}, req); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	rpc := <-trans1.Consumer()
	delivered := rpc.Command.(*BroadcastRequest)

	// the receiver owns its copy
	delivered.Model.Bytes()[0] = 0xFF
	if req.Model.Bytes()[0] != 0x01 {
		t.Fatalf("delivered request should not share the sender's buffer")
	}

	trans1.Close()
	if err := trans2.Broadcast(addr1, Header{Src: 2, Dst: 1}, req); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget for a closed peer, got %v", err)
	}
}
