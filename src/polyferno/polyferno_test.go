package polyferno

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/config"
	"github.com/polyferno/polyferno/src/net"
	"github.com/polyferno/polyferno/src/peers"
	"github.com/polyferno/polyferno/src/store"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "polyferno")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestFreshPath(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "badger_db")

	if res := freshPath(path); res != path {
		t.Fatalf("expected %s, got %s", path, res)
	}

	os.Mkdir(path, 0700)
	os.Mkdir(path+"(1)", 0700)

	if res := freshPath(path); res != path+"(2)" {
		t.Fatalf("expected %s(2), got %s", path, res)
	}
}

func TestInitStore(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.SetDataDir(dir)
	conf.Store = true

	engine := NewPolyferno(conf)
	if err := engine.initStore(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Store.SetLastRound(2); err != nil {
		t.Fatal(err)
	}
	engine.Store.Close()

	engine2 := NewPolyferno(conf)
	if err := engine2.initStore(); err != nil {
		t.Fatal(err)
	}
	defer engine2.Store.Close()

	// check that engine2 created a new db (badger_db(1))
	if engine2.Store.StorePath() != filepath.Join(dir, "badger_db(1)") {
		t.Fatalf("a new database should be created, got %s", engine2.Store.StorePath())
	}

	// with bootstrap, the existing database is reopened
	conf.Bootstrap = true
	engine3 := NewPolyferno(conf)
	if err := engine3.initStore(); err == nil {
		defer engine3.Store.Close()
		round, err := engine3.Store.LastRound()
		if err != nil || round != 2 {
			t.Fatalf("the existing database should be reopened: %d, %v", round, err)
		}
	} else {
		t.Fatal(err)
	}
}

func TestInitStoreInmem(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)

	engine := NewPolyferno(conf)
	if err := engine.initStore(); err != nil {
		t.Fatal(err)
	}
	if _, ok := engine.Store.(*store.InmemStore); !ok {
		t.Fatalf("expected an in-memory store, got %T", engine.Store)
	}
}

func TestInitPeers(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.SetDataDir(dir)

	jsonPeerSet := peers.NewJSONPeerSet(dir)
	if err := jsonPeerSet.Write([]*peers.Peer{peers.NewPeer(1, "127.0.0.1:1", "alone")}); err != nil {
		t.Fatal(err)
	}

	if err := NewPolyferno(conf).initPeers(); err == nil {
		t.Fatal("a single peer should be refused")
	}

	if err := jsonPeerSet.Write([]*peers.Peer{
		peers.NewPeer(1, "127.0.0.1:1", "a"),
		peers.NewPeer(1, "127.0.0.1:2", "b"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := NewPolyferno(conf).initPeers(); err == nil {
		t.Fatal("duplicate ids should be refused")
	}
}

func TestInitBadConfig(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.Transport = "carrier-pigeon"

	if err := NewPolyferno(conf).Init(); err == nil {
		t.Fatal("an unknown transport should be refused")
	}
}

func TestRun(t *testing.T) {
	for i, transport := range []string{config.TransportTCP, config.TransportZMQ} {
		transport := transport
		port := 47100 + 10*i
		t.Run(transport, func(t *testing.T) {
			testRun(t, transport, port)
		})
	}
}

// testRun starts two engines; the first submits a model file that must reach
// the second.
func testRun(t *testing.T, transport string, port int) {
	peerList := []*peers.Peer{
		peers.NewPeer(1, fmt.Sprintf("127.0.0.1:%d", port), "node1"),
		peers.NewPeer(2, fmt.Sprintf("127.0.0.1:%d", port+1), "node2"),
	}

	engines := []*Polyferno{}
	for _, p := range peerList {
		dir := tempDir(t)
		defer os.RemoveAll(dir)

		if err := peers.NewJSONPeerSet(dir).Write(peerList); err != nil {
			t.Fatal(err)
		}

		conf := config.NewTestConfig(t, common.TestLogLevel)
		conf.SetDataDir(dir)
		conf.ID = p.ID
		conf.BindAddr = p.NetAddr
		conf.Transport = transport
		conf.NoService = true
		conf.ModelSize = 1024

		if p.ID == 1 {
			conf.ModelFile = filepath.Join(dir, "model.bin")
			if err := ioutil.WriteFile(conf.ModelFile, []byte("weights"), 0644); err != nil {
				t.Fatal(err)
			}
		}

		engine := NewPolyferno(conf)
		if err := engine.Init(); err != nil {
			t.Fatal(err)
		}
		defer engine.Shutdown()

		engines = append(engines, engine)
	}

	for _, e := range engines {
		go e.Run()
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		_, inbox := engines[1].Node.GetInbox()
		if reflect.DeepEqual(inbox, map[net.NodeID][]byte{1: []byte("weights")}) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for the model of node 1, inbox %v", inbox)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
