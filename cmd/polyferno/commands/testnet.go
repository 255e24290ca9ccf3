package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/polyferno/polyferno/src/peers"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Testnet topologies.
const (
	TopologyFull = "full"
	TopologyRing = "ring"
)

var testnet = struct {
	Nodes     int
	Output    string
	Topology  string
	Transport string
	Heartbeat string
	BasePort  int
	BaseSvc   int
}{
	Nodes:     4,
	Output:    filepath.Join(os.TempDir(), "polyferno_testnet"),
	Topology:  TopologyFull,
	Transport: "tcp",
	Heartbeat: "0s",
	BasePort:  1337,
	BaseSvc:   8000,
}

// NewTestnetCmd returns the command that writes the configuration of a local
// network, one data directory per node
func NewTestnetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testnet",
		Short: "Write the configuration of a local network",
		RunE:  writeTestnet,
	}

	cmd.Flags().IntVar(&testnet.Nodes, "nodes", testnet.Nodes, "Amount of nodes")
	cmd.Flags().StringVar(&testnet.Output, "output", testnet.Output, "Directory where node directories are written")
	cmd.Flags().StringVar(&testnet.Topology, "topology", testnet.Topology, "full or ring")
	cmd.Flags().StringVar(&testnet.Transport, "transport", testnet.Transport, "tcp or zmq")
	cmd.Flags().StringVar(&testnet.Heartbeat, "heartbeat", testnet.Heartbeat, "Heartbeat of every node")
	cmd.Flags().IntVar(&testnet.BasePort, "port", testnet.BasePort, "Listen port of the first node, the others are spaced by 10")
	cmd.Flags().IntVar(&testnet.BaseSvc, "service-port", testnet.BaseSvc, "Service port of the first node")

	return cmd
}

func writeTestnet(cmd *cobra.Command, args []string) error {
	if testnet.Nodes < 2 {
		return fmt.Errorf("a testnet needs at least two nodes")
	}
	if testnet.Topology != TopologyFull && testnet.Topology != TopologyRing {
		return fmt.Errorf("unknown topology %q", testnet.Topology)
	}

	peerList := []*peers.Peer{}
	for i := 1; i <= testnet.Nodes; i++ {
		peerList = append(peerList, peers.NewPeer(
			uint64(i),
			fmt.Sprintf("127.0.0.1:%d", testnet.BasePort+(i-1)*10),
			"node"+strconv.Itoa(i),
		))
	}

	for _, p := range peerList {
		dir := filepath.Join(testnet.Output, p.Moniker)

		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}

		if err := peers.NewJSONPeerSet(dir).Write(peerList); err != nil {
			return err
		}

		v := viper.New()
		v.Set("id", int64(p.ID))
		v.Set("moniker", p.Moniker)
		v.Set("listen", p.NetAddr)
		v.Set("transport", testnet.Transport)
		v.Set("heartbeat", testnet.Heartbeat)
		v.Set("service-listen", fmt.Sprintf("127.0.0.1:%d", testnet.BaseSvc+int(p.ID)-1))
		if testnet.Topology == TopologyRing {
			v.Set("neighbors", ringNeighbors(int64(p.ID), int64(testnet.Nodes)))
		}

		if err := v.WriteConfigAs(filepath.Join(dir, "polyferno.toml")); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "polyferno run --datadir %s\n", dir)
	}

	return nil
}

// ringNeighbors returns the previous and next ids of id in a ring of ids 1 to
// n.
func ringNeighbors(id, n int64) []int64 {
	prev := (id+n-2)%n + 1
	next := id%n + 1
	if prev == next {
		return []int64{prev}
	}
	return []int64{prev, next}
}
