package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/mosaicnetworks/spantree/src/peers"
	"github.com/spf13/cobra"
)

var (
	peersDataDir  string
	peersTopology string
	peersAddrs    string
)

// NewPeersCmd produces a PeersCmd which writes a peers.json for a generated
// topology
func NewPeersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Create a peers.json file",
		RunE:  writePeers,
	}

	AddPeersFlags(cmd)

	return cmd
}

//AddPeersFlags adds flags to the Peers command
func AddPeersFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&peersDataDir, "datadir", _config.Spantree.DataDir, "Directory where peers.json is written")
	cmd.Flags().StringVar(&peersTopology, "topology", "complete", "complete or chain")
	cmd.Flags().StringVar(&peersAddrs, "addrs", "", "Comma separated IP:Port of each process, in id order")
}

func writePeers(cmd *cobra.Command, args []string) error {
	addrs := strings.Split(peersAddrs, ",")
	if peersAddrs == "" {
		return fmt.Errorf("--addrs is required")
	}

	var peerSet *peers.PeerSet
	switch peersTopology {
	case "complete":
		peerSet = peers.Complete(addrs)
	case "chain":
		peerSet = peers.Chain(addrs)
	default:
		return fmt.Errorf("unknown topology %q", peersTopology)
	}

	if err := os.MkdirAll(peersDataDir, 0700); err != nil {
		return err
	}

	if err := peers.NewJSONPeerSet(peersDataDir).Write(peerSet.Peers); err != nil {
		return err
	}

	fmt.Printf("Wrote %d peers to %s/peers.json\n", peerSet.Len(), peersDataDir)

	return nil
}
