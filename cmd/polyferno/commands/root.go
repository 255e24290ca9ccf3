package commands

import (
	"github.com/polyferno/polyferno/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

// RootCmd is the root command for polyferno
var RootCmd = &cobra.Command{
	Use:              "polyferno",
	Short:            "gossip diffusion of model updates",
	TraverseChildren: true,
}
