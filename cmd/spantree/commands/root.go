package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for spantree
var RootCmd = &cobra.Command{
	Use:              "spantree",
	Short:            "spanning-tree termination detection",
	TraverseChildren: true,
}
