package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for valproof
var RootCmd = &cobra.Command{
	Use:              "valproof",
	Short:            "validator proof protocol",
	TraverseChildren: true,
}

func init() {
	RootCmd.PersistentFlags().String("datadir", _config.Valproof.DataDir, "Top-level directory for configuration and data")
	RootCmd.PersistentFlags().String("log", _config.Valproof.LogLevel, "debug, info, warn, error, fatal, panic")
}
