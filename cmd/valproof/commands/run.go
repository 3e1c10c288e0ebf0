package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/valproof/src/valproof"
	"github.com/spf13/cobra"
)

//NewRunCmd returns the command that starts a valproof node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runValproof,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runValproof(cmd *cobra.Command, args []string) error {
	engine := valproof.NewEngine(&_config.Valproof)

	if err := engine.Init(); err != nil {
		_config.Valproof.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		<-sigCh
		_config.Valproof.Logger().Info("Shutting down")
		engine.Shutdown()
		close(done)
	}()

	engine.Run()

	<-done

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-file", _config.Valproof.LogFile, "Also write logs, as JSON, to this file")
	cmd.Flags().String("moniker", _config.Valproof.Moniker, "Optional name")

	// Network
	cmd.Flags().StringSliceP("listen", "l", _config.Valproof.ListenAddrs, "Multiaddresses to listen on")
	cmd.Flags().StringSliceP("bootstrap", "b", _config.Valproof.BootstrapAddrs, "Multiaddresses, with /p2p/ component, of peers to dial at startup")
	cmd.Flags().String("protocol", _config.Valproof.Protocol, "Protocol name for proof streams")
	cmd.Flags().DurationP("timeout", "t", _config.Valproof.StreamTimeout, "Timeout for reading or writing one proof")
	cmd.Flags().Int("conn-low", _config.Valproof.ConnLow, "Connection manager low watermark")
	cmd.Flags().Int("conn-high", _config.Valproof.ConnHigh, "Connection manager high watermark")
	cmd.Flags().Duration("conn-grace", _config.Valproof.ConnGrace, "Time a new connection is protected from trimming")

	// Proof protocol
	cmd.Flags().Bool("enable-consensus", _config.Valproof.EnableConsensus, "Send and accept validator proofs")
	cmd.Flags().Int("channel-capacity", _config.Valproof.ChannelCapacity, "Capacity of the channels between event loop and verifier")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Valproof.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Valproof.NoService, "Disable HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Valproof.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Valproof.DatabaseDir, "Dabatabase directory")
}
