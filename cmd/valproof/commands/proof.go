package commands

import (
	"fmt"

	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/mosaicnetworks/valproof/src/valproof"
	"github.com/spf13/cobra"
)

// NewProofCmd produces a ProofCmd which signs the proof binding the validator
// key to the node key, and saves it in the database.
func NewProofCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "proof",
		Short:   "Sign and store the validator proof",
		PreRunE: loadConfig,
		RunE:    signProof,
	}

	cmd.Flags().String("db", _config.Valproof.DatabaseDir, "Database directory")

	return cmd
}

func signProof(cmd *cobra.Command, args []string) error {
	// The proof is only useful if the node finds it on its next start.
	_config.Valproof.Store = true

	signed, id, err := valproof.SignProof(&_config.Valproof)
	if err != nil {
		return err
	}

	fmt.Printf("Peer ID: %s\n", id)
	fmt.Printf("Proof: %s\n", common.EncodeToString(signed))
	fmt.Printf("The proof has been saved to: %s\n", _config.Valproof.DatabaseDir)

	return nil
}
