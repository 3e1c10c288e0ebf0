package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/valproof/src/crypto/keys"
	"github.com/mosaicnetworks/valproof/src/valproof"
	"github.com/spf13/cobra"
)

const pubKeyFile = "key.pub"

// NewKeygenCmd produces a KeygenCmd which creates a validator key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keygen",
		Short:   "Create new validator key pair",
		PreRunE: loadConfig,
		RunE:    keygen,
	}

	return cmd
}

func keygen(cmd *cobra.Command, args []string) error {
	datadir := _config.Valproof.DataDir

	key, err := valproof.Keygen(datadir)
	if err != nil {
		return err
	}

	fmt.Printf("Your private key has been saved to: %s\n", _config.Valproof.Keyfile())

	pubFile := filepath.Join(datadir, pubKeyFile)

	pub := keys.PublicKeyHex(&key.PublicKey)

	if err := os.WriteFile(pubFile, []byte(pub), 0600); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	fmt.Printf("Your public key has been saved to: %s\n", pubFile)

	return nil
}
