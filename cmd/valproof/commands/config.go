package commands

import (
	"github.com/mosaicnetworks/valproof/src/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//CLIConfig contains configuration for the valproof commands
type CLIConfig struct {
	Valproof config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Valproof: *config.NewDefaultConfig(),
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Valproof.SetDataDir(_config.Valproof.DataDir)

	logFields := logrus.Fields{
		"valproof.DataDir":         _config.Valproof.DataDir,
		"valproof.ListenAddrs":     _config.Valproof.ListenAddrs,
		"valproof.BootstrapAddrs":  _config.Valproof.BootstrapAddrs,
		"valproof.Protocol":        _config.Valproof.Protocol,
		"valproof.EnableConsensus": _config.Valproof.EnableConsensus,
		"valproof.ServiceAddr":     _config.Valproof.ServiceAddr,
		"valproof.NoService":       _config.Valproof.NoService,
		"valproof.StreamTimeout":   _config.Valproof.StreamTimeout,
		"valproof.ChannelCapacity": _config.Valproof.ChannelCapacity,
		"valproof.ConnLow":         _config.Valproof.ConnLow,
		"valproof.ConnHigh":        _config.Valproof.ConnHigh,
		"valproof.Store":           _config.Valproof.Store,
		"valproof.LogLevel":        _config.Valproof.LogLevel,
		"valproof.Moniker":         _config.Valproof.Moniker,
	}

	if _config.Valproof.Store {
		logFields["valproof.DatabaseDir"] = _config.Valproof.DatabaseDir
	}

	_config.Valproof.Logger().WithFields(logFields).Debug("Config")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/valproof.toml (.json, .yaml also work)
	viper.SetConfigName("valproof")
	viper.AddConfigPath(_config.Valproof.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Valproof.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Valproof.Logger().Debugf("No config file found in: %s", _config.Valproof.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
