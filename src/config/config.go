package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the validator's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultNodeKeyfile is the default name of the file containing the
	// node's network identity key.
	DefaultNodeKeyfile = "node_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel        = "debug"
	DefaultListenAddr      = "/ip4/127.0.0.1/tcp/1337"
	DefaultServiceAddr     = "127.0.0.1:8000"
	DefaultProtocol        = "/valproof/validator-proof/1.0.0"
	DefaultEnableConsensus = true
	DefaultStreamTimeout   = 10 * time.Second
	DefaultChannelCapacity = 32
	DefaultConnLow         = 64
	DefaultConnHigh        = 192
	DefaultConnGrace       = 30 * time.Second
	DefaultStore           = false
)

// Config contains all the configuration properties of a valproof node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// ListenAddrs are the multiaddresses the libp2p host listens on.
	ListenAddrs []string `mapstructure:"listen"`

	// BootstrapAddrs are full multiaddresses, including /p2p/<peer-id>, dialed
	// at startup.
	BootstrapAddrs []string `mapstructure:"bootstrap"`

	// Protocol is the name under which proof streams are negotiated. Changing
	// it makes the node unable to exchange proofs with nodes using another
	// name, without any other error.
	Protocol string `mapstructure:"protocol"`

	// EnableConsensus is true for nodes that take part in consensus. Nodes that
	// only sync neither send nor accept proofs.
	EnableConsensus bool `mapstructure:"enable-consensus"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// StreamTimeout bounds opening, writing, and reading one proof stream.
	StreamTimeout time.Duration `mapstructure:"timeout"`

	// ChannelCapacity is the size of the bounded channels between the node's
	// event loop and the verifier.
	ChannelCapacity int `mapstructure:"channel-capacity"`

	// ConnLow and ConnHigh are the watermarks of the libp2p connection
	// manager. Validators are protected from trimming.
	ConnLow  int `mapstructure:"conn-low"`
	ConnHigh int `mapstructure:"conn-high"`

	// ConnGrace is the time a new connection is safe from trimming.
	ConnGrace time.Duration `mapstructure:"conn-grace"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the validator. Nodes without one never send a
	// proof.
	Key *ecdsa.PrivateKey

	// NodeKey is the network identity of the node. If nil, it is read from, or
	// created in, the data directory.
	NodeKey p2pcrypto.PrivKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        DefaultLogLevel,
		ListenAddrs:     []string{DefaultListenAddr},
		Protocol:        DefaultProtocol,
		EnableConsensus: DefaultEnableConsensus,
		ServiceAddr:     DefaultServiceAddr,
		StreamTimeout:   DefaultStreamTimeout,
		ChannelCapacity: DefaultChannelCapacity,
		ConnLow:         DefaultConnLow,
		ConnHigh:        DefaultConnHigh,
		ConnGrace:       DefaultConnGrace,
		Store:           DefaultStore,
		DatabaseDir:     DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the validator key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// NodeKeyfile returns the full path of the file containing the node key.
func (c *Config) NodeKeyfile() string {
	return filepath.Join(c.DataDir, DefaultNodeKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "valproof". When
// LogFile is set, entries are also written there through an lfshook.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "valproof")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level valproof
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Valproof")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Valproof")
		} else {
			return filepath.Join(home, ".valproof")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
