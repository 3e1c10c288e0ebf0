package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/valproof/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the options of a Node.
type Config struct {
	// EnableConsensus gates the proof protocol. Nodes that only sync never
	// send proofs and refuse inbound proof streams.
	EnableConsensus bool `mapstructure:"enable-consensus"`

	// StreamTimeout bounds the time spent opening, writing, or reading a
	// single proof stream.
	StreamTimeout time.Duration `mapstructure:"timeout"`

	// ChannelCapacity is the size of the channels between the node and the
	// verifier.
	ChannelCapacity int `mapstructure:"channel-capacity"`

	Moniker string `mapstructure:"moniker"`

	Logger *logrus.Entry
}

// NewConfig creates a Config.
func NewConfig(enableConsensus bool,
	streamTimeout time.Duration,
	channelCapacity int,
	moniker string,
	logger *logrus.Entry) *Config {

	return &Config{
		EnableConsensus: enableConsensus,
		StreamTimeout:   streamTimeout,
		ChannelCapacity: channelCapacity,
		Moniker:         moniker,
		Logger:          logger,
	}
}

// DefaultConfig returns a Config with consensus enabled.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		EnableConsensus: true,
		StreamTimeout:   10 * time.Second,
		ChannelCapacity: 32,
		Logger:          logger.WithField("prefix", "node"),
	}
}

// TestConfig returns a DefaultConfig that logs to t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.StreamTimeout = time.Second
	config.Logger = common.NewTestEntry(t, "node")
	return config
}
