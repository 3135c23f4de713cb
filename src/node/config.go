package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/spantree/src/common"
	"github.com/sirupsen/logrus"
)

// Config ...
type Config struct {
	// RoundInterval is the pause the root takes between two rounds.
	RoundInterval time.Duration `mapstructure:"round-interval"`

	// MaxRounds stops the root from starting new rounds. 0 means unbounded.
	MaxRounds int `mapstructure:"max-rounds"`

	// RootID is the process that starts the tree and the rounds.
	RootID int `mapstructure:"root"`

	// InboxSize is the capacity of each per-neighbour inbox.
	InboxSize int `mapstructure:"inbox-size"`

	TCPTimeout time.Duration `mapstructure:"timeout"`
	Logger     *logrus.Logger
}

// NewConfig ...
func NewConfig(roundInterval time.Duration,
	maxRounds int,
	rootID int,
	inboxSize int,
	timeout time.Duration,
	logger *logrus.Logger) *Config {

	return &Config{
		RoundInterval: roundInterval,
		MaxRounds:     maxRounds,
		RootID:        rootID,
		InboxSize:     inboxSize,
		TCPTimeout:    timeout,
		Logger:        logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		RoundInterval: 100 * time.Millisecond,
		MaxRounds:     0,
		RootID:        0,
		InboxSize:     64,
		TCPTimeout:    1000 * time.Millisecond,
		Logger:        logger,
	}
}

// TestConfig ...
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.RoundInterval = 5 * time.Millisecond
	config.Logger = common.NewTestLogger(t, logrus.InfoLevel)
	return config
}
