package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/spantree/src/common"
	"github.com/mosaicnetworks/spantree/src/node"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigName is the name of the optional config file in the
	// datadir, without extension.
	DefaultConfigName = "spantree"
)

// Default configuration values.
const (
	DefaultLogLevel      = "debug"
	DefaultBindAddr      = "127.0.0.1:1337"
	DefaultServiceAddr   = "127.0.0.1:8000"
	DefaultRoundInterval = 100 * time.Millisecond
	DefaultMaxRounds     = 0
	DefaultRootID        = 0
	DefaultInboxSize     = 64
	DefaultTCPTimeout    = 1000 * time.Millisecond
	DefaultCacheSize     = 10000
	DefaultMaxPool       = 2
	DefaultStore         = false
	DefaultPredicateSkip = -1
	DefaultActiveFor     = 0 * time.Second
)

// Config contains all the configuration properties of a spantree process.
type Config struct {
	// DataDir is the top-level directory containing the configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, also writes every log entry to this file.
	LogFile string `mapstructure:"log-file"`

	// ID is the identifier of this process in peers.json.
	ID int `mapstructure:"id"`

	// BindAddr is the local address:port where this process talks to its
	// neighbours.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// processes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxPool controls how many connections are pooled per neighbour.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of message delivery.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// RoundInterval is the pause the root takes between two rounds.
	RoundInterval time.Duration `mapstructure:"round-interval"`

	// MaxRounds bounds the number of rounds started by the root. 0 means
	// unbounded.
	MaxRounds int `mapstructure:"max-rounds"`

	// RootID is the process that builds the tree and evaluates the rounds.
	RootID int `mapstructure:"root"`

	// InboxSize is the capacity of each per-neighbour inbox.
	InboxSize int `mapstructure:"inbox-size"`

	// Store activates persistant storage of the round history.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of rounds kept in memory.
	CacheSize int `mapstructure:"cache-size"`

	// PredicateSkip is the vector slot ignored by the termination predicate.
	// -1 means every slot is checked.
	PredicateSkip int `mapstructure:"predicate-skip"`

	// ActiveFor keeps the local workload active for this long after startup.
	ActiveFor time.Duration `mapstructure:"active-for"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:       DefaultDataDir(),
		LogLevel:      DefaultLogLevel,
		BindAddr:      DefaultBindAddr,
		ServiceAddr:   DefaultServiceAddr,
		MaxPool:       DefaultMaxPool,
		TCPTimeout:    DefaultTCPTimeout,
		RoundInterval: DefaultRoundInterval,
		MaxRounds:     DefaultMaxRounds,
		RootID:        DefaultRootID,
		InboxSize:     DefaultInboxSize,
		Store:         DefaultStore,
		DatabaseDir:   DefaultDatabaseDir(),
		CacheSize:     DefaultCacheSize,
		PredicateSkip: DefaultPredicateSkip,
		ActiveFor:     DefaultActiveFor,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.RoundInterval = 5 * time.Millisecond
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

// NodeConfig extracts the node settings.
func (c *Config) NodeConfig() *node.Config {
	return node.NewConfig(
		c.RoundInterval,
		c.MaxRounds,
		c.RootID,
		c.InboxSize,
		c.TCPTimeout,
		c.Logger().Logger,
	)
}

// Logger returns a formatted logrus Entry, with prefix set to "spantree".
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
	return c.logger.WithField("prefix", "spantree")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Spantree")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Spantree")
		} else {
			return filepath.Join(home, ".spantree")
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
