package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/spantree/src/config"
	"github.com/mosaicnetworks/spantree/src/spantree"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a spantree process
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run process",
		PreRunE: loadConfig,
		RunE:    runSpantree,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runSpantree(cmd *cobra.Command, args []string) error {
	engine := spantree.NewSpantree(&_config.Spantree)

	if err := engine.Init(); err != nil {
		_config.Spantree.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigintCh
		_config.Spantree.Logger().Debug("Reacting to SIGINT - SHUTDOWN")
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Spantree.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Spantree.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Spantree.LogFile, "Also write logs to this file")
	cmd.Flags().Int("id", _config.Spantree.ID, "Id of this process in peers.json")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Spantree.BindAddr, "Listen IP:Port for spantree process")
	cmd.Flags().StringP("advertise", "a", _config.Spantree.AdvertiseAddr, "Advertise IP:Port for spantree process")
	cmd.Flags().DurationP("timeout", "t", _config.Spantree.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.Spantree.MaxPool, "Connection pool size max")
	cmd.Flags().Int("inbox-size", _config.Spantree.InboxSize, "Capacity of each per-neighbour inbox")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Spantree.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Spantree.NoService, "Disable HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Spantree.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Spantree.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Int("cache-size", _config.Spantree.CacheSize, "Number of rounds in the in-memory cache")

	// Rounds
	cmd.Flags().Int("root", _config.Spantree.RootID, "Id of the root process")
	cmd.Flags().Duration("round-interval", _config.Spantree.RoundInterval, "Time between snapshot rounds")
	cmd.Flags().Int("max-rounds", _config.Spantree.MaxRounds, "Max number of rounds (0 = unbounded)")
	cmd.Flags().Int("predicate-skip", _config.Spantree.PredicateSkip, "Vector slot ignored by the predicate (-1 = none)")
	cmd.Flags().Duration("active-for", _config.Spantree.ActiveFor, "Keep the local workload active for this long")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Spantree.SetDataDir(_config.Spantree.DataDir)

	logFields := logrus.Fields{
		"spantree.DataDir":       _config.Spantree.DataDir,
		"spantree.ID":            _config.Spantree.ID,
		"spantree.BindAddr":      _config.Spantree.BindAddr,
		"spantree.AdvertiseAddr": _config.Spantree.AdvertiseAddr,
		"spantree.ServiceAddr":   _config.Spantree.ServiceAddr,
		"spantree.MaxPool":       _config.Spantree.MaxPool,
		"spantree.Store":         _config.Spantree.Store,
		"spantree.LogLevel":      _config.Spantree.LogLevel,
		"spantree.TCPTimeout":    _config.Spantree.TCPTimeout,
		"spantree.RootID":        _config.Spantree.RootID,
		"spantree.RoundInterval": _config.Spantree.RoundInterval,
		"spantree.MaxRounds":     _config.Spantree.MaxRounds,
	}

	if _config.Spantree.Store {
		logFields["spantree.DatabaseDir"] = _config.Spantree.DatabaseDir
		logFields["spantree.CacheSize"] = _config.Spantree.CacheSize
	}

	_config.Spantree.Logger().WithFields(logFields).Debug("RUN")

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

	// look for config file in [datadir]/spantree.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName) // name of config file (without extension)
	viper.AddConfigPath(_config.Spantree.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Spantree.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Spantree.Logger().Debugf("No config file found in: %s", _config.Spantree.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
