// Package config defines the configuration for a spantree process.
//
// Regardless of how a process is started, directly from Go code or from the
// command line, it uses the Config object defined in this package. On top of
// these options, it relies on a data directory, defined by Config.DataDir,
// where it expects to find:
//
//  peers.json // the processes, their addresses and their neighbours.
//  spantree.toml // (optional) the same options as the command line flags.
package config
