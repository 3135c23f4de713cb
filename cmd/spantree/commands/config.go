package commands

import (
	"github.com/mosaicnetworks/spantree/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Spantree config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Spantree: *config.NewDefaultConfig(),
	}
}
