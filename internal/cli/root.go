// Package cli implements the criteria-demo command line.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lemmego/criteria"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Driver     string
	Engine     string
	Verbose    bool
}

// NewRootCommand creates the root command for the criteria-demo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "criteria-demo",
		Short: "Run criteria against the bundled storage engines",
		Long: `Seeds a small people table into the selected engine and evaluates
composite criteria against it.`,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver, overrides the config file")
	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", EngineBun, "storage engine (bun|gorm|sql|memory|mongo|redis)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log repository operations")

	cmd.AddCommand(NewFindCommand(opts))

	return cmd
}

// load resolves the configuration and logger for a command run.
func (o *RootOptions) load() (criteria.Config, *zap.Logger, error) {
	cfg, err := criteria.LoadConfig(o.ConfigPath)
	if err != nil {
		return cfg, nil, err
	}
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stderr"}
	}

	logger, err := criteria.NewLogger(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}
