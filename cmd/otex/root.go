package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kzs0/otex"
	"github.com/kzs0/otex/config"
)

type rootFlags struct {
	envFiles   []string
	configFile string
	local      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "otex",
		Short:         "Trace context tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(flags.envFiles...)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files to load; the environment wins")
	pf.StringVar(&flags.configFile, "config", "", "YAML file of OTEX_* settings")
	pf.BoolVar(&flags.local, "local", false, "write telemetry to stdout instead of exporting")

	cmd.AddCommand(
		newTraceparentCmd(),
		newServeCmd(flags),
		newCallCmd(flags),
		newDemoCmd(flags),
	)
	return cmd
}

// initOtex loads configuration and installs the pipelines.
func initOtex(ctx context.Context, flags *rootFlags, service string) (*otex.Otex, error) {
	cfg, err := otex.FromFile(flags.configFile)
	if err != nil {
		return nil, err
	}
	if cfg.Service == otex.DefaultConfig().Service {
		cfg.Service = service
	}
	if flags.local {
		cfg.Export = false
	}
	return otex.Init(ctx, cfg)
}
