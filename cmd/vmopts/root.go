package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalOptions struct {
	verbose bool
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "vmopts",
		Short:         "Resolve VM startup options",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log informational messages")

	root.AddCommand(newResolveCommand(g))
	root.AddCommand(newFlagsCommand())
	root.AddCommand(newVerifyCommand(g))
	return root
}

// newLogger builds a console logger for VM diagnostics on stderr.
func (g *globalOptions) newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.TimeKey = ""
	if !g.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
