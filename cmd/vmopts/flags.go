package main

import (
	"fmt"

	"github.com/Azhovan/vmopts"
	"github.com/spf13/cobra"
)

func newFlagsCommand() *cobra.Command {
	var comments bool
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Print the declared product flags and their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return vmopts.PrintFlags(cmd.OutOrStdout(), vmopts.DefaultRegistry(), comments)
		},
	}
	cmd.Flags().BoolVar(&comments, "comments", false, "Append each flag's description")
	return cmd
}

func newVerifyCommand(g *globalOptions) *cobra.Command {
	var release int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the lifecycle table for inconsistent version markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := g.newLogger()
			if err != nil {
				return err
			}
			reg := vmopts.DefaultRegistry()
			problems := reg.Lifecycle().Verify(vmopts.V(release), reg.Declared)

			failed := 0
			for _, p := range problems {
				if p.Warning {
					logger.Warn(p.Message)
					continue
				}
				failed++
				fmt.Fprintln(cmd.ErrOrStderr(), p.Message)
			}
			if failed > 0 {
				return fmt.Errorf("%d lifecycle table problem(s)", failed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "lifecycle table OK")
			return nil
		},
	}
	cmd.Flags().IntVar(&release, "release", vmopts.DefaultVersion().Major, "Feature release to verify against")
	return cmd
}
