package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qcctl",
		Short:         "Offline checks for incoming quality control",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newEvaluateCommand())
	rootCmd.AddCommand(newCalibrationCommand())
	rootCmd.AddCommand(newTiersCommand())

	return rootCmd
}
