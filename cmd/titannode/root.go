package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "titannode",
		Short:         "Run Titan edge node sessions for one or more accounts",
		Long:          "titannode keeps one authenticated node stream open per refresh token, answering liveness checks, reconnecting with backoff and failing over across service clusters.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)

	return rootCmd
}
