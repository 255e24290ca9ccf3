package main

import (
	"os"

	cmd "github.com/polyferno/polyferno/cmd/polyferno/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewRunCmd(),
		cmd.NewSubmitCmd(),
		cmd.NewTestnetCmd(),
		cmd.VersionCmd)

	// Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
