package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the PTO Hub admin CLI. Subcommands
// (auth, bootstrap, org) are attached here.
var rootCmd = &cobra.Command{
	Use:           "ptohub",
	Short:         "PTO Hub admin CLI",
	Long:          "Administrative utilities for PTO Hub (dev tokens, schema bootstrap, organization management).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
