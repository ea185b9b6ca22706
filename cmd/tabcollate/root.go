// Package main provides the entry point for the tabcollate CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tabcollate.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tabcollate",
		Short: "Collate cross-tabulations from cascading dropdown pages",
		Long: `tabcollate collects the figures a statistics page shows for every
combination of its dropdown controls and assembles them into one table.

Each page is described in a .tabcollate configuration file: which <select>
drives which axis, where the result table is, and how the page signals
that it is still loading. Use 'tabcollate init' to create one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCollateCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
