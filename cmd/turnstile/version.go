package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/turnstile"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of turnstile",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "turnstile version %s\n", strings.TrimSpace(turnstile.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
