package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:  "version",
	Long: `Print the version number of terminus`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("terminus version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
