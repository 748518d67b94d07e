package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/voiceloop"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of voiceloop",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voiceloop version %s\n", strings.TrimSpace(voiceloop.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
