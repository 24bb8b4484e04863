package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/refman"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of refman",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("refman version %s\n", strings.TrimSpace(refman.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
