package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <ref>",
	Short: "Record the current state of a reference",
	Long:  `Append a Snapshot event holding the current projection. Replays restart from the latest snapshot.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openService()
		ev, err := svc.Snapshot(commandContext(), args[0])
		if err != nil {
			fatal("Failed to snapshot reference", err)
		}
		fmt.Println(ev.EventID)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
