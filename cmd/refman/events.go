package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	eventsRef  string
	eventsJSON bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the raw event history",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openReader()
		events, err := svc.Events(commandContext(), eventsRef)
		if err != nil {
			fatal("Failed to read events", err)
		}

		if eventsJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, ev := range events {
				if err := enc.Encode(ev); err != nil {
					fatal("Failed to encode event", err)
				}
			}
			return
		}
		for _, ev := range events {
			fmt.Println(ev.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventsRef, "ref", "", "Only events of this reference")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Print events as JSON lines")
}
