package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	searchJSON bool
	searchYAML bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find references by keyword",
	Long:  `Print references whose title, authors or source contain the query, ignoring case.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openReader()
		refs, err := svc.Search(commandContext(), args[0])
		if err != nil {
			fatal("Failed to search", err)
		}
		if searchJSON || searchYAML {
			emit(refs, searchYAML)
			return
		}
		if len(refs) == 0 {
			fmt.Fprintf(os.Stderr, "No matches for %q\n", args[0])
			return
		}
		for _, ref := range refs {
			printReference(ref)
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
	searchCmd.Flags().BoolVar(&searchYAML, "yaml", false, "Output in YAML format")
	searchCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}
