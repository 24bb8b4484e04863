package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/refman/pkg/core"
)

var (
	updateTitle   string
	updateAuthors []string
	updateType    string
	updateSource  string
)

var updateCmd = &cobra.Command{
	Use:   "update <ref>",
	Short: "Patch the metadata of a reference",
	Long:  `Append an UpdateMeta event carrying only the flags that were given. --authors "" clears the author list.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var patch core.MetaPatch
		flags := cmd.Flags()

		if flags.Changed("title") {
			patch.Title = core.Ptr(updateTitle)
		}
		if flags.Changed("authors") {
			patch.Authors = append([]string{}, updateAuthors...)
		}
		if flags.Changed("type") {
			t, err := core.ParseRefType(updateType)
			if err != nil {
				fatal("Invalid type", err)
			}
			patch.Type = &t
		}
		if flags.Changed("source") {
			patch.Source = core.Ptr(updateSource)
		}

		svc, _ := openService()
		if err := svc.Update(commandContext(), args[0], patch); err != nil {
			fatal("Failed to update reference", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVarP(&updateTitle, "title", "t", "", "New title")
	updateCmd.Flags().StringSliceVarP(&updateAuthors, "authors", "a", nil, "Replacement author list")
	updateCmd.Flags().StringVar(&updateType, "type", "", "New reference type")
	updateCmd.Flags().StringVarP(&updateSource, "source", "s", "", "New source")
}
