package main

import (
	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Add or remove tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <ref> <tag>...",
	Short: "Add tags to a reference",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openService()
		if err := svc.AddTag(commandContext(), args[0], args[1:]...); err != nil {
			fatal("Failed to add tags", err)
		}
	},
}

var tagRmCmd = &cobra.Command{
	Use:     "rm <ref> <tag>...",
	Aliases: []string{"remove"},
	Short:   "Remove tags from a reference",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openService()
		if err := svc.RemoveTag(commandContext(), args[0], args[1:]...); err != nil {
			fatal("Failed to remove tags", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagAddCmd, tagRmCmd)
}
