package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/refman/pkg/core"
)

var relateAs string

var relateCmd = &cobra.Command{
	Use:   "relate <ref> <target>",
	Short: "Record a relation from one reference to another",
	Long:  `Append a Relate event. The target is not required to exist.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		relation, err := core.ParseRelation(relateAs)
		if err != nil {
			fatal("Invalid relation", err)
		}

		svc, _ := openService()
		if err := svc.Relate(commandContext(), args[0], args[1], relation); err != nil {
			fatal("Failed to relate references", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(relateCmd)
	relateCmd.Flags().StringVar(&relateAs, "as", string(core.RelationRelated), "Relation kind (cites, extends, duplicates, references, related)")
}
