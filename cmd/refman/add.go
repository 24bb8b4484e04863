package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/refman"
	"github.com/aretw0/refman/pkg/core"
)

var (
	addTitle   string
	addType    string
	addAuthors []string
	addSource  string
	addTags    []string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a reference",
	Long:  `Append a Create event. The new reference ID is printed on success.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		svc, root := openService()

		typeName := addType
		if typeName == "" {
			cfg, err := refman.LoadConfig(refman.ConfigPath(root, platformOptions()...))
			if err != nil {
				fatal("Failed to read settings", err)
			}
			typeName = cfg.DefaultType
		}

		var refType core.RefType
		if typeName != "" {
			t, err := core.ParseRefType(typeName)
			if err != nil {
				fatal("Invalid type", err)
			}
			refType = t
		}

		ref, err := svc.Add(commandContext(), core.CreateParams{
			Title:       addTitle,
			Authors:     addAuthors,
			Type:        refType,
			Source:      addSource,
			InitialTags: addTags,
		})
		if err != nil {
			fatal("Failed to add reference", err)
		}
		fmt.Println(ref.ID)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "Title (required)")
	addCmd.Flags().StringVar(&addType, "type", "", "Reference type (url, book, article, web, report, paper, dataset, other)")
	addCmd.Flags().StringSliceVarP(&addAuthors, "authors", "a", nil, "Comma-separated authors")
	addCmd.Flags().StringVarP(&addSource, "source", "s", "", "URL, DOI or other locator")
	addCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Comma-separated initial tags")
	_ = addCmd.MarkFlagRequired("title")
}
