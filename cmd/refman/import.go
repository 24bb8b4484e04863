package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/refman/pkg/adapters/fs"
)

var (
	importFormat    string
	importOverwrite bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import references from an export file",
	Long: `Append a Snapshot (and its relations) for every reference of a file written by 'refman export'.
References already in the library are skipped unless --overwrite is given; nothing is ever deleted.
The format follows the file extension unless --format is set.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format := fs.FormatFromPath(args[0])
		if importFormat != "" {
			f, err := fs.ParseFormat(importFormat)
			if err != nil {
				fatal("Invalid format", err)
			}
			format = f
		}

		records, err := fs.ReadRecordsFile(args[0], format)
		if err != nil {
			fatal("Failed to read import file", err)
		}

		svc, _ := openService()
		res, err := svc.Import(commandContext(), records, importOverwrite)
		if err != nil {
			fatal("Failed to import", err)
		}
		fmt.Printf("Imported %d new reference(s) from %s\n", res.Added, args[0])
		if res.Replaced > 0 {
			fmt.Printf("Replaced %d existing reference(s)\n", res.Replaced)
		}
		if res.Skipped > 0 {
			fmt.Printf("Skipped %d reference(s) already in the library\n", res.Skipped)
		}
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Input format (json or yaml)")
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Replace references that already exist")
}
