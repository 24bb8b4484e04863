package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/refman/pkg/adapters/fs"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every projected reference",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		format, err := fs.ParseFormat(exportFormat)
		if err != nil {
			fatal("Invalid format", err)
		}

		store := openStore()
		ctx := commandContext()
		if exportOut == "" {
			if err := store.Export(ctx, os.Stdout, format); err != nil {
				fatal("Failed to export", err)
			}
			return
		}
		if err := store.ExportFile(ctx, exportOut, format); err != nil {
			fatal("Failed to export", err)
		}
		fmt.Fprintln(os.Stderr, "Exported to", exportOut)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format (json or yaml)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to a file instead of stdout")
}
