package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/refman"
)

var initVersioning bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a library",
	Long:  `Create refs.jsonl in the library root. With --git the root also becomes a git repository and every append is committed.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		root := rootDir
		if root == "" {
			root = "."
		}

		opts := platformOptions()
		if initVersioning {
			opts = append(opts, refman.WithVersioning(true))
		}
		store, err := refman.Init(root, opts...)
		if err != nil {
			fatal("Failed to initialize library", err)
		}

		// Later commands read versioning from the settings file.
		if initVersioning {
			cfgPath := refman.ConfigPath(store.Path, opts...)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				enabled := true
				if err := refman.SaveConfig(cfgPath, refman.FileConfig{Versioning: &enabled}); err != nil {
					fatal("Failed to write settings", err)
				}
			}
		}

		fmt.Println("Initialized refman library in", store.Path)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initVersioning, "git", false, "Version the log with git")
}
