package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/refman/pkg/core"
)

var (
	listRef  string
	listTag  string
	listJSON bool
	listYAML bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List references",
	Long: `Replay the log and print the current state of every reference.
--ref shows a single reference with its relations; --tag keeps references with a tag matching the glob (e.g. 'ml/**').`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := openReader()
		ctx := commandContext()

		if listRef != "" {
			state, err := svc.Get(ctx, listRef)
			if err != nil {
				fatal("Failed to read reference", err)
			}
			if !state.Found() {
				fatal("Failed to read reference", fmt.Errorf("%w: %s", core.ErrNotFound, listRef))
			}
			if listJSON || listYAML {
				emit(state, listYAML)
				return
			}
			printReference(*state.Ref)
			for _, rel := range state.Relations {
				fmt.Printf("  %s -> %s\n", rel.Relation, rel.TargetID)
			}
			return
		}

		refs, err := svc.List(ctx, listTag)
		if err != nil {
			fatal("Failed to list references", err)
		}
		if listJSON || listYAML {
			emit(refs, listYAML)
			return
		}
		for _, ref := range refs {
			printReference(ref)
		}
	},
}

func printReference(ref core.Reference) {
	line := fmt.Sprintf("%s  %s", ref.ID, ref.Title)
	if len(ref.Authors) > 0 {
		line += " (" + strings.Join(ref.Authors, ", ") + ")"
	}
	if len(ref.Tags) > 0 {
		line += " [" + strings.Join(ref.Tags, ", ") + "]"
	}
	fmt.Println(line)
}

// emit writes v as YAML when asYAML is set, JSON otherwise.
func emit(v any, asYAML bool) {
	if asYAML {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			fatal("Failed to encode YAML", err)
		}
		_ = enc.Close()
		return
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Failed to encode JSON", err)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listRef, "ref", "", "Show a single reference")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag glob")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVar(&listYAML, "yaml", false, "Output in YAML format")
	listCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}
