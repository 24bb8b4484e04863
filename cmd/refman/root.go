package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/refman"
	"github.com/aretw0/refman/pkg/core"
)

var (
	verbose    bool
	rootDir    string
	configFile string
	readOnly   bool
	reason     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "refman",
	Short: "An event-sourced reference manager backed by a JSON-lines log",
	Long: `refman records every change to your bibliography as an immutable event in refs.jsonl.
The current state of a reference is rebuilt by replaying its history.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "C", "", "Library root (default: nearest parent holding refs.jsonl, else the working directory)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Settings file (default: <root>/refman.yaml)")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "Refuse every write")
	rootCmd.PersistentFlags().StringVarP(&reason, "message", "m", "", "Commit message used when versioning is enabled")
}

// resolveRoot returns --root, or the nearest library above the working directory,
// or the working directory itself.
func resolveRoot() string {
	if rootDir != "" {
		return rootDir
	}
	wd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get working directory", err)
	}
	if found, err := refman.FindRoot(wd); err == nil {
		return found
	}
	return wd
}

func platformOptions() []refman.Option {
	opts := []refman.Option{refman.WithLogger(slog.Default())}
	if configFile != "" {
		opts = append(opts, refman.WithConfigFile(configFile))
	}
	if readOnly {
		opts = append(opts, refman.WithReadOnly(true))
	}
	return opts
}

// openService wires the service for the resolved root.
func openService() (*core.Service, string) {
	root := resolveRoot()
	svc, err := refman.New(root, platformOptions()...)
	if err != nil {
		fatal("Failed to open library", err)
	}
	return svc, root
}

// openReader wires the service for commands that only read: nothing is created on disk.
func openReader() (*core.Service, string) {
	root := resolveRoot()
	svc, err := refman.New(root, append(platformOptions(), refman.WithCreate(false))...)
	if err != nil {
		fatal("Failed to open library", err)
	}
	return svc, root
}

// openStore gives read commands direct access to the log without creating it.
func openStore() *refman.Store {
	store, err := refman.Open(resolveRoot(), platformOptions()...)
	if err != nil {
		fatal("Failed to open library", err)
	}
	return store
}

// commandContext carries the --message flag down to versioned stores.
func commandContext() context.Context {
	ctx := context.Background()
	if reason != "" {
		ctx = context.WithValue(ctx, core.ChangeReasonKey, reason)
	}
	return ctx
}
