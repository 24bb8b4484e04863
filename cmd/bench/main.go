package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/refman"
	"github.com/aretw0/refman/pkg/core"
)

func main() {
	count := flag.Int("count", 1000, "Number of references to generate")
	tagsPer := flag.Int("tags", 3, "TagAdd events per reference")
	keep := flag.Bool("keep", false, "Keep the benchmark library after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "refman_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Appends go straight to the store: the service would replay each reference before tagging it.
	store, err := refman.Init(benchDir, refman.WithLogger(logger))
	if err != nil {
		panic(err)
	}

	total := *count * (1 + *tagsPer)
	fmt.Printf("Generating %d references (%d events) in %s...\n", *count, total, benchDir)
	startGen := time.Now()
	for i := 0; i < *count; i++ {
		ref, ev := core.CreateReference(core.CreateParams{
			Title: fmt.Sprintf("Reference %d", i),
			Type:  core.TypePaper,
		})
		if err := store.Append(ctx, ev); err != nil {
			panic(err)
		}
		for j := 0; j < *tagsPer; j++ {
			if err := store.Append(ctx, core.TagAdd(ref.ID, fmt.Sprintf("topic/%d", j))); err != nil {
				panic(err)
			}
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	// Run 1: cold, builds .refman/index.json.
	cold := timeIDs(ctx, benchDir, logger)
	// Run 2: a fresh instance, as a new CLI invocation would be.
	warm := timeIDs(ctx, benchDir, logger)

	svc, err := refman.New(benchDir, refman.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	startReplay := time.Now()
	refs, err := svc.List(ctx, "topic/**")
	if err != nil {
		panic(err)
	}
	replay := time.Since(startReplay)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d references, %d events):\n", *count, total)
	fmt.Printf("  IDs cold:    %v\n", cold)
	fmt.Printf("  IDs warm:    %v\n", warm)
	fmt.Printf("  Full replay: %v (Items: %d)\n", replay, len(refs))
	fmt.Printf("--------------------------------------------------\n")
}

func timeIDs(ctx context.Context, dir string, logger *slog.Logger) time.Duration {
	svc, err := refman.New(dir, refman.WithLogger(logger), refman.WithIndexCache(true))
	if err != nil {
		panic(err)
	}
	start := time.Now()
	ids, err := svc.ListIDs(ctx)
	if err != nil {
		panic(err)
	}
	d := time.Since(start)
	fmt.Printf("ListIDs: %v (Items: %d)\n", d, len(ids))
	return d
}
