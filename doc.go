// Package refman is the composition root of an event-sourced reference manager.
//
// Every change to a bibliographic reference (creation, tags, metadata patches,
// relations, snapshots) is an immutable event appended as one JSON line to
// <root>/refs.jsonl. The current state of a reference is never stored: it is
// recomputed by replaying its events in timestamp order.
//
// Layers:
//
//   - pkg/core: the event model, the projector and the Service.
//   - pkg/adapters/fs: the JSON-lines store, its reference index, export, import and watch.
//   - internal/platform: options, refman.yaml and wiring.
//
// Usage:
//
//	svc, err := refman.New("./library",
//		refman.WithIndexCache(true),
//		refman.WithLogger(logger),
//	)
//
//	ref, err := svc.Add(ctx, core.CreateParams{Title: "SICP", Type: core.TypeBook})
//	err = svc.AddTag(ctx, ref.ID, "lisp")
//	state, err := svc.Get(ctx, ref.ID)
package refman
