package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/refman/pkg/core"
)

var errWatchClosed = errors.New("watch closed")

// logTail is the read position of a watch. It survives worker restarts so a
// restarted watcher resumes where the previous one stopped.
type logTail struct {
	mu     sync.Mutex
	offset int64
	line   int // Lines before offset.
}

// watchSink owns the channel of a watch. It is closed only after every worker
// that acquired it has returned.
type watchSink struct {
	events   chan core.Event
	stopping chan struct{}

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

func newWatchSink() *watchSink {
	return &watchSink{
		events:   make(chan core.Event),
		stopping: make(chan struct{}),
	}
}

// acquire registers a running worker. It fails once shutdown has begun.
func (k *watchSink) acquire() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return false
	}
	k.running.Add(1)
	return true
}

func (k *watchSink) release() { k.running.Done() }

// shutdown unblocks pending sends, waits for the workers and closes the channel.
func (k *watchSink) shutdown() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.closed = true
	close(k.stopping)
	k.mu.Unlock()

	k.running.Wait()
	close(k.events)
}

// Watch emits every event appended after the call whose RefID matches pattern
// (doublestar syntax, "" matches all). The channel is closed once ctx is done.
//
// Lines are read only once newline-terminated. Lines that are not JSON are reported to
// Config.ErrorHandler (or logged) and skipped.
func (s *Store) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: bad watch pattern %q", core.ErrInvalidArgument, pattern)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Nothing is created here; the log itself may appear later.
	if info, err := os.Stat(s.Path); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: root directory unavailable", s.Path)
	}

	tail, err := s.currentTail()
	if err != nil {
		return nil, err
	}

	sink := newWatchSink()
	spec := supervisor.Spec{
		Name: "refman-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(s, pattern, tail, sink), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			ResetDuration:   30 * time.Second,
			MaxRestarts:     5,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("refman-watch", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	s.logger.Debug("watch started", "path", s.LogPath(), "pattern", pattern, "offset", tail.offset)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			s.logger.Debug("watcher stop", "error", err)
		}
		sink.shutdown()
		return nil
	})

	return sink.events, nil
}

// currentTail positions a new watch at the current end of the log.
func (s *Store) currentTail() (*logTail, error) {
	data, err := os.ReadFile(s.LogPath())
	if errors.Is(err, os.ErrNotExist) {
		return &logTail{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	end := bytes.LastIndexByte(data, '\n') + 1
	return &logTail{
		offset: int64(end),
		line:   bytes.Count(data[:end], []byte("\n")),
	}, nil
}

type watchWorker struct {
	*worker.BaseWorker
	store   *Store
	pattern string
	tail    *logTail
	sink    *watchSink
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

func newWatchWorker(store *Store, pattern string, tail *logTail, sink *watchSink) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		store:      store,
		pattern:    pattern,
		tail:       tail,
		sink:       sink,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// The directory is watched rather than the file so a recreated log is picked up.
	if err := watcher.Add(w.store.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.store.Path, err)
	}

	if !w.sink.acquire() {
		_ = watcher.Close()
		return errWatchClosed
	}

	w.watcher = watcher
	w.store.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, func(ctx context.Context) error {
		defer w.sink.release()
		return w.run(ctx)
	})
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.store.logger
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			// Stack traces only at debug level.
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.store.setWatcherActive(false)
	defer w.watcher.Close()

	// Catch up on anything appended between Watch and the watcher registration.
	w.drain(ctx)

	logPath := filepath.Clean(w.store.LogPath())
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.sink.stopping:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != logPath {
				continue
			}
			logger.Debug("event log changed", "op", event.Op.String())

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				w.drain(ctx)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.tail.mu.Lock()
				w.tail.offset, w.tail.line = 0, 0
				w.tail.mu.Unlock()
			}

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.report(wErr)
		}
	}
}

// drain emits every complete line appended since the last read.
func (w *watchWorker) drain(ctx context.Context) {
	w.tail.mu.Lock()
	defer w.tail.mu.Unlock()

	info, err := os.Stat(w.store.LogPath())
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		w.report(err)
		return
	}
	if info.Size() < w.tail.offset {
		// Rewritten in place: start over.
		w.tail.offset, w.tail.line = 0, 0
	}
	if info.Size() == w.tail.offset {
		return
	}

	data, err := readFrom(w.store.LogPath(), w.tail.offset)
	if err != nil {
		w.report(err)
		return
	}
	end := bytes.LastIndexByte(data, '\n') + 1
	if end == 0 {
		return
	}

	for _, raw := range bytes.Split(data[:end-1], []byte("\n")) {
		w.tail.line++
		if len(raw) == 0 {
			continue
		}
		var ev core.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			w.report(&core.ParseError{Line: w.tail.line, Err: err})
			continue
		}
		if !w.matches(ev.RefID) {
			continue
		}
		w.send(ctx, ev)
	}
	w.tail.offset += int64(end)
}

func (w *watchWorker) matches(refID string) bool {
	if w.pattern == "" {
		return true
	}
	ok, _ := doublestar.Match(w.pattern, refID)
	return ok
}

// send delivers ev unless the watch is shutting down.
func (w *watchWorker) send(ctx context.Context, ev core.Event) {
	select {
	case w.sink.events <- ev:
	case <-w.sink.stopping:
	case <-ctx.Done():
	}
}

func (w *watchWorker) report(err error) {
	if w.store.config.ErrorHandler != nil {
		w.store.config.ErrorHandler(err)
		return
	}
	w.store.logger.Warn("watch error", "path", w.store.LogPath(), "error", err)
}
