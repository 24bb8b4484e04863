package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/refman/pkg/core"
	"github.com/aretw0/refman/pkg/git"
)

const (
	// LogFileName is the fixed name of the event log under the root directory.
	LogFileName = "refs.jsonl"

	// DefaultSystemDir holds derived, disposable state such as the reference index.
	DefaultSystemDir = ".refman"
)

// Store implements core.EventStore as a newline-delimited JSON file.
//
// Every append opens the log with O_APPEND and writes a single line. Appends from
// several processes are not coordinated: concurrent multi-writer use is not supported.
type Store struct {
	Path   string
	git    *git.Client
	cache  *cache
	config Config
	logger *slog.Logger

	cacheOnce     sync.Once
	mu            sync.RWMutex
	watcherActive bool
	lastAppend    *time.Time
}

// Config holds the configuration for the filesystem store.
type Config struct {
	Path       string
	SystemDir  string // e.g. ".refman"
	MustExist  bool   // Fail instead of creating a missing root directory.
	ReadOnly   bool   // Refuse appends and never create files.
	IndexCache bool   // Persist the reference index under SystemDir.
	Versioning bool   // Commit the log to git after every append.
	Logger     *slog.Logger
	// ErrorHandler receives errors raised inside the watch loop.
	ErrorHandler func(error)
}

// NewStore creates a new filesystem-backed event store.
// It performs no I/O until a method is called.
func NewStore(config Config) *Store {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		Path:   config.Path,
		git:    git.NewClient(config.Path, config.SystemDir+".lock", config.Logger),
		cache:  newCache(config.Path, config.SystemDir),
		config: config,
		logger: logger,
	}
}

// LogPath returns the location of the event log.
func (s *Store) LogPath() string {
	return filepath.Join(s.Path, LogFileName)
}

// EnsureInit guarantees the log file exists and returns its path.
// An existing log is never truncated. In read-only mode nothing is created.
func (s *Store) EnsureInit(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := s.LogPath()
	if s.config.ReadOnly {
		return p, nil
	}

	if s.config.MustExist {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return "", fmt.Errorf("root path does not exist: %s", s.Path)
		}
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return "", fmt.Errorf("root path is not a directory: %s", s.Path)
		}
	} else if err := os.MkdirAll(s.Path, 0755); err != nil {
		return "", fmt.Errorf("failed to create root directory: %w", err)
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create event log: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return p, nil
}

// Initialize performs the setup for the store (log file, git repository when versioning).
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.EnsureInit(ctx); err != nil {
		return err
	}
	if s.config.ReadOnly || !s.config.Versioning {
		return nil
	}

	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !s.git.IsRepo() {
		if err := s.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := s.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	if mod && wasNewRepo {
		if err := s.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := s.git.Commit(fmt.Sprintf("chore: configure %s ignore", s.config.SystemDir)); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

// ensureIgnore keeps the system directory and the lock file out of version control.
func (s *Store) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(s.Path, ".gitignore")
	entries := []string{s.config.SystemDir + "/", s.config.SystemDir + ".lock"}

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, e := range entries {
		if !present[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(strings.Join(missing, "\n") + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// Append serializes ev as one JSON line at the end of the log.
//
// Workflow:
//  1. Reject writes in read-only mode and events missing common fields.
//  2. Ensure the log exists.
//  3. Write the line with a single O_APPEND write.
//  4. (If versioning) 'git add' and 'git commit' the log.
func (s *Store) Append(ctx context.Context, ev core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	p, err := s.EnsureInit(ctx)
	if err != nil {
		return err
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event %s: %w", ev.EventID, err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append event %s: %w", ev.EventID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}

	s.recordAppend()
	s.logger.Debug("event appended", "event", ev.EventID, "ref", ev.RefID, "type", ev.Type)

	if s.config.Versioning {
		if err := s.commit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) commit(ctx context.Context, ev core.Event) error {
	unlock, err := s.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := s.git.Add(LogFileName); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}

	msg := fmt.Sprintf("%s %s", ev.Type, ev.RefID)
	if val, ok := ctx.Value(core.ChangeReasonKey).(string); ok && val != "" {
		msg = val
	}
	if err := s.git.Commit(msg); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}
	return nil
}

// ListEvents reads the whole log. A non-empty refID keeps only exact matches.
// A missing log yields no events; a malformed line fails the whole read with *core.ParseError.
func (s *Store) ListEvents(ctx context.Context, refID string) ([]core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.LogPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []core.Event{}, nil
		}
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	events := []core.Event{}
	_, err = parseLines(data, 1, func(ev core.Event) {
		if refID == "" || ev.RefID == refID {
			events = append(events, ev)
		}
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ProjectReference replays the history of refID.
func (s *Store) ProjectReference(ctx context.Context, refID string) (core.ProjectionState, error) {
	events, err := s.ListEvents(ctx, refID)
	if err != nil {
		return core.ProjectionState{}, err
	}
	return core.Project(events), nil
}

// ListReferences returns the distinct reference ids of the log in first-seen order.
func (s *Store) ListReferences(ctx context.Context) ([]string, error) {
	if s.config.IndexCache {
		return s.indexedReferences(ctx)
	}

	events, err := s.ListEvents(ctx, "")
	if err != nil {
		return nil, err
	}
	ids := []string{}
	seen := make(map[string]bool)
	for _, ev := range events {
		if !seen[ev.RefID] {
			seen[ev.RefID] = true
			ids = append(ids, ev.RefID)
		}
	}
	return ids, nil
}

// indexedReferences serves ListReferences from the persistent index, reading only
// the part of the log appended since the index was last written.
func (s *Store) indexedReferences(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.LogPath())
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat event log: %w", err)
	}

	s.cacheOnce.Do(func() {
		if err := s.cache.Load(); err != nil {
			s.logger.Warn("failed to load reference index, rebuilding", "error", err)
		}
	})

	if s.cache.Fresh(info.Size(), info.ModTime()) {
		s.logger.Debug("reference index hit", "refs", s.cache.Len())
		return s.cache.RefIDs(), nil
	}

	offset, lines := s.cache.Resume(info.Size())
	data, err := readFrom(s.LogPath(), offset)
	if err != nil {
		return nil, err
	}

	var ids []string
	consumed, err := parseLines(data, lines+1, func(ev core.Event) {
		ids = append(ids, ev.RefID)
	})
	if err != nil {
		return nil, err
	}

	newLines := bytes.Count(data[:consumed], []byte("\n"))
	s.cache.Extend(ids, offset+int64(consumed), info.ModTime(), lines+newLines)
	s.logger.Debug("reference index updated", "offset", offset, "read", len(data), "refs", s.cache.Len())

	if !s.config.ReadOnly {
		if err := s.cache.Save(); err != nil {
			s.logger.Warn("failed to persist reference index", "path", s.cache.Path, "error", err)
		}
	}
	return s.cache.RefIDs(), nil
}

// readFrom returns the content of path starting at offset.
func readFrom(path string, offset int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek event log: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return data, nil
}

// parseLines decodes one event per non-empty line. firstLine is the line number of data[0].
// It returns the number of bytes covered by newline-terminated lines.
func parseLines(data []byte, firstLine int, fn func(core.Event)) (int, error) {
	consumed := 0
	line := firstLine
	for len(data) > 0 {
		raw := data
		next := len(data)
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			raw = data[:i]
			next = i + 1
			consumed += next
		}
		data = data[next:]

		if len(raw) > 0 {
			var ev core.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				return consumed, &core.ParseError{Line: line, Err: err}
			}
			fn(ev)
		}
		line++
	}
	return consumed, nil
}

// Package-level helpers for callers that only know the root directory.

// EnsureInit creates <root>/refs.jsonl if needed and returns its path.
func EnsureInit(ctx context.Context, root string) (string, error) {
	return NewStore(Config{Path: root}).EnsureInit(ctx)
}

// AppendEvent appends ev to the log under root.
func AppendEvent(ctx context.Context, root string, ev core.Event) error {
	return NewStore(Config{Path: root}).Append(ctx, ev)
}

// ListEvents reads the log under root, optionally filtered by refID.
func ListEvents(ctx context.Context, root, refID string) ([]core.Event, error) {
	return NewStore(Config{Path: root}).ListEvents(ctx, refID)
}

// ProjectReference replays refID from the log under root.
func ProjectReference(ctx context.Context, root, refID string) (core.ProjectionState, error) {
	return NewStore(Config{Path: root}).ProjectReference(ctx, refID)
}

// ListReferences returns the distinct reference ids of the log under root.
func ListReferences(ctx context.Context, root string) ([]string, error) {
	return NewStore(Config{Path: root}).ListReferences(ctx)
}

var _ core.EventStore = (*Store)(nil)
var _ core.Watchable = (*Store)(nil)
