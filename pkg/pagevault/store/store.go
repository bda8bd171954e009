// Package store implements the snapshot manifest: a file-backed index of
// snapshot metadata with an in-memory id lookup, debounced persistence for
// high-frequency updates, and immediate persistence for entry creation and
// removal. A single JSON file holds all entries; snapshot HTML payloads
// live in separate files referenced by each entry's filePath.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/jamesainslie/pagevault/pkg/pagevault/config"
	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

// ErrNotFound indicates the requested entry does not exist in the manifest.
var ErrNotFound = errors.New("entry not found")

// manifestFile is the on-disk shape of the manifest.
type manifestFile struct {
	Pages []*types.SnapshotEntry `json:"pages"`
}

// Store manages the snapshot manifest and its payload files.
type Store struct {
	path     string
	debounce time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	loaded  bool
	entries []*types.SnapshotEntry
	index   map[string]*types.SnapshotEntry
	timer   *time.Timer
	dirty   bool

	loadGroup singleflight.Group
}

// Options configure a Store.
type Options struct {
	// DebounceInterval is the quiet period before coalesced writes hit
	// disk. Zero uses the configured default.
	DebounceInterval time.Duration
}

// New creates a Store backed by the manifest file at path. The file is not
// read until the first operation that needs it.
func New(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("manifest path cannot be empty")
	}
	debounce := opts.DebounceInterval
	if debounce <= 0 {
		debounce = config.DefaultDebounceInterval
	}
	return &Store{
		path:     path,
		debounce: debounce,
		logger:   logging.Get("store"),
		index:    make(map[string]*types.SnapshotEntry),
	}, nil
}

// ensureLoaded reads the manifest on first use. Concurrent first reads
// share a single disk read.
func (s *Store) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	_, err, _ := s.loadGroup.Do("load", func() (any, error) {
		return nil, s.load()
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

// load reads and decodes the manifest file. A missing or unparseable
// file is an empty manifest. Entries without an id or url are dropped;
// everything else is tolerated and defaulted.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var file manifestFile
	if err := json.Unmarshal(data, &file); err != nil {
		// A corrupt manifest degrades to an empty one. Move the bad
		// file aside so the next persist does not overwrite whatever
		// the user might still recover by hand.
		s.logger.Warn("manifest unreadable, starting empty", "path", s.path, "error", err)
		if renameErr := os.Rename(s.path, s.path+".corrupt"); renameErr != nil {
			s.logger.Warn("failed to set corrupt manifest aside", "error", renameErr)
		}
		s.loaded = true
		return nil
	}

	dropped := 0
	for _, e := range file.Pages {
		if e == nil || e.ID == "" || e.URL == "" {
			dropped++
			continue
		}
		if e.Mode != types.ModeOffline && e.Mode != types.ModeOnline {
			if e.FilePath != nil {
				e.Mode = types.ModeOffline
			} else {
				e.Mode = types.ModeOnline
			}
		}
		if e.Mode == types.ModeOnline {
			e.FilePath = nil
		}
		s.entries = append(s.entries, e)
		s.index[e.ID] = e
	}
	if dropped > 0 {
		s.logger.Warn("dropped malformed manifest entries", "count", dropped)
	}
	s.loaded = true
	return nil
}

// persistLocked writes the manifest atomically. Callers hold s.mu.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(manifestFile{Pages: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp manifest: %w", err)
	}
	s.dirty = false
	return nil
}

// scheduleWriteLocked arms (or re-arms) the coalescing timer. A burst of
// updates within the debounce window results in one disk write carrying
// the final state. Callers hold s.mu.
func (s *Store) scheduleWriteLocked() {
	s.dirty = true
	if s.timer != nil {
		s.timer.Reset(s.debounce)
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.timer = nil
		if !s.dirty {
			return
		}
		if err := s.persistLocked(); err != nil {
			// Best-effort: scroll and open tracking lose little on failure.
			s.logger.Warn("debounced manifest write failed", "error", err)
		}
	})
}

// List returns all entries sorted by savedAt descending.
func (s *Store) List(ctx context.Context) ([]types.SnapshotEntry, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.SnapshotEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SavedAt > out[j].SavedAt
	})
	return out, nil
}

// RecentlyOpened returns opened entries ranked by lastOpenedAt descending,
// up to limit. A non-positive limit returns all opened entries.
func (s *Store) RecentlyOpened(ctx context.Context, limit int) ([]types.SnapshotEntry, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.SnapshotEntry
	for _, e := range s.entries {
		if e.Opened() {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].LastOpenedAt > *out[j].LastOpenedAt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (*types.SnapshotEntry, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *e
	return &copied, nil
}

// Create adds a new entry. For offline entries the payload is written to
// the entry's filePath before the manifest is touched, so a manifest entry
// never references content that was not durably stored. Creation persists
// the manifest immediately; failure here is a hard error.
func (s *Store) Create(ctx context.Context, entry *types.SnapshotEntry, payload []byte) error {
	if entry == nil || entry.ID == "" || entry.URL == "" {
		return errors.New("entry requires an id and a url")
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	if entry.Mode == types.ModeOffline {
		if entry.FilePath == nil || *entry.FilePath == "" {
			return errors.New("offline entry requires a file path")
		}
		if err := writePayload(*entry.FilePath, payload); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[entry.ID]; exists {
		return fmt.Errorf("entry %s already exists", entry.ID)
	}
	copied := *entry
	s.entries = append(s.entries, &copied)
	s.index[copied.ID] = &copied

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("failed to persist manifest after create: %w", err)
	}
	s.logger.Info("created entry", "id", copied.ID, "mode", copied.Mode)
	return nil
}

// UpdateScrollPosition records a new scroll offset for the entry and
// schedules a debounced write. Unknown ids are ignored: scroll reports can
// trail an entry's removal.
func (s *Store) UpdateScrollPosition(ctx context.Context, id string, y float64) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return nil
	}
	e.ScrollY = y
	s.scheduleWriteLocked()
	return nil
}

// MarkOpened stamps the entry's lastOpenedAt with the current time and
// schedules a debounced write.
func (s *Store) MarkOpened(ctx context.Context, id string) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.LastOpenedAt = types.Int64Ptr(types.NowMillis())
	s.scheduleWriteLocked()
	return nil
}

// ClearAllOpenedMarks resets lastOpenedAt on every entry and schedules a
// debounced write.
func (s *Store) ClearAllOpenedMarks(ctx context.Context) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.LastOpenedAt = nil
	}
	s.scheduleWriteLocked()
	return nil
}

// Remove deletes the entry and its payload file. Payload deletion is
// best-effort; the manifest update persists immediately.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.FilePath != nil && *e.FilePath != "" {
		if err := os.Remove(*e.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to delete payload file", "id", id, "path", *e.FilePath, "error", err)
		}
	}

	delete(s.index, id)
	for i, cur := range s.entries {
		if cur.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("failed to persist manifest after remove: %w", err)
	}
	s.logger.Info("removed entry", "id", id)
	return nil
}

// Flush forces any pending debounced write to disk now.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		return nil
	}
	return s.persistLocked()
}

// Close flushes pending writes.
func (s *Store) Close() error {
	return s.Flush()
}

// Watch reports external modifications to the manifest file, reloading the
// in-memory state when another process rewrites it. The returned channel
// receives one value per detected change and closes when ctx ends.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch manifest directory: %w", err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != s.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				s.mu.Lock()
				s.loaded = false
				s.entries = nil
				s.index = make(map[string]*types.SnapshotEntry)
				s.mu.Unlock()
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("manifest watcher error", "error", err)
			}
		}
	}()
	return changes, nil
}

// writePayload writes snapshot HTML atomically.
func writePayload(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshots directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename payload: %w", err)
	}
	return nil
}
