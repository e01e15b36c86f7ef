package verbex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jchristn/verbex/internal/store/sqlite"
)

// catalogEntry is one row in the Manager's name -> (configuration, open
// index?) catalog.
type catalogEntry struct {
	cfg  Config
	idx  *Index // nil until first opened
	root string // directory this entry was discovered under, if any
}

// Manager maintains a catalog of named indices and their lifecycle. It is
// safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*catalogEntry
	logger  *slog.Logger
}

// NewManager returns an empty Manager. A nil logger falls back to
// slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{entries: make(map[string]*catalogEntry), logger: logger}
}

// Create registers cfg and opens a new Index for it. Returns ErrDuplicate
// if an index with this name is already catalogued.
func (m *Manager) Create(ctx context.Context, cfg Config) (*Index, error) {
	m.mu.Lock()
	if _, exists := m.entries[cfg.Name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("verbex: manager: create %q: %w", cfg.Name, ErrDuplicate)
	}
	m.mu.Unlock()

	idx, err := NewIndex(cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.Open(ctx); err != nil {
		return nil, err
	}

	if idx.Durable() {
		if err := sqlite.WriteIndexConfig(filepath.Dir(idx.Path()), indexConfigFor(cfg)); err != nil {
			m.logger.Warn("failed writing index-config.json", "name", cfg.Name, "error", err)
		}
	}

	m.mu.Lock()
	m.entries[cfg.Name] = &catalogEntry{cfg: cfg, idx: idx}
	m.mu.Unlock()
	return idx, nil
}

func indexConfigFor(cfg Config) sqlite.IndexConfig {
	now := time.Now().UTC()
	mode := "in_memory"
	if cfg.StorageMode == StorageOnDisk {
		mode = "on_disk"
	}
	return sqlite.IndexConfig{
		StorageMode:        mode,
		MinTokenLength:     cfg.MinTokenLength,
		MaxTokenLength:     cfg.MaxTokenLength,
		HasLemmatizer:      cfg.Lemmatizer != nil,
		HasStopWordRemover: cfg.StopWordRemover != nil,
		CreatedAt:          now,
		LastAccessedAt:     now,
	}
}

// Get returns the named index, opening it first if it was only discovered
// (not yet opened). Returns ErrNotFound if no such name is catalogued.
func (m *Manager) Get(ctx context.Context, name string) (*Index, error) {
	m.mu.Lock()
	entry, ok := m.entries[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("verbex: manager: get %q: %w", name, ErrNotFound)
	}

	if entry.idx != nil {
		return entry.idx, nil
	}

	idx, err := NewIndex(entry.cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.Open(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	entry.idx = idx
	m.mu.Unlock()
	if idx.Durable() {
		_ = sqlite.TouchLastAccessed(filepath.Dir(idx.Path()))
	}
	return idx, nil
}

// Delete disposes and removes name from the catalog. It does not remove
// on-disk files; callers that want that must remove storage_directory
// themselves after Delete returns.
func (m *Manager) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	entry, ok := m.entries[name]
	if ok {
		delete(m.entries, name)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("verbex: manager: delete %q: %w", name, ErrNotFound)
	}
	if entry.idx != nil {
		return entry.idx.Close(ctx)
	}
	return nil
}

// ListConfigurations returns every catalogued configuration, whether or
// not its index has been opened yet.
func (m *Manager) ListConfigurations() []Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Config, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.cfg)
	}
	return out
}

// Reload disposes and reopens the named index, picking up any on-disk
// changes made outside this process.
func (m *Manager) Reload(ctx context.Context, name string) (*Index, error) {
	m.mu.Lock()
	entry, ok := m.entries[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("verbex: manager: reload %q: %w", name, ErrNotFound)
	}

	if entry.idx != nil {
		if err := entry.idx.Close(ctx); err != nil {
			return nil, err
		}
	}

	idx, err := NewIndex(entry.cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.Open(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	entry.idx = idx
	m.mu.Unlock()
	return idx, nil
}

// CloseAll flushes and disposes every open index in the catalog. Errors
// from individual indices are joined; CloseAll still attempts to close
// every entry even if an earlier one fails.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	entries := make([]*catalogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if e.idx == nil {
			continue
		}
		if err := e.idx.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discover scans rootDir's immediate subdirectories for an index-config.json
// sidecar file, registering each recognized index read-only — it is
// catalogued but not opened until Get is first called for it. Subdirectory
// probing runs concurrently, bounded by errgroup.
func (m *Manager) Discover(ctx context.Context, rootDir string) ([]string, error) {
	children, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("verbex: manager: discover %q: %w", rootDir, err)
	}

	type found struct {
		name string
		cfg  Config
		root string
	}

	results := make([]*found, len(children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, child := range children {
		if !child.IsDir() {
			continue
		}
		i, child := i, child
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dir := filepath.Join(rootDir, child.Name())
			ic, err := sqlite.ReadIndexConfig(dir)
			if err != nil {
				if os.IsNotExist(err) {
					return nil // not a recognized index directory
				}
				return err
			}
			cfg := NewConfig(child.Name())
			cfg.StorageDirectory = dir
			cfg.MinTokenLength = ic.MinTokenLength
			cfg.MaxTokenLength = ic.MaxTokenLength
			if ic.StorageMode == "on_disk" {
				cfg.StorageMode = StorageOnDisk
			}
			// The sidecar only records that hooks were configured, not which;
			// rewire the library-owned defaults so a discovered index
			// normalizes queries the same way its documents were indexed.
			if ic.HasLemmatizer {
				cfg.Lemmatizer = NewBasicLemmatizer()
			}
			if ic.HasStopWordRemover {
				cfg.StopWordRemover = NewBasicStopWordRemover()
			}
			results[i] = &found{name: child.Name(), cfg: cfg, root: dir}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translateErr(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(results))
	for _, f := range results {
		if f == nil {
			continue
		}
		if _, exists := m.entries[f.name]; exists {
			continue
		}
		m.entries[f.name] = &catalogEntry{cfg: f.cfg, root: f.root}
		names = append(names, f.name)
	}
	return names, nil
}
