package scanstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON file per scan in a directory.
type FileStore struct {
	dir string
	now func() time.Time

	mu     sync.RWMutex
	scans  map[string]*Scan
	loaded bool
}

// NewFileStore creates a FileStore that reads and writes scans in dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:   dir,
		now:   time.Now,
		scans: make(map[string]*Scan),
	}
}

// load reads all scan JSON files from the configured directory.
// Caller must hold the write lock.
func (fs *FileStore) load() error {
	fs.scans = make(map[string]*Scan)

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			fs.loaded = true
			return nil
		}
		return fmt.Errorf("reading scan directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(fs.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable scan file", "path", path, "error", err)
			continue
		}
		var s Scan
		if err := json.Unmarshal(data, &s); err != nil {
			slog.Warn("skipping invalid scan file", "path", path, "error", err)
			continue
		}
		if s.ID == "" {
			s.ID = strings.TrimSuffix(e.Name(), ".json")
		}
		fs.scans[s.ID] = &s
	}

	fs.loaded = true
	return nil
}

// ensureLoaded loads data if not already loaded.
func (fs *FileStore) ensureLoaded() error {
	fs.mu.RLock()
	if fs.loaded {
		fs.mu.RUnlock()
		return nil
	}
	fs.mu.RUnlock()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.loaded {
		return nil
	}
	return fs.load()
}

// Reload forces a fresh reload of all scan files from disk.
func (fs *FileStore) Reload() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.load()
}

func (fs *FileStore) scanPath(id string) string {
	return filepath.Join(fs.dir, id+".json")
}

// Save implements Store.
func (fs *FileStore) Save(_ context.Context, s *Scan) error {
	if err := fs.ensureLoaded(); err != nil {
		return err
	}
	prepare(s, fs.now)

	if strings.ContainsAny(s.ID, `/\`) || s.ID == "." || s.ID == ".." {
		return fmt.Errorf("invalid scan id %q", s.ID)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling scan: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("creating scan directory: %w", err)
	}
	if err := os.WriteFile(fs.scanPath(s.ID), data, 0644); err != nil {
		return fmt.Errorf("writing scan file: %w", err)
	}

	stored := *s
	fs.scans[s.ID] = &stored
	return nil
}

// Get implements Store.
func (fs *FileStore) Get(_ context.Context, id string) (*Scan, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	s, ok := fs.scans[id]
	if !ok {
		return nil, ErrScanNotFound
	}
	out := *s
	return &out, nil
}

// List implements Store.
func (fs *FileStore) List(_ context.Context, userID string) ([]Scan, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	scans := make([]Scan, 0, len(fs.scans))
	for _, s := range fs.scans {
		if userID == "" || s.UserID == userID {
			scans = append(scans, *s)
		}
	}
	sortNewestFirst(scans)
	return scans, nil
}

// Delete implements Store.
func (fs *FileStore) Delete(_ context.Context, id string) error {
	if err := fs.ensureLoaded(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.scans[id]; !ok {
		return ErrScanNotFound
	}
	if err := os.Remove(fs.scanPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing scan file: %w", err)
	}
	delete(fs.scans, id)
	return nil
}

// Close implements Store.
func (fs *FileStore) Close() error { return nil }

// Ensure FileStore satisfies Store.
var _ Store = (*FileStore)(nil)
