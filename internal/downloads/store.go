// Package downloads keeps the files the user saved from the media server.
package downloads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"clipdeck/pkg/models"
)

var (
	ErrEntryNotFound = errors.New("download not found")
	ErrInvalidName   = errors.New("invalid file name")
)

// tempPrefix marks partially written files; Scan skips them
const tempPrefix = ".clipdeck-"

// Store indexes the downloads directory
type Store struct {
	mu           sync.RWMutex
	dir          string
	entries      map[string]*models.DownloadEntry
	maxSizeBytes int64
}

// NewStore creates the directory if needed and indexes what is already there.
// maxSizeGB <= 0 disables the size cap.
func NewStore(dir string, maxSizeGB float64) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	s := &Store{
		dir:          dir,
		entries:      make(map[string]*models.DownloadEntry),
		maxSizeBytes: int64(maxSizeGB * 1024 * 1024 * 1024),
	}

	if err := s.Scan(); err != nil {
		return nil, err
	}

	return s, nil
}

// Dir returns the downloads directory
func (s *Store) Dir() string {
	return s.dir
}

// ValidateName rejects names that would land outside the directory
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name ||
		strings.HasPrefix(name, tempPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Save writes r to name. The file appears only once it is complete; a
// failed write leaves nothing behind.
func (s *Store) Save(name string, r io.Reader) (models.DownloadEntry, error) {
	if err := ValidateName(name); err != nil {
		return models.DownloadEntry{}, err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*.part")
	if err != nil {
		return models.DownloadEntry{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return models.DownloadEntry{}, fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpPath)
		return models.DownloadEntry{}, fmt.Errorf("failed to save %s: %w", name, err)
	}

	entry := &models.DownloadEntry{
		FileName: name,
		Size:     size,
		Saved:    time.Now(),
	}

	s.mu.Lock()
	s.entries[name] = entry
	s.evictIfNeeded(name)
	s.mu.Unlock()

	return *entry, nil
}

// Get returns the entry for name
func (s *Store) Get(name string) (models.DownloadEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok {
		return models.DownloadEntry{}, ErrEntryNotFound
	}
	return *entry, nil
}

// Path returns the absolute path of a saved file
func (s *Store) Path(name string) (string, error) {
	if _, err := s.Get(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Delete removes a saved file
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return ErrEntryNotFound
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	delete(s.entries, name)

	return nil
}

// List returns all saved files, most recent first
func (s *Store) List() []models.DownloadEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DownloadEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Saved.Equal(out[j].Saved) {
			return out[i].FileName < out[j].FileName
		}
		return out[i].Saved.After(out[j].Saved)
	})

	return out
}

// Size returns the total size of all saved files
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, e := range s.entries {
		total += e.Size
	}
	return total
}

// Scan rebuilds the index from the directory contents
func (s *Store) Scan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read downloads directory: %w", err)
	}

	s.entries = make(map[string]*models.DownloadEntry)
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), tempPrefix) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}

		s.entries[de.Name()] = &models.DownloadEntry{
			FileName: de.Name(),
			Size:     info.Size(),
			Saved:    info.ModTime(),
		}
	}

	s.evictIfNeeded("")

	return nil
}

// evictIfNeeded removes the oldest files until the total fits the cap.
// keep is never evicted. Must be called with the lock held.
func (s *Store) evictIfNeeded(keep string) {
	if s.maxSizeBytes <= 0 {
		return
	}

	var total int64
	for _, e := range s.entries {
		total += e.Size
	}
	if total <= s.maxSizeBytes {
		return
	}

	oldest := make([]*models.DownloadEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.FileName != keep {
			oldest = append(oldest, e)
		}
	}
	sort.Slice(oldest, func(i, j int) bool {
		return oldest[i].Saved.Before(oldest[j].Saved)
	})

	for _, e := range oldest {
		if total <= s.maxSizeBytes {
			break
		}
		os.Remove(filepath.Join(s.dir, e.FileName))
		delete(s.entries, e.FileName)
		total -= e.Size
	}
}
