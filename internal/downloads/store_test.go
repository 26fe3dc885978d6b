package downloads

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func writeFile(t *testing.T, dir, name string, size int, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestNewStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")

	store, err := NewStore(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
	assert.DirExists(t, dir)
	assert.Empty(t, store.List())
}

func TestSave(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	entry, err := store.Save("clip.mp4", strings.NewReader("video bytes"))
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", entry.FileName)
	assert.Equal(t, int64(11), entry.Size)
	assert.False(t, entry.Saved.IsZero())

	path, err := store.Path("clip.mp4")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))

	// Saving again replaces the file
	_, err = store.Save("clip.mp4", strings.NewReader("v2"))
	require.NoError(t, err)
	assert.Len(t, store.List(), 1)
	assert.Equal(t, int64(2), store.Size())
}

func TestSaveFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0)
	require.NoError(t, err)

	_, err = store.Save("clip.mp4", failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = store.Get("clip.mp4")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"clip.mp4", false},
		{"my video (1).webm", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../escape.mp4", true},
		{"sub/clip.mp4", true},
		{`sub\clip.mp4`, true},
		{"/etc/passwd", true},
		{".clipdeck-123.part", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRejectsEscapingName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "downloads"), 0)
	require.NoError(t, err)

	_, err = store.Save("../outside.mp4", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.NoFileExists(t, filepath.Join(dir, "outside.mp4"))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.mp4", 100, 2*time.Hour)
	writeFile(t, dir, "new.mp4", 200, time.Hour)
	writeFile(t, dir, ".clipdeck-abc.part", 50, 0)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	store, err := NewStore(dir, 0)
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new.mp4", list[0].FileName)
	assert.Equal(t, "old.mp4", list[1].FileName)
	assert.Equal(t, int64(300), store.Size())
}

func TestDelete(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = store.Save("clip.mp4", strings.NewReader("content"))
	require.NoError(t, err)
	path, err := store.Path("clip.mp4")
	require.NoError(t, err)

	require.NoError(t, store.Delete("clip.mp4"))
	assert.NoFileExists(t, path)

	assert.ErrorIs(t, store.Delete("clip.mp4"), ErrEntryNotFound)
	_, err = store.Path("clip.mp4")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestEvictionOldestFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.mp4", 1000, 3*time.Hour)
	writeFile(t, dir, "b.mp4", 1000, 2*time.Hour)
	writeFile(t, dir, "c.mp4", 1000, time.Hour)

	// 2000 byte cap
	store, err := NewStore(dir, 2000.0/(1<<30))
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "a.mp4"))
	assert.Equal(t, int64(2000), store.Size())

	// The file just saved is kept even though older ones must go
	_, err = store.Save("new.mp4", bytes.NewReader(make([]byte, 1500)))
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "new.mp4", list[0].FileName)
	assert.NoFileExists(t, filepath.Join(dir, "b.mp4"))
	assert.NoFileExists(t, filepath.Join(dir, "c.mp4"))
}
