package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipdeck/pkg/models"
)

type fakeLister struct {
	assets []models.MediaAsset
	err    error
	calls  int
}

func (f *fakeLister) ListMedia(ctx context.Context) ([]models.MediaAsset, error) {
	f.calls++
	return f.assets, f.err
}

var sample = []models.MediaAsset{
	{Name: "clip.mp4", Size: 2048, Modified: "2024-01-01T00:00:00Z"},
	{Name: "older.mp4", Size: 1 << 20, Modified: "2023-12-31T00:00:00Z"},
}

func TestLoad(t *testing.T) {
	c := New()
	lister := &fakeLister{assets: sample}

	changes := 0
	c.OnChange(func() { changes++ })

	require.NoError(t, c.Load(context.Background(), lister))
	assert.True(t, c.Loaded())
	assert.Equal(t, sample, c.Assets())
	assert.Equal(t, 1, changes)

	// Loaded once per lifetime
	err := c.Load(context.Background(), lister)
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
	assert.Equal(t, 1, lister.calls)
}

func TestLoadKeepsServerOrder(t *testing.T) {
	c := New()
	reversed := []models.MediaAsset{sample[1], sample[0]}

	require.NoError(t, c.Load(context.Background(), &fakeLister{assets: reversed}))
	assert.Equal(t, reversed, c.Assets())
}

func TestLoadFailureLeavesNotLoaded(t *testing.T) {
	c := New()
	changes := 0
	c.OnChange(func() { changes++ })

	err := c.Load(context.Background(), &fakeLister{err: errors.New("connection refused")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
	assert.False(t, c.Loaded())
	assert.Empty(t, c.Assets())
	assert.Equal(t, 0, changes)

	// A later manual reload can still succeed
	require.NoError(t, c.Load(context.Background(), &fakeLister{assets: sample}))
	assert.True(t, c.Loaded())
}

func TestCompleteLoadIgnoresStaleToken(t *testing.T) {
	c := New()

	first := c.BeginLoad()
	second := c.BeginLoad()

	err := c.CompleteLoad(first, sample, nil)
	assert.ErrorIs(t, err, ErrStaleLoad)
	assert.False(t, c.Loaded())

	require.NoError(t, c.CompleteLoad(second, sample[:1], nil))
	assert.Len(t, c.Assets(), 1)
}

func TestCompleteLoadAfterLoaded(t *testing.T) {
	c := New()
	require.NoError(t, c.CompleteLoad(c.BeginLoad(), sample, nil))

	err := c.CompleteLoad(c.BeginLoad(), nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
	assert.Len(t, c.Assets(), 2)
}

func TestSelect(t *testing.T) {
	c := New()
	require.NoError(t, c.Load(context.Background(), &fakeLister{assets: sample}))

	changes := 0
	c.OnChange(func() { changes++ })

	assert.True(t, c.Select(sample[1]))
	got, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, sample[1], got)

	src, name := c.Source()
	assert.Equal(t, "/api/video/older.mp4", src)
	assert.Equal(t, "older.mp4", name)

	// Idempotent
	assert.False(t, c.Select(sample[1]))
	assert.Equal(t, 1, changes)

	// Moves, never clears
	assert.True(t, c.Select(sample[0]))
	assert.False(t, c.SelectID(models.NilAssetID))
	assert.Equal(t, sample[0].ID(), c.SelectedID())
	assert.Equal(t, 2, changes)
}

func TestSelectedBeforeLoad(t *testing.T) {
	c := New()

	// Selection is kept even when it does not resolve yet
	assert.True(t, c.Select(sample[0]))
	_, ok := c.Selected()
	assert.False(t, ok)

	src, name := c.Source()
	assert.Empty(t, src)
	assert.Empty(t, name)

	require.NoError(t, c.Load(context.Background(), &fakeLister{assets: sample}))
	got, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, sample[0], got)
}

func TestResolve(t *testing.T) {
	dup := models.MediaAsset{Name: "clip.mp4", Size: 2048, Modified: "2024-01-01T00:00:00Z"}
	collide := []models.MediaAsset{
		{Name: "a1", Size: 23, Modified: "x"},
		{Name: "a", Size: 123, Modified: "x"},
	}

	tests := []struct {
		name   string
		assets []models.MediaAsset
		id     models.AssetID
		want   models.MediaAsset
		wantOK bool
	}{
		{"nil id", sample, models.NilAssetID, models.MediaAsset{}, false},
		{"unknown id", sample, models.MediaAsset{Name: "gone"}.ID(), models.MediaAsset{}, false},
		{"found", sample, sample[1].ID(), sample[1], true},
		{"legacy collision resolved", collide, collide[1].ID(), collide[1], true},
		{"duplicate records first wins", []models.MediaAsset{dup, sample[1], dup}, dup.ID(), dup, true},
		{"empty catalog", nil, sample[0].ID(), models.MediaAsset{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.assets, tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFind(t *testing.T) {
	c := New()
	require.NoError(t, c.Load(context.Background(), &fakeLister{assets: sample}))

	a, ok := c.Find(1)
	require.True(t, ok)
	assert.Equal(t, sample[1], a)

	_, ok = c.Find(2)
	assert.False(t, ok)
	_, ok = c.Find(-1)
	assert.False(t, ok)
}
