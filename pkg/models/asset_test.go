package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetIDDistinguishesLegacyCollisions(t *testing.T) {
	a := MediaAsset{Name: "a1", Size: 23, Modified: "2024-01-01T00:00:00Z"}
	b := MediaAsset{Name: "a", Size: 123, Modified: "2024-01-01T00:00:00Z"}

	// The old name+size key collides
	assert.Equal(t, a.LegacyKey(), b.LegacyKey())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestAssetIDFieldsWithSeparators(t *testing.T) {
	tests := []struct {
		name string
		a, b MediaAsset
	}{
		{
			name: "NUL inside fields",
			a:    MediaAsset{Name: "a\x001", Size: 2, Modified: "x"},
			b:    MediaAsset{Name: "a", Size: 1, Modified: "2\x00x"},
		},
		{
			name: "length prefix look-alike",
			a:    MediaAsset{Name: "1:a", Size: 1, Modified: "x"},
			b:    MediaAsset{Name: "", Size: 1, Modified: "1:a1:x"},
		},
		{
			name: "digits move between name and size",
			a:    MediaAsset{Name: "clip1", Size: 23},
			b:    MediaAsset{Name: "clip", Size: 123},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a.ID(), tt.b.ID())
		})
	}
}

func TestAssetIDStable(t *testing.T) {
	a := MediaAsset{Name: "clip.mp4", Size: 2048, Modified: "2024-01-01T00:00:00Z"}
	b := a

	assert.Equal(t, a.ID(), b.ID())
	assert.False(t, a.ID().IsNil())

	b.Modified = "2024-01-02T00:00:00Z"
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestParseAssetID(t *testing.T) {
	a := MediaAsset{Name: "clip.mp4", Size: 2048}

	id, err := ParseAssetID(a.ID().String())
	require.NoError(t, err)
	assert.Equal(t, a.ID(), id)

	_, err = ParseAssetID("not-a-uuid")
	assert.Error(t, err)
}

func TestVideoPath(t *testing.T) {
	assert.Equal(t, "/api/video/clip.mp4", MediaAsset{Name: "clip.mp4"}.VideoPath())
	assert.Equal(t, "/api/video/my%20clip.mp4", VideoPath("my clip.mp4"))
}

func TestModifiedTime(t *testing.T) {
	tests := []struct {
		name     string
		modified string
		wantErr  bool
		wantYear int
	}{
		{"rfc3339", "2024-01-01T00:00:00Z", false, 2024},
		{"rfc3339 offset", "2023-06-15T10:30:00.123+02:00", false, 2023},
		{"http date", "Mon, 01 Jan 2024 00:00:00 GMT", false, 2024},
		{"garbage", "yesterday", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := MediaAsset{Modified: tt.modified}.ModifiedTime()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, ts.Year())
		})
	}
}
