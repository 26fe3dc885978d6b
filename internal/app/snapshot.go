package app

import (
	"fmt"

	"clipdeck/internal/format"
	"clipdeck/internal/player"
	"clipdeck/pkg/models"
)

// AssetView is one grid row, ready to render
type AssetView struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Modified string `json:"modified"`
	Bytes    int64  `json:"bytes"`
	Size     string `json:"size"`
	Selected bool   `json:"selected"`
}

// PlaybackView is the transport state, ready to render
type PlaybackView struct {
	Status        string  `json:"status"`
	Src           string  `json:"src,omitempty"`
	Name          string  `json:"name,omitempty"`
	CurrentTime   float64 `json:"currentTime"`
	Duration      float64 `json:"duration"`
	Position      string  `json:"position"`
	Muted         bool    `json:"muted"`
	HasAudioTrack bool    `json:"hasAudioTrack"`
	Error         string  `json:"error,omitempty"`
}

// Snapshot is an immutable copy of the session state
type Snapshot struct {
	Loaded     bool            `json:"loaded"`
	LoadError  string          `json:"loadError,omitempty"`
	Assets     []AssetView     `json:"assets"`
	SelectedID string          `json:"selectedId,omitempty"`
	Playback   PlaybackView    `json:"playback"`
	Controls   player.Controls `json:"controls"`
}

// Snapshot captures the current state
func (a *App) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := a.call(func() error {
		snap = a.snapshot()
		return nil
	})
	return snap, err
}

func (a *App) snapshot() Snapshot {
	selected := a.catalog.SelectedID()
	state := a.controller.State()

	snap := Snapshot{
		Loaded:   a.catalog.Loaded(),
		Assets:   make([]AssetView, 0),
		Controls: a.controller.Controls(),
		Playback: PlaybackView{
			Status:        state.Status.String(),
			Src:           state.Src,
			Name:          state.Name,
			CurrentTime:   state.CurrentTime,
			Duration:      state.Duration,
			Position:      fmt.Sprintf("%s / %s", format.Time(state.CurrentTime), format.Time(state.Duration)),
			Muted:         state.Muted,
			HasAudioTrack: state.HasAudioTrack,
		},
	}
	if a.loadErr != nil {
		snap.LoadError = a.loadErr.Error()
	}
	if state.Err != nil {
		snap.Playback.Error = state.Err.Error()
	}
	if !selected.IsNil() {
		snap.SelectedID = selected.String()
	}

	// Only the first asset carrying the selected id is marked
	marked := false
	for i, asset := range a.catalog.Assets() {
		view := assetView(i, asset, a.decimals)
		if !marked && !selected.IsNil() && asset.ID() == selected {
			view.Selected = true
			marked = true
		}
		snap.Assets = append(snap.Assets, view)
	}

	return snap
}

// assetView formats one row. A modification time the server sent in an
// unknown format is shown as received.
func assetView(index int, asset models.MediaAsset, decimals int) AssetView {
	modified := asset.Modified
	if t, err := asset.ModifiedTime(); err == nil {
		modified = format.Timestamp(t)
	}

	return AssetView{
		Index:    index,
		ID:       asset.ID().String(),
		Key:      asset.LegacyKey(),
		Name:     asset.Name,
		Modified: modified,
		Bytes:    asset.Size,
		Size:     format.Bytes(asset.Size, decimals),
	}
}

// CatalogSnapshot renders a fetched asset list without a running session,
// nothing selected and every control disabled
func CatalogSnapshot(assets []models.MediaAsset, decimals int) Snapshot {
	snap := Snapshot{
		Loaded: true,
		Assets: make([]AssetView, 0, len(assets)),
		Playback: PlaybackView{
			Status:   player.StatusIdle.String(),
			Position: fmt.Sprintf("%s / %s", format.Time(0), format.Time(0)),
		},
	}
	for i, asset := range assets {
		snap.Assets = append(snap.Assets, assetView(i, asset, decimals))
	}
	return snap
}
