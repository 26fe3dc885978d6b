package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipdeck/internal/catalog"
	"clipdeck/internal/downloader"
	"clipdeck/internal/format"
	"clipdeck/internal/player"
	"clipdeck/internal/player/playertest"
	"clipdeck/pkg/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeLister struct {
	mu     sync.Mutex
	assets []models.MediaAsset
	err    error
	calls  int
}

func (f *fakeLister) ListMedia(ctx context.Context) ([]models.MediaAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.assets, f.err
}

func (f *fakeLister) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDownloader struct {
	mu   sync.Mutex
	err  error
	reqs []string
}

func (f *fakeDownloader) Download(ctx context.Context, src, fileName string) *downloader.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, src+" -> "+fileName)

	req := &downloader.Request{Src: src, FileName: fileName, Status: downloader.StatusCompleted}
	if f.err != nil {
		req.Status = downloader.StatusFailed
		req.Error = f.err
		return req
	}
	req.Entry = models.DownloadEntry{FileName: fileName}
	return req
}

func (f *fakeDownloader) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reqs...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	warnings []string
}

func (n *recordingNotifier) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

func (n *recordingNotifier) Warnings() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.warnings...)
}

type harness struct {
	app      *App
	handle   *playertest.FakeHandle
	lister   *fakeLister
	dl       *fakeDownloader
	notifier *recordingNotifier
}

func start(t *testing.T, lister *fakeLister) *harness {
	t.Helper()

	h := &harness{
		handle:   playertest.NewFakeHandle(),
		lister:   lister,
		dl:       &fakeDownloader{},
		notifier: &recordingNotifier{},
	}
	h.app = New(Options{
		Handle:       h.handle,
		Lister:       h.lister,
		Downloader:   h.dl,
		Notifier:     h.notifier,
		SizeDecimals: format.DefaultDecimals,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go h.app.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.app.Done()
	})

	return h
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.app.Snapshot()
	require.NoError(t, err)
	return snap
}

func (h *harness) waitLoaded(t *testing.T) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := h.app.Snapshot()
		return err == nil && (snap.Loaded || snap.LoadError != "")
	}, waitFor, tick)
	return h.snapshot(t)
}

func (h *harness) waitStatus(t *testing.T, status player.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := h.app.Snapshot()
		return err == nil && snap.Playback.Status == status.String()
	}, waitFor, tick)
}

var clip = models.MediaAsset{Name: "clip.mp4", Size: 2048, Modified: "2024-01-01T00:00:00Z"}

func TestPlayThroughToEndAndRestart(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})

	snap := h.waitLoaded(t)
	require.True(t, snap.Loaded)
	require.Len(t, snap.Assets, 1)
	assert.Equal(t, "clip.mp4", snap.Assets[0].Name)
	assert.Equal(t, "2 KiB", snap.Assets[0].Size)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", snap.Assets[0].Modified)
	assert.Equal(t, player.Controls{}, snap.Controls)

	require.NoError(t, h.app.Select(clip.ID()))

	snap = h.snapshot(t)
	assert.Equal(t, "/api/video/clip.mp4", snap.Playback.Src)
	assert.Equal(t, "playing", snap.Playback.Status)
	assert.True(t, snap.Playback.Muted)
	assert.True(t, snap.Assets[0].Selected)
	assert.Equal(t, clip.ID().String(), snap.SelectedID)
	assert.Equal(t, []string{"/api/video/clip.mp4"}, h.handle.Loads)

	token := h.handle.CurrentToken()
	h.handle.Emit(player.Metadata(token, 12.5))
	h.handle.Emit(player.TimeUpdate(token, 12.5))
	h.handle.Emit(player.Ended(token))
	h.waitStatus(t, player.StatusEnded)

	snap = h.snapshot(t)
	assert.Equal(t, 12.5, snap.Playback.CurrentTime)
	assert.Equal(t, "00:12.500 / 00:12.500", snap.Playback.Position)

	require.NoError(t, h.app.TogglePlay())

	snap = h.snapshot(t)
	assert.Equal(t, "playing", snap.Playback.Status)
	assert.Equal(t, float64(0), snap.Playback.CurrentTime)
	assert.False(t, h.handle.IsPaused())
}

func TestRejectedFetchLeavesEmptyGrid(t *testing.T) {
	h := start(t, &fakeLister{err: errors.New("connection refused")})

	snap := h.waitLoaded(t)
	assert.False(t, snap.Loaded)
	assert.Contains(t, snap.LoadError, "connection refused")
	assert.Empty(t, snap.Assets)
	assert.Equal(t, player.Controls{}, snap.Controls)

	assert.ErrorIs(t, h.app.TogglePlay(), player.ErrControlDisabled)
	assert.ErrorIs(t, h.app.Seek(player.Forward), player.ErrControlDisabled)
	assert.ErrorIs(t, h.app.ToggleMute(), player.ErrControlDisabled)
	assert.ErrorIs(t, h.app.Download(), player.ErrControlDisabled)
	assert.ErrorIs(t, h.app.SelectIndex(0), ErrUnknownAsset)

	assert.Empty(t, h.handle.Loads)
	assert.Equal(t, 1, h.lister.Calls())
}

func TestReload(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	h := start(t, lister)
	h.waitLoaded(t)

	lister.mu.Lock()
	lister.err = nil
	lister.assets = []models.MediaAsset{clip}
	lister.mu.Unlock()

	require.NoError(t, h.app.Reload())
	require.Eventually(t, func() bool {
		snap, err := h.app.Snapshot()
		return err == nil && snap.Loaded
	}, waitFor, tick)
	assert.Empty(t, h.snapshot(t).LoadError)

	assert.ErrorIs(t, h.app.Reload(), catalog.ErrAlreadyLoaded)
	assert.Equal(t, 2, lister.Calls())
}

func TestSwitchingSourceDropsStaleEvents(t *testing.T) {
	other := models.MediaAsset{Name: "other.mp4", Size: 10, Modified: "2023-01-01T00:00:00Z"}
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip, other}})
	h.waitLoaded(t)

	require.NoError(t, h.app.SelectIndex(0))
	oldToken := h.handle.CurrentToken()

	require.NoError(t, h.app.SelectIndex(1))
	newToken := h.handle.CurrentToken()
	assert.NotEqual(t, oldToken, newToken)

	h.handle.Emit(player.Ended(oldToken))
	h.handle.Emit(player.TimeUpdate(newToken, 3))

	require.Eventually(t, func() bool {
		snap, err := h.app.Snapshot()
		return err == nil && snap.Playback.CurrentTime == 3
	}, waitFor, tick)

	snap := h.snapshot(t)
	assert.Equal(t, "playing", snap.Playback.Status)
	assert.Equal(t, "/api/video/other.mp4", snap.Playback.Src)
	assert.False(t, snap.Assets[0].Selected)
	assert.True(t, snap.Assets[1].Selected)
}

func TestSelectSameAssetIsNoop(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})
	h.waitLoaded(t)

	require.NoError(t, h.app.Select(clip.ID()))
	require.NoError(t, h.app.Select(clip.ID()))

	assert.Len(t, h.handle.Loads, 1)
}

func TestSelectUnknown(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})
	h.waitLoaded(t)

	err := h.app.Select(models.MediaAsset{Name: "gone.mp4"}.ID())
	assert.ErrorIs(t, err, ErrUnknownAsset)
	assert.Equal(t, "idle", h.snapshot(t).Playback.Status)
}

func TestSeekAndMute(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})
	h.waitLoaded(t)
	h.handle.WithAudio(1)

	require.NoError(t, h.app.SelectIndex(0))

	// Mute stays disabled until metadata has been checked
	assert.ErrorIs(t, h.app.ToggleMute(), player.ErrControlDisabled)

	h.handle.Emit(player.Metadata(h.handle.CurrentToken(), 60))
	require.Eventually(t, func() bool {
		snap, err := h.app.Snapshot()
		return err == nil && snap.Controls.Mute
	}, waitFor, tick)

	require.NoError(t, h.app.ToggleMute())
	assert.False(t, h.snapshot(t).Playback.Muted)

	require.NoError(t, h.app.Seek(player.Forward))
	pos, err := h.handle.CurrentTime()
	require.NoError(t, err)
	assert.Equal(t, player.SeekStep, pos)

	require.NoError(t, h.app.Seek(player.Backward))
	require.NoError(t, h.app.Seek(player.Backward))
	pos, err = h.handle.CurrentTime()
	require.NoError(t, err)
	assert.Equal(t, float64(0), pos)
}

func TestDownloadFailureWarnsOnce(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})
	h.dl.err = errors.New("status 500")
	h.waitLoaded(t)

	require.NoError(t, h.app.SelectIndex(0))
	before := h.snapshot(t)

	require.NoError(t, h.app.Download())
	require.Eventually(t, func() bool { return len(h.notifier.Warnings()) > 0 }, waitFor, tick)

	// Let the loop settle before checking nothing else was reported
	_, err := h.app.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, []string{DownloadWarning}, h.notifier.Warnings())
	assert.Equal(t, []string{"/api/video/clip.mp4 -> clip.mp4"}, h.dl.Requests())

	after := h.snapshot(t)
	assert.Equal(t, before.Playback, after.Playback)
	assert.Equal(t, before.SelectedID, after.SelectedID)
}

func TestDownloadSuccess(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})
	h.waitLoaded(t)
	require.NoError(t, h.app.SelectIndex(0))

	require.NoError(t, h.app.Download())
	require.Eventually(t, func() bool { return len(h.dl.Requests()) == 1 }, waitFor, tick)

	_, err := h.app.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, h.notifier.Warnings())
}

func TestHandleErrorAndRetry(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})
	h.waitLoaded(t)
	require.NoError(t, h.app.SelectIndex(0))

	h.handle.Emit(player.Failed(h.handle.CurrentToken(), errors.New("decoder error")))
	h.waitStatus(t, player.StatusErrored)

	snap := h.snapshot(t)
	assert.Equal(t, "decoder error", snap.Playback.Error)
	assert.False(t, snap.Controls.Seek)
	assert.True(t, snap.Controls.PlayPause)

	require.NoError(t, h.app.TogglePlay())
	assert.Equal(t, "playing", h.snapshot(t).Playback.Status)
	assert.Len(t, h.handle.Loads, 2)
}

func TestChangesSignalled(t *testing.T) {
	h := start(t, &fakeLister{assets: []models.MediaAsset{clip}})
	h.waitLoaded(t)

	// Drain whatever the load produced
	select {
	case <-h.app.Changes():
	default:
	}

	require.NoError(t, h.app.SelectIndex(0))

	select {
	case <-h.app.Changes():
	case <-time.After(waitFor):
		t.Fatal("no change signalled after selecting")
	}
}

func TestCallsAfterStop(t *testing.T) {
	a := New(Options{
		Handle:     playertest.NewFakeHandle(),
		Lister:     &fakeLister{},
		Downloader: &fakeDownloader{},
		Notifier:   &recordingNotifier{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.ErrorIs(t, a.TogglePlay(), ErrStopped)

	_, err := a.Snapshot()
	assert.ErrorIs(t, err, ErrStopped)
}

func TestCatalogSnapshot(t *testing.T) {
	assets := []models.MediaAsset{
		{Name: "a.mp4", Size: 2048, Modified: "2024-01-01T00:00:00Z"},
		{Name: "b.mp4", Size: 10, Modified: "2023-06-01T12:30:00Z"},
	}

	snap := CatalogSnapshot(assets, 0)

	assert.True(t, snap.Loaded)
	assert.Empty(t, snap.SelectedID)
	assert.Equal(t, player.Controls{}, snap.Controls)
	assert.Equal(t, "idle", snap.Playback.Status)
	require.Len(t, snap.Assets, 2)
	assert.Equal(t, "2 KiB", snap.Assets[0].Size)
	assert.Equal(t, 1, snap.Assets[1].Index)
	assert.False(t, snap.Assets[0].Selected)
	assert.Equal(t, assets[1].ID().String(), snap.Assets[1].ID)
	assert.Equal(t, "a.mp42048", snap.Assets[0].Key)
	assert.Equal(t, "2023-06-01T12:30:00.000Z", snap.Assets[1].Modified)
}

func TestCatalogSnapshotKeepsUnparsedModified(t *testing.T) {
	snap := CatalogSnapshot([]models.MediaAsset{
		{Name: "a.mp4", Size: 1, Modified: "last tuesday"},
		{Name: "b.mp4", Size: 1, Modified: "Mon, 01 Jan 2024 00:00:00 GMT"},
	}, 2)

	require.Len(t, snap.Assets, 2)
	assert.Equal(t, "last tuesday", snap.Assets[0].Modified)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", snap.Assets[1].Modified)
}
