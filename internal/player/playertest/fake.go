// Package playertest provides an in-memory player.Handle for tests.
package playertest

import (
	"sync"

	"clipdeck/internal/player"
	"clipdeck/internal/probe"
)

// FakeHandle records the calls made on it and lets tests push events.
// The zero value is not usable; create one with NewFakeHandle.
type FakeHandle struct {
	mu sync.Mutex

	Src      string
	Token    uint64
	Paused   bool
	Muted    bool
	Position float64
	Loads    []string
	Unloads  int

	// AudioTracks is reported through a TrackCount signal; nil means unknown
	AudioTracks *int

	// Err, when set, is returned from every control call
	Err error

	events chan player.Event
}

// NewFakeHandle creates a fake with a buffered event channel
func NewFakeHandle() *FakeHandle {
	return &FakeHandle{events: make(chan player.Event, 64)}
}

func (f *FakeHandle) Load(src string, token uint64, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Src = src
	f.Token = token
	f.Muted = muted
	f.Paused = false
	f.Position = 0
	f.Loads = append(f.Loads, src)
	return nil
}

func (f *FakeHandle) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Src = ""
	f.Paused = true
	f.Unloads++
	return nil
}

func (f *FakeHandle) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Paused = false
	return nil
}

func (f *FakeHandle) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Paused = true
	return nil
}

func (f *FakeHandle) CurrentTime() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	return f.Position, nil
}

// SetCurrentTime clamps below zero the way a real player does
func (f *FakeHandle) SetCurrentTime(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if seconds < 0 {
		seconds = 0
	}
	f.Position = seconds
	return nil
}

func (f *FakeHandle) SetMuted(muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Muted = muted
	return nil
}

func (f *FakeHandle) AudioSignals() []probe.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []probe.Signal{probe.TrackCount{Tracks: f.AudioTracks}}
}

func (f *FakeHandle) Events() <-chan player.Event {
	return f.events
}

// Emit pushes an event as if the player produced it
func (f *FakeHandle) Emit(ev player.Event) {
	f.events <- ev
}

// CurrentToken returns the token of the last Load
func (f *FakeHandle) CurrentToken() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Token
}

// IsPaused reports the paused flag under the lock
func (f *FakeHandle) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Paused
}

// WithAudio marks the loaded media as having n audio tracks
func (f *FakeHandle) WithAudio(n int) *FakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AudioTracks = &n
	return f
}
