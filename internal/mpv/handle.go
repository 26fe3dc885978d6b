package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"clipdeck/internal/player"
	"clipdeck/internal/probe"
)

// ErrPlayback is wrapped into the error events mpv reports for a file
var ErrPlayback = errors.New("playback failed")

// commandTimeout bounds a single IPC round trip
const commandTimeout = 5 * time.Second

// Observed property ids
const (
	propTimePos = iota + 1
	propDuration
	propEOFReached
)

// Handle drives one mpv instance as a player.Handle.
//
// mpv keeps playing the old file until it has processed loadfile, so events
// are stamped with the token of the file mpv last started, not the one most
// recently requested. A requested token becomes current once every
// outstanding loadfile has produced its start-file event.
type Handle struct {
	ipc     *ipcClient
	resolve func(src string) string
	logger  *slog.Logger

	mu      sync.Mutex
	token   uint64
	pending uint64
	starts  int

	events chan player.Event
	closed chan struct{}
	once   sync.Once
}

// NewHandle wraps an established IPC connection. resolve turns a source
// path into something mpv can open; nil passes it through unchanged.
func NewHandle(conn net.Conn, resolve func(string) string, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if resolve == nil {
		resolve = func(s string) string { return s }
	}

	h := &Handle{
		ipc:     newIPCClient(conn, logger),
		resolve: resolve,
		logger:  logger,
		events:  make(chan player.Event, 64),
		closed:  make(chan struct{}),
	}

	observe := []struct {
		id   int
		name string
	}{
		{propTimePos, "time-pos"},
		{propDuration, "duration"},
		{propEOFReached, "eof-reached"},
	}
	for _, p := range observe {
		if _, err := h.command("observe_property", p.id, p.name); err != nil {
			h.ipc.Close()
			return nil, fmt.Errorf("failed to observe %s: %w", p.name, err)
		}
	}

	go h.pump()

	return h, nil
}

func (h *Handle) command(args ...any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return h.ipc.Command(ctx, args...)
}

func (h *Handle) Load(src string, token uint64, muted bool) error {
	h.mu.Lock()
	h.pending = token
	h.mu.Unlock()

	if _, err := h.command("set_property", "mute", muted); err != nil {
		return err
	}

	h.mu.Lock()
	h.starts++
	h.mu.Unlock()

	if _, err := h.command("loadfile", h.resolve(src), "replace"); err != nil {
		if errors.Is(err, ErrCommand) {
			// mpv refused it; no start-file will follow
			h.mu.Lock()
			if h.starts > 0 {
				h.starts--
			}
			h.mu.Unlock()
		}
		return err
	}
	_, err := h.command("set_property", "pause", false)
	return err
}

// currentToken is the token of the file mpv is playing
func (h *Handle) currentToken() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

// fileStarted accounts for one start-file event and promotes the pending
// token once no loadfile is outstanding
func (h *Handle) fileStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.starts > 0 {
		h.starts--
	}
	if h.starts == 0 {
		h.token = h.pending
	}
}

func (h *Handle) Unload() error {
	_, err := h.command("stop")
	return err
}

func (h *Handle) Play() error {
	_, err := h.command("set_property", "pause", false)
	return err
}

func (h *Handle) Pause() error {
	_, err := h.command("set_property", "pause", true)
	return err
}

// CurrentTime reads time-pos; no position yet reads as 0
func (h *Handle) CurrentTime() (float64, error) {
	data, err := h.command("get_property", "time-pos")
	if err != nil {
		return 0, err
	}
	var pos *float64
	if err := json.Unmarshal(data, &pos); err != nil || pos == nil {
		return 0, nil
	}
	return *pos, nil
}

// SetCurrentTime seeks to an absolute position. mpv reads a negative
// time-pos as relative to the end, so it is clamped at 0.
func (h *Handle) SetCurrentTime(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	_, err := h.command("set_property", "time-pos", seconds)
	return err
}

func (h *Handle) SetMuted(muted bool) error {
	_, err := h.command("set_property", "mute", muted)
	return err
}

// AudioSignals reports the audio track count from track-list and whether an
// audio track is selected. Whatever cannot be read is left unknown. The aid
// lookup only runs if the track count does not settle the answer.
func (h *Handle) AudioSignals() []probe.Signal {
	var tracks probe.TrackCount
	if data, err := h.command("get_property", "track-list"); err == nil {
		var list []struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &list) == nil {
			n := 0
			for _, t := range list {
				if t.Type == "audio" {
					n++
				}
			}
			tracks.Tracks = &n
		}
	}

	selected := probe.Func(func() (bool, bool) {
		data, err := h.command("get_property", "aid")
		if err != nil {
			return false, false
		}
		return aidSelected(data), true
	})

	return []probe.Signal{tracks, selected}
}

// aidSelected interprets the aid property: a track number when one is
// selected, false or "no" otherwise.
func aidSelected(data json.RawMessage) bool {
	var b bool
	if json.Unmarshal(data, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s != "no" && s != ""
	}
	var n float64
	if json.Unmarshal(data, &n) == nil {
		return n > 0
	}
	return false
}

func (h *Handle) Events() <-chan player.Event {
	return h.events
}

// Close drops the IPC connection and stops the event pump
func (h *Handle) Close() error {
	var err error
	h.once.Do(func() {
		close(h.closed)
		err = h.ipc.Close()
	})
	return err
}

// pump turns mpv events into player events stamped with the current token
func (h *Handle) pump() {
	for msg := range h.ipc.Events() {
		ev, ok := h.translate(msg)
		if !ok {
			continue
		}
		select {
		case h.events <- ev:
		case <-h.closed:
			return
		}
	}
}

func (h *Handle) translate(msg message) (player.Event, bool) {
	if msg.Event == "start-file" {
		h.fileStarted()
		return player.Event{}, false
	}

	token := h.currentToken()

	switch msg.Event {
	case "property-change":
		switch msg.ID {
		case propTimePos:
			if v, ok := number(msg.Data); ok {
				return player.TimeUpdate(token, v), true
			}
		case propDuration:
			if v, ok := number(msg.Data); ok {
				return player.Metadata(token, v), true
			}
		case propEOFReached:
			var eof bool
			if json.Unmarshal(msg.Data, &eof) == nil && eof {
				return player.Ended(token), true
			}
		}

	case "end-file":
		switch msg.Reason {
		case "eof":
			return player.Ended(token), true
		case "error":
			return player.Failed(token, fmt.Errorf("%w: %s", ErrPlayback, msg.FileError)), true
		}

	case "file-loaded":
		h.logger.Debug("mpv file loaded", "token", token)
	}

	return player.Event{}, false
}

func number(data json.RawMessage) (float64, bool) {
	var v *float64
	if len(data) == 0 || json.Unmarshal(data, &v) != nil || v == nil {
		return 0, false
	}
	return *v, true
}
