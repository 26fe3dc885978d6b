// Package player implements the transport state machine that sits on top of
// a single media handle: play/pause, seeking, muting and the observations the
// handle reports back.
package player

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"clipdeck/internal/probe"
)

// SeekStep is how far one seek moves the position, in seconds
const SeekStep = 10.0

var (
	ErrControlDisabled  = errors.New("control is disabled")
	ErrInvalidDirection = errors.New("invalid seek direction: must be forward or backward")
)

// Status is the transport state
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
	StatusEnded
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Direction selects which way Seek moves
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection parses "forward" or "backward"
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return Forward, ErrInvalidDirection
	}
}

// State is the observable playback state
type State struct {
	Src           string
	Name          string
	Status        Status
	CurrentTime   float64
	Duration      float64
	Muted         bool
	HasAudioTrack bool
	Err           error
}

// Controls reports which transport controls are actionable
type Controls struct {
	PlayPause bool `json:"playPause"`
	Seek      bool `json:"seek"`
	Mute      bool `json:"mute"`
	Download  bool `json:"download"`
}

// Controller owns the playback state for one handle. It is not safe for
// concurrent use; callers serialize access (see app.App).
type Controller struct {
	handle Handle
	logger *slog.Logger

	state       State
	token       uint64
	audioProbed bool
}

// NewController creates a controller in the idle state
func NewController(handle Handle, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		handle: handle,
		logger: logger,
		state:  idleState(),
	}
}

func idleState() State {
	return State{Status: StatusIdle, Muted: true}
}

// State returns a copy of the current state
func (c *Controller) State() State {
	return c.state
}

// Token returns the token stamped on the most recent Load
func (c *Controller) Token() uint64 {
	return c.token
}

// Controls returns which controls can be used in the current state
func (c *Controller) Controls() Controls {
	hasSrc := c.state.Src != ""

	return Controls{
		PlayPause: hasSrc,
		Seek:      hasSrc && c.state.Status != StatusErrored,
		Mute:      hasSrc && c.state.HasAudioTrack,
		Download:  hasSrc && c.state.Name != "",
	}
}

// SetSource points the controller at a new source. An empty src stops
// playback. Setting the source it already has is a no-op.
func (c *Controller) SetSource(src, name string) error {
	if src == c.state.Src {
		c.state.Name = name
		return nil
	}

	// Any event still in flight for the old source is now stale
	c.token++
	c.audioProbed = false

	if src == "" {
		c.state = idleState()
		if err := c.handle.Unload(); err != nil {
			c.logger.Warn("failed to unload media handle", "error", err)
			return fmt.Errorf("failed to unload: %w", err)
		}
		return nil
	}

	return c.load(src, name)
}

// load resets the state and starts src from the beginning
func (c *Controller) load(src, name string) error {
	c.state = State{
		Src:    src,
		Name:   name,
		Status: StatusPlaying,
		Muted:  true,
	}

	if err := c.handle.Load(src, c.token, c.state.Muted); err != nil {
		c.state.Status = StatusErrored
		c.state.Err = err
		c.logger.Warn("failed to load source", "src", src, "error", err)
		return fmt.Errorf("failed to load %s: %w", src, err)
	}

	c.logger.Debug("source loaded", "src", src, "token", c.token)
	return nil
}

// TogglePlay flips between playing and paused. From ended it rewinds to
// the start; from errored it reloads the source.
func (c *Controller) TogglePlay() error {
	switch c.state.Status {
	case StatusPlaying:
		if err := c.handle.Pause(); err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
		c.state.Status = StatusPaused

	case StatusPaused:
		if err := c.handle.Play(); err != nil {
			return fmt.Errorf("failed to play: %w", err)
		}
		c.state.Status = StatusPlaying

	case StatusEnded:
		if err := c.handle.SetCurrentTime(0); err != nil {
			return fmt.Errorf("failed to rewind: %w", err)
		}
		if err := c.handle.Play(); err != nil {
			return fmt.Errorf("failed to play: %w", err)
		}
		c.state.CurrentTime = 0
		c.state.Status = StatusPlaying

	case StatusErrored:
		c.token++
		c.audioProbed = false
		return c.load(c.state.Src, c.state.Name)

	default:
		return ErrControlDisabled
	}

	return nil
}

// Seek moves the handle's position by SeekStep in the given direction.
// Seeking backward out of the ended state leaves the transport paused.
func (c *Controller) Seek(dir Direction) error {
	if c.state.Src == "" || c.state.Status == StatusErrored {
		return ErrControlDisabled
	}

	current, err := c.handle.CurrentTime()
	if err != nil {
		return fmt.Errorf("failed to read position: %w", err)
	}

	target := current + SeekStep
	if dir == Backward {
		target = current - SeekStep
	}

	if err := c.handle.SetCurrentTime(target); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	if dir == Backward && c.state.Status == StatusEnded {
		c.state.Status = StatusPaused
	}

	return nil
}

// ToggleMute flips the muted flag. It does nothing unless a source with an
// audio track is loaded.
func (c *Controller) ToggleMute() error {
	if c.state.Src == "" || !c.state.HasAudioTrack {
		return ErrControlDisabled
	}

	muted := !c.state.Muted
	if err := c.handle.SetMuted(muted); err != nil {
		return fmt.Errorf("failed to set mute: %w", err)
	}
	c.state.Muted = muted

	return nil
}

// Observe applies an event reported by the handle. Events stamped with an
// older token are dropped; the return value reports whether ev was applied.
func (c *Controller) Observe(ev Event) bool {
	if ev.Token != c.token || c.state.Src == "" {
		c.logger.Debug("dropping stale handle event", "kind", ev.Kind, "token", ev.Token, "current", c.token)
		return false
	}

	switch ev.Kind {
	case EventTimeUpdate:
		c.state.CurrentTime = nonNegative(ev.Time)

	case EventMetadata:
		c.state.Duration = nonNegative(ev.Duration)
		if !c.audioProbed {
			c.state.HasAudioTrack = probe.Detect(c.handle.AudioSignals()...)
			c.audioProbed = true
		}

	case EventEnded:
		if c.state.Status != StatusPlaying {
			return false
		}
		c.state.Status = StatusEnded

	case EventError:
		if c.state.Status == StatusErrored {
			return false
		}
		c.state.Status = StatusErrored
		c.state.Err = ev.Err
		c.logger.Warn("playback error", "src", c.state.Src, "error", ev.Err)

	default:
		return false
	}

	return true
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
