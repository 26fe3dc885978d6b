package player

import "clipdeck/internal/probe"

// Handle is the native decode/render object the controller drives.
// Implementations emit observations on Events, stamped with the token of
// the Load call that produced them.
type Handle interface {
	// Load replaces the current source and starts playback from 0
	Load(src string, token uint64, muted bool) error

	// Unload stops playback and drops the source
	Unload() error

	Play() error
	Pause() error

	// CurrentTime returns the position the handle reports, in seconds
	CurrentTime() (float64, error)

	// SetCurrentTime moves the position. Out of range values are clamped by the handle.
	SetCurrentTime(seconds float64) error

	SetMuted(muted bool) error

	// AudioSignals returns whatever audio-presence evidence the handle can expose
	AudioSignals() []probe.Signal

	Events() <-chan Event
}

// EventKind identifies an observation reported by a Handle
type EventKind int

const (
	EventTimeUpdate EventKind = iota
	EventMetadata
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTimeUpdate:
		return "timeupdate"
	case EventMetadata:
		return "metadata"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single observation from a Handle
type Event struct {
	Kind     EventKind
	Token    uint64
	Time     float64
	Duration float64
	Err      error
}

// TimeUpdate builds a progress observation
func TimeUpdate(token uint64, t float64) Event {
	return Event{Kind: EventTimeUpdate, Token: token, Time: t}
}

// Metadata builds a metadata-ready observation
func Metadata(token uint64, duration float64) Event {
	return Event{Kind: EventMetadata, Token: token, Duration: duration}
}

// Ended builds an end-of-stream observation
func Ended(token uint64) Event {
	return Event{Kind: EventEnded, Token: token}
}

// Failed builds a playback error observation
func Failed(token uint64, err error) Event {
	return Event{Kind: EventError, Token: token, Err: err}
}
