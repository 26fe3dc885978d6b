// Package probe answers whether the media loaded into a handle carries an
// audio track. Players expose that in different ways; each way is a Signal,
// and Detect folds whatever signals a handle supplies into one answer.
package probe

// Signal is one source of evidence about audio presence.
// known is false when the underlying player does not expose the value.
type Signal interface {
	AudioPresent() (present bool, known bool)
}

// Flag is an explicit has-audio boolean reported by the player.
type Flag struct {
	Value *bool
}

func (f Flag) AudioPresent() (bool, bool) {
	if f.Value == nil {
		return false, false
	}
	return *f.Value, true
}

// DecodedBytes is a running count of decoded audio bytes.
type DecodedBytes struct {
	Count *int64
}

func (d DecodedBytes) AudioPresent() (bool, bool) {
	if d.Count == nil {
		return false, false
	}
	return *d.Count > 0, true
}

// TrackCount is the number of audio tracks the player enumerated.
type TrackCount struct {
	Tracks *int
}

func (t TrackCount) AudioPresent() (bool, bool) {
	if t.Tracks == nil {
		return false, false
	}
	return *t.Tracks > 0, true
}

// Func adapts a plain function to a Signal.
type Func func() (bool, bool)

func (f Func) AudioPresent() (bool, bool) {
	return f()
}

// Detect reports true if any known signal says audio is present.
// No signals, or only unknown ones, means no audio.
func Detect(signals ...Signal) bool {
	for _, s := range signals {
		if s == nil {
			continue
		}
		if present, known := s.AudioPresent(); known && present {
			return true
		}
	}
	return false
}
