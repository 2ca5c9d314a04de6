// ABOUTME: Stream registry entries and their public snapshots
// ABOUTME: Playback flags, pause bookkeeping, fade state and buffered audio per stream
package mixer

import (
	"io"
	"time"
)

// StreamOptions configures a stream added to the mixer
type StreamOptions struct {
	// Volume is the base gain in [0,2]. Nil means 1.0.
	Volume *float64

	// Duration of the source if known, used for remaining time
	Duration time.Duration

	// Metadata is caller-supplied descriptive data (title, url...)
	Metadata map[string]string

	// StartPaused registers the stream paused so it buffers without playing
	StartPaused bool

	// CloseSource closes the source after removal if it is an io.Closer
	CloseSource bool
}

// Gain returns a pointer to v for StreamOptions.Volume
func Gain(v float64) *float64 {
	return &v
}

// StreamInfo is a point-in-time snapshot of a stream
type StreamInfo struct {
	ID               string            `json:"id"`
	Active           bool              `json:"isActive"`
	Paused           bool              `json:"isPaused"`
	Ended            bool              `json:"hasEnded"`
	Volume           float64           `json:"volume"`
	BaseVolume       float64           `json:"baseVolume"`
	Elapsed          time.Duration     `json:"elapsedTime"`
	Duration         time.Duration     `json:"duration,omitempty"`
	Remaining        time.Duration     `json:"remainingTime,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	FadeState        FadeState         `json:"fadeState"`
	FadeProgress     float64           `json:"fadeProgress"`
	CrossfadePartner string            `json:"crossfadePartner,omitempty"`
	Buffered         int               `json:"bufferedBytes"`
}

// stream is the registry entry; guarded by Mixer.mu except queue
type stream struct {
	id     string
	source io.Reader
	queue  *byteQueue

	volume     float64
	baseVolume float64

	active    bool
	paused    bool
	ended     bool
	fadedOut  bool // paused by a completed fade-out, volume left at 0
	removing  bool // removal grace timer armed
	closeSrc  bool
	metadata  map[string]string
	duration  time.Duration
	startTime time.Time

	pausedDuration time.Duration
	pauseStart     time.Time // zero when not paused

	fade    fade
	partner string
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return v
}

// elapsed is playback time since start excluding paused intervals
func (s *stream) elapsed(now time.Time) time.Duration {
	e := now.Sub(s.startTime) - s.pausedDuration
	if s.paused && !s.pauseStart.IsZero() {
		e -= now.Sub(s.pauseStart)
	}
	if e < 0 {
		return 0
	}
	return e
}

// pause records the pause start unless already paused
func (s *stream) pause(now time.Time) bool {
	if s.paused {
		return false
	}
	s.paused = true
	s.pauseStart = now
	return true
}

// unpause folds the current pause interval into pausedDuration
func (s *stream) unpause(now time.Time) bool {
	if !s.paused {
		return false
	}
	s.paused = false
	if !s.pauseStart.IsZero() {
		s.pausedDuration += now.Sub(s.pauseStart)
		s.pauseStart = time.Time{}
	}
	return true
}

func (s *stream) info(now time.Time) StreamInfo {
	info := StreamInfo{
		ID:               s.id,
		Active:           s.active,
		Paused:           s.paused,
		Ended:            s.ended,
		Volume:           s.volume,
		BaseVolume:       s.baseVolume,
		Elapsed:          s.elapsed(now),
		Duration:         s.duration,
		Metadata:         copyMetadata(s.metadata),
		FadeState:        s.fade.state,
		CrossfadePartner: s.partner,
		Buffered:         s.queue.Len(),
	}
	if s.fade.active() {
		info.FadeProgress = s.fade.progress(now)
	}
	if s.duration > 0 {
		info.Remaining = s.duration - info.Elapsed
		if info.Remaining < 0 {
			info.Remaining = 0
		}
	}
	return info
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
