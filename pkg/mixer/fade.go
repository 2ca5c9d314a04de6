// ABOUTME: Fade and crossfade state machine
// ABOUTME: Eased gain curves recomputed from elapsed time on every tick
package mixer

import (
	"fmt"
	"time"
)

// FadeState is the fade phase a stream is in
type FadeState int

const (
	FadeNone FadeState = iota
	FadingOut
	FadingIn
	CrossfadeOut
	CrossfadeIn
)

var fadeStateNames = map[FadeState]string{
	FadeNone:     "none",
	FadingOut:    "fading_out",
	FadingIn:     "fading_in",
	CrossfadeOut: "crossfade_out",
	CrossfadeIn:  "crossfade_in",
}

func (s FadeState) String() string {
	if name, ok := fadeStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FadeState(%d)", int(s))
}

// MarshalText encodes the state by name
func (s FadeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EaseInOutCubic maps linear progress in [0,1] onto a cubic ease-in-out curve
func EaseInOutCubic(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	q := -2*p + 2
	return 1 - q*q*q/2
}

// fade is the in-flight gain transition of one stream
type fade struct {
	state      FadeState
	start      time.Time
	duration   time.Duration
	from       float64
	to         float64
	onComplete func()
}

func (f *fade) active() bool {
	return f.state != FadeNone
}

// progress returns clamp(elapsed/duration, 0, 1)
func (f *fade) progress(now time.Time) float64 {
	if f.duration <= 0 {
		return 1
	}
	p := float64(now.Sub(f.start)) / float64(f.duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// volumeAt returns the eased gain at now, exactly the target once complete
func (f *fade) volumeAt(now time.Time) float64 {
	p := f.progress(now)
	if p >= 1 {
		return f.to
	}
	return f.from + (f.to-f.from)*EaseInOutCubic(p)
}
