// ABOUTME: Multi-stream PCM mixer package
// ABOUTME: Blends concurrent s16le sources with volume, pause, fade and crossfade control
// Package mixer blends concurrently playing PCM streams into one continuous
// frame stream.
//
// Each stream is an io.Reader of interleaved s16le samples at the mixer's
// format. A pump goroutine per stream buffers the source ahead of playback.
// On every tick the mixer recomputes fade volumes, takes one frame from each
// playing stream, scales it, sums with saturation and writes the result to
// the configured output.Sink. Silence is written when nothing contributes.
//
// Control operations are addressed by the id returned from AddStream.
// Routine operations ignore unknown ids; fades and crossfades return a
// *StateError wrapping ErrNotFound or ErrInvalidState.
//
// Example:
//
//	m := mixer.New(mixer.Config{Sink: sink})
//	a, _ := m.AddStream(first, mixer.StreamOptions{})
//	b, _ := m.AddStream(second, mixer.StreamOptions{StartPaused: true})
//	err := m.CrossfadeStreams(a, b, 3*time.Second)
package mixer
