// ABOUTME: Audio fundamentals package providing core PCM types and utilities
// ABOUTME: Defines Format and 16-bit sample helpers shared by the mixer and sinks
// Package audio provides the PCM format description shared by the mixbus packages.
//
// Every stream entering the mixer and every frame leaving it is interleaved
// signed 16-bit little-endian PCM. This package defines:
//   - Format: sample rate and channel count agreed out-of-band
//   - Sample helpers: reading/writing int16 samples in byte frames
//   - Saturating arithmetic used when summing streams
//
// Example:
//
//	format := audio.DefaultFormat()
//	frameBytes := format.BytesFor(20 * time.Millisecond) // 3840
//
//	sample := audio.ReadSample(frame, 0)
//	mixed := audio.Clamp16(int32(sample) + int32(other))
package audio
