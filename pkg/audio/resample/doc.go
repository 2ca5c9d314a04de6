// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation on interleaved int16 samples. State is carried
// between calls so a source can be converted chunk by chunk.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := make([]int16, r.OutputSamplesNeeded(len(in)))
//	n := r.Resample(in, out)
package resample
