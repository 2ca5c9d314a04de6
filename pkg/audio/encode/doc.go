// ABOUTME: Audio encoder package for encoding mixed PCM frames
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode provides audio encoders for mixed output frames.
//
// Supports: PCM (16-bit passthrough and 24-bit widening), Opus
//
// All encoders accept s16le byte frames as produced by the mixer and return
// one encoded packet per call.
//
// Example:
//
//	encoder, err := encode.NewOpus(audio.DefaultFormat(), 128000)
//	packet, err := encoder.Encode(frame)
package encode
