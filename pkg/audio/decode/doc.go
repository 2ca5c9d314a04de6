// ABOUTME: Audio decoder package producing mixer-ready PCM byte streams
// ABOUTME: Provides Decoder interface and MP3, FLAC, WAV, HTTP, ffmpeg and tone sources
// Package decode turns audio files and URLs into PCM byte sources.
//
// Supports: MP3 and FLAC and WAV files, MP3 over HTTP, anything ffmpeg can
// read (HLS, AAC, Opus...) and a generated test tone.
//
// Decoders produce interleaved int16 samples at their native rate. Reader
// wraps a Decoder and converts it into an s16le byte stream at the target
// format, resampling and remapping channels as needed. The result is the
// io.Reader the mixer consumes.
//
// Example:
//
//	src, err := decode.Open("song.flac", audio.DefaultFormat())
//	if err != nil {
//		return err
//	}
//	id, err := m.AddStream(src, mixer.StreamOptions{Volume: mixer.Gain(1.0), CloseSource: true})
package decode
