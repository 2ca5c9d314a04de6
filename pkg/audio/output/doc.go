// ABOUTME: Audio output package for consuming mixed frames
// ABOUTME: Provides Sink interface plus writer, queue, oto and packet sinks
// Package output provides the sinks the mixer writes frames into.
//
// A Sink receives one fixed-size s16le frame per mixer tick. Available sinks:
//   - WriterSink: any io.Writer (files, pipes, ffmpeg stdin)
//   - FrameQueue: bounded queue a transport drains at its own pace
//   - Oto: local speakers through ebitengine/oto
//   - PacketSink: encodes frames (Opus, PCM) and hands packets to a callback
//   - MultiSink: fan-out to several sinks
//
// Example:
//
//	sink, err := output.NewOto(audio.DefaultFormat())
//	m := mixer.New(mixer.Config{Sink: sink})
package output
