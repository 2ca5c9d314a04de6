// ABOUTME: Byte stream adapter from a Decoder to mixer-ready PCM
// ABOUTME: Resamples and remaps channels into s16le at a target format
package decode

import (
	"io"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/Sendspin/mixbus/pkg/audio/resample"
)

// chunkFrames is how many native frames are decoded per refill
const chunkFrames = 1024

// Reader exposes a Decoder as an io.ReadCloser of s16le bytes at a fixed format
type Reader struct {
	dec       Decoder
	target    audio.Format
	resampler *resample.Resampler
	in        []int16
	mapped    []int16
	out       []int16
	pending   []byte
	err       error
}

// NewReader converts dec to the target format
func NewReader(dec Decoder, target audio.Format) *Reader {
	return &Reader{
		dec:       dec,
		target:    target,
		resampler: resample.New(dec.SampleRate(), target.SampleRate, target.Channels),
		in:        make([]int16, chunkFrames*dec.Channels()),
	}
}

// Format returns the output format
func (r *Reader) Format() audio.Format {
	return r.target
}

// Metadata returns the decoder's title, artist and album
func (r *Reader) Metadata() (string, string, string) {
	return r.dec.Metadata()
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// fill decodes one chunk into pending bytes, recording any terminal error
func (r *Reader) fill() {
	n, err := r.dec.Read(r.in)
	if err != nil {
		r.err = err
	}
	srcChannels := r.dec.Channels()
	frames := n / srcChannels
	if frames == 0 {
		return
	}

	r.mapped = remapChannels(r.in[:frames*srcChannels], srcChannels, r.target.Channels, r.mapped)

	samples := r.mapped
	if !r.resampler.Passthrough() {
		need := r.resampler.OutputSamplesNeeded(len(r.mapped))
		if cap(r.out) < need {
			r.out = make([]int16, need)
		}
		written := r.resampler.Resample(r.mapped, r.out[:need])
		samples = r.out[:written]
	}

	buf := make([]byte, len(samples)*audio.BytesPerSample)
	for i, s := range samples {
		audio.PutSample(buf, i, s)
	}
	r.pending = buf
}

// Close closes the underlying decoder
func (r *Reader) Close() error {
	if r.err == nil {
		r.err = io.ErrClosedPipe
	}
	return r.dec.Close()
}

// remapChannels converts interleaved samples between channel counts.
// Mono is duplicated to every output channel; extra input channels are
// averaged down when the output is mono and dropped otherwise.
func remapChannels(in []int16, from, to int, dst []int16) []int16 {
	frames := len(in) / from
	dst = dst[:0]
	if from == to {
		return append(dst, in...)
	}

	for f := 0; f < frames; f++ {
		frame := in[f*from : (f+1)*from]
		switch {
		case from == 1:
			for ch := 0; ch < to; ch++ {
				dst = append(dst, frame[0])
			}
		case to == 1:
			var sum int32
			for _, s := range frame {
				sum += int32(s)
			}
			dst = append(dst, int16(sum/int32(from)))
		default:
			for ch := 0; ch < to; ch++ {
				if ch < from {
					dst = append(dst, frame[ch])
				} else {
					dst = append(dst, frame[from-1])
				}
			}
		}
	}
	return dst
}
