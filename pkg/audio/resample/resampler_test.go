// ABOUTME: Tests for audio resampler
// ABOUTME: Tests linear interpolation resampling between sample rates
package resample

import (
	"testing"
)

func TestNew(t *testing.T) {
	r := New(44100, 48000, 2)

	if r == nil {
		t.Fatal("expected resampler to be created")
	}

	if r.inputRate != 44100 {
		t.Errorf("expected inputRate 44100, got %d", r.inputRate)
	}

	if r.outputRate != 48000 {
		t.Errorf("expected outputRate 48000, got %d", r.outputRate)
	}

	if r.channels != 2 {
		t.Errorf("expected channels 2, got %d", r.channels)
	}

	if r.Passthrough() {
		t.Error("expected 44100->48000 not to be passthrough")
	}
}

func ramp(n int) []int16 {
	input := make([]int16, n)
	for i := range input {
		input[i] = int16((i / 2) * 10)
	}
	return input
}

func TestResampleRatios(t *testing.T) {
	tests := []struct {
		name    string
		inRate  int
		outRate int
	}{
		{"upsampling", 44100, 48000},
		{"downsampling", 48000, 44100},
		{"double", 24000, 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.inRate, tt.outRate, 2)
			input := ramp(2000)
			output := make([]int16, r.OutputSamplesNeeded(len(input)))

			n := r.Resample(input, output)
			if n == 0 {
				t.Fatal("resampler produced no output")
			}
			if n%2 != 0 {
				t.Errorf("expected whole stereo frames, got %d samples", n)
			}

			expected := int(float64(len(input)) * float64(tt.outRate) / float64(tt.inRate))
			if n < expected-10 || n > expected+10 {
				t.Errorf("expected ~%d samples, got %d", expected, n)
			}

			// Ramp input must stay non-decreasing after interpolation
			for i := 2; i < n; i += 2 {
				if output[i] < output[i-2] {
					t.Fatalf("output not monotonic at %d: %d < %d", i, output[i], output[i-2])
				}
			}
		})
	}
}

func TestResamplePassthrough(t *testing.T) {
	r := New(48000, 48000, 2)
	input := []int16{1, 2, 3, 4, 5, 6}
	output := make([]int16, len(input))

	n := r.Resample(input, output)
	if n != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), n)
	}
	for i := range input {
		if output[i] != input[i] {
			t.Errorf("sample %d: expected %d, got %d", i, input[i], output[i])
		}
	}
}

func TestResampleChunkedContinuity(t *testing.T) {
	// Feeding the same signal in two chunks must not reset interpolation
	whole := New(24000, 48000, 1)
	chunked := New(24000, 48000, 1)

	input := make([]int16, 100)
	for i := range input {
		input[i] = int16(i * 100)
	}

	outWhole := make([]int16, whole.OutputSamplesNeeded(len(input)))
	nWhole := whole.Resample(input, outWhole)

	out1 := make([]int16, chunked.OutputSamplesNeeded(50))
	n1 := chunked.Resample(input[:50], out1)
	out2 := make([]int16, chunked.OutputSamplesNeeded(50))
	n2 := chunked.Resample(input[50:], out2)

	combined := append(out1[:n1], out2[:n2]...)
	if len(combined) != nWhole {
		t.Fatalf("expected %d samples across chunks, got %d", nWhole, len(combined))
	}
	for i := range combined {
		if combined[i] != outWhole[i] {
			t.Fatalf("sample %d differs: chunked %d, whole %d", i, combined[i], outWhole[i])
		}
	}
}

func TestReset(t *testing.T) {
	r := New(44100, 48000, 2)
	input := ramp(200)
	output := make([]int16, r.OutputSamplesNeeded(len(input)))
	r.Resample(input, output)

	r.Reset()

	if r.position != 0 {
		t.Errorf("expected position 0 after reset, got %f", r.position)
	}
	if r.primed {
		t.Error("expected resampler to be unprimed after reset")
	}
}
