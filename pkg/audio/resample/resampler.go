// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts interleaved int16 frames between rates using linear interpolation
package resample

// Resampler performs linear interpolation to convert between sample rates.
// It carries the last input frame across calls so chunked input stays continuous.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	last       []int16 // previous chunk's final frame
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		last:       make([]int16, channels),
	}
}

// Passthrough reports whether input and output rates match
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// frame returns sample ch of virtual frame idx, where idx -1 is the carried frame
func (r *Resampler) frame(input []int16, idx, ch int) int16 {
	if idx < 0 {
		return r.last[ch]
	}
	return input[idx*r.channels+ch]
}

// Resample converts interleaved input samples into output and returns the
// number of output samples written. Output must hold OutputSamplesNeeded(len(input)).
func (r *Resampler) Resample(input []int16, output []int16) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}
	if r.Passthrough() {
		return copy(output, input[:inputFrames*r.channels])
	}

	// Position is measured from the carried frame (index -1) once primed
	start := 0
	if r.primed {
		start = -1
	}
	outputFrames := len(output) / r.channels
	outIdx := 0

	for outIdx < outputFrames {
		idx := start + int(r.position)
		if idx+1 >= inputFrames {
			break
		}
		frac := r.position - float64(int(r.position))

		for ch := 0; ch < r.channels; ch++ {
			s1 := float64(r.frame(input, idx, ch))
			s2 := float64(r.frame(input, idx+1, ch))
			output[outIdx*r.channels+ch] = int16(s1*(1.0-frac) + s2*frac)
		}

		outIdx++
		r.position += r.ratio
	}

	// Rebase position onto the last input frame, which becomes index -1
	consumed := float64(inputFrames - 1 - start)
	r.position -= consumed
	if r.position < 0 {
		r.position = 0
	}
	copy(r.last, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.primed = true

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.last {
		r.last[i] = 0
	}
}

// OutputSamplesNeeded returns an upper bound on output samples produced from inputSamples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples/r.channels + 1
	outputFrames := int(float64(inputFrames)/r.ratio) + 1
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
