// Package audio renders the placeholder tracks served for completed generations.
package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)

	Bitrate = 128000 // opus target bitrate
)

// Frames splits interleaved samples into 20ms frames, zero-padding the last one.
func Frames(samples []int16) [][]int16 {
	n := (len(samples) + FrameSamples - 1) / FrameSamples
	frames := make([][]int16, 0, n)
	for i := 0; i < len(samples); i += FrameSamples {
		end := i + FrameSamples
		if end <= len(samples) {
			frames = append(frames, samples[i:end])
			continue
		}
		last := make([]int16, FrameSamples)
		copy(last, samples[i:])
		frames = append(frames, last)
	}
	return frames
}
