package audio

import (
	"hash/fnv"
	"math"
	"time"
)

// roots are pentatonic root frequencies (Hz) a track can be built on.
var roots = []float64{130.81, 146.83, 164.81, 196.00, 220.00}

// progressions are chord roots in semitones above the track root.
var progressions = [][]int{
	{0, 5, 7, 5},
	{0, 9, 5, 7},
	{0, 7, 9, 5},
	{0, 3, 10, 7},
}

// chordShape is a triad with an added octave, in semitones.
var chordShape = []int{0, 4, 7, 12}

const (
	amplitude      = 0.18 * 32767
	crossfadeTime  = 400 * time.Millisecond
	edgeFadeTime   = time.Second
	defaultSynthDT = 30 * time.Second
)

// Synth renders a short chord loop deterministically from a generation id,
// so the same id always yields the same audio.
type Synth struct {
	Duration time.Duration
}

// NewSynth creates a synth producing tracks of the given length.
func NewSynth(d time.Duration) *Synth {
	if d <= 0 {
		d = defaultSynthDT
	}
	return &Synth{Duration: d}
}

// Render returns interleaved stereo PCM for the track identified by id.
func (s *Synth) Render(id string) []int16 {
	h := fnv.New32a()
	h.Write([]byte(id))
	seed := h.Sum32()

	root := roots[seed%uint32(len(roots))]
	prog := progressions[(seed/7)%uint32(len(progressions))]

	totalFrames := int(s.Duration / FrameDuration)
	segFrames := totalFrames / len(prog)
	if segFrames == 0 {
		segFrames = 1
	}
	cfFrames := int(crossfadeTime / FrameDuration)
	if cfFrames > segFrames/2 {
		cfFrames = segFrames / 2
	}

	samples := make([]int16, 0, totalFrames*FrameSamples)
	for f := 0; f < totalFrames; f++ {
		seg := f / segFrames
		if seg >= len(prog) {
			seg = len(prog) - 1
		}
		frame := chordFrame(root, prog[seg], f)

		// Blend into the next chord over the tail of each segment.
		pos := f - seg*segFrames
		if cfStart := segFrames - cfFrames; seg+1 < len(prog) && cfFrames > 0 && pos >= cfStart {
			progress := float64(pos-cfStart) / float64(cfFrames)
			frame = CrossfadeFrames(frame, chordFrame(root, prog[seg+1], f), progress)
		}
		samples = append(samples, frame...)
	}

	FadeEdges(samples, int(edgeFadeTime/FrameDuration)*FrameSamples)
	return samples
}

// chordFrame renders frame f of the chord built semitones above root.
// Phase is derived from the absolute sample index so chords stay continuous.
func chordFrame(root float64, semitones, f int) []int16 {
	base := root * math.Pow(2, float64(semitones)/12)
	frame := make([]int16, FrameSamples)
	for i := 0; i < FrameSize; i++ {
		t := float64(f*FrameSize+i) / SampleRate
		var v float64
		for _, interval := range chordShape {
			freq := base * math.Pow(2, float64(interval)/12)
			v += math.Sin(2 * math.Pi * freq * t)
		}
		sample := clip(v / float64(len(chordShape)) * amplitude)
		for c := 0; c < Channels; c++ {
			frame[i*Channels+c] = sample
		}
	}
	return frame
}
