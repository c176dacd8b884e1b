package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// CrossfadeFrames blends an outgoing frame with an incoming frame at the given
// progress (0.0 = all outgoing, 1.0 = all incoming). Uses smoothstep curve.
// Both frames must have the same length. Returns the blended frame.
func CrossfadeFrames(outgoing, incoming []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	result := make([]int16, len(outgoing))

	for i := range outgoing {
		out := float64(outgoing[i]) * (1 - gain)
		in := float64(incoming[i]) * gain
		result[i] = clip(out + in)
	}

	return result
}

// FadeEdges applies a smoothstep fade-in over the first n interleaved samples
// and a fade-out over the last n, in place.
func FadeEdges(samples []int16, n int) {
	if n > len(samples)/2 {
		n = len(samples) / 2
	}
	if n <= 0 {
		return
	}
	for i := 0; i < n; i++ {
		gain := Smoothstep(float64(i) / float64(n))
		samples[i] = clip(float64(samples[i]) * gain)
		j := len(samples) - 1 - i
		samples[j] = clip(float64(samples[j]) * gain)
	}
}

func clip(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
