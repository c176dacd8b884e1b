package audio

import (
	"context"
	"time"
)

// Pace outputs samples as 20ms frames at real-time rate. The returned
// channel is closed after the last frame or when ctx is cancelled.
func Pace(ctx context.Context, samples []int16) <-chan []int16 {
	out := make(chan []int16, 8)

	go func() {
		defer close(out)

		ticker := time.NewTicker(FrameDuration)
		defer ticker.Stop()

		for _, frame := range Frames(samples) {
			if !sendFrame(ctx, ticker, out, frame) {
				return
			}
		}
	}()

	return out
}

// sendFrame waits for the ticker then sends a frame. Returns false on cancel.
func sendFrame(ctx context.Context, ticker *time.Ticker, out chan<- []int16, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
	}

	select {
	case out <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
