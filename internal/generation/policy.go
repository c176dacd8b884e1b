package generation

import (
	"context"
	"sync/atomic"
)

// FailurePolicy decides, from the 1-based submission count, whether a
// submission is marked to fail before any simulation runs.
type FailurePolicy func(count int64) bool

// EveryNth fails every nth submission process-wide. n <= 0 never fails.
func EveryNth(n int64) FailurePolicy {
	return func(count int64) bool {
		return n > 0 && count%n == 0
	}
}

// NeverFail is a FailurePolicy that lets every submission through.
func NeverFail(int64) bool { return false }

// Counter hands out submission counts.
type Counter interface {
	Next(ctx context.Context) (int64, error)
}

// LocalCounter is an in-process Counter. Each process has its own count,
// so the failure cadence is per process in a multi-process deployment.
type LocalCounter struct {
	n atomic.Int64
}

// Next increments and returns the count.
func (c *LocalCounter) Next(context.Context) (int64, error) {
	return c.n.Add(1), nil
}

// Value returns the current count without incrementing.
func (c *LocalCounter) Value() int64 {
	return c.n.Load()
}
