// Package pacing inserts advisory pauses between external calls to stay under
// third-party request quotas. It is not a backpressure mechanism.
package pacing

import (
	"context"
	"time"
)

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// None never pauses; used by tests and one-shot commands
func None(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Recorder is a Sleeper that records requested pauses without waiting
type Recorder struct {
	Pauses []time.Duration
}

func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.Pauses = append(r.Pauses, d)
	return ctx.Err()
}

// Total returns the sum of recorded pauses
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Pauses {
		total += d
	}
	return total
}
