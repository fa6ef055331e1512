package motion

import (
	"context"
	"time"
)

// Settler waits for the arm to become stable after a command. The controller
// only relies on the order of Settle calls; how long a Settle actually takes
// is up to the implementation.
type Settler interface {
	Settle(ctx context.Context, d time.Duration) error
}

// SettlerFunc adapts a function to the Settler interface.
type SettlerFunc func(ctx context.Context, d time.Duration) error

// Settle calls f(ctx, d).
func (f SettlerFunc) Settle(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSettler waits for d of wall-clock time, returning early with the
// context error on cancellation.
type TimerSettler struct{}

// Settle implements Settler.
func (TimerSettler) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
