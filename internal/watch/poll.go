package watch

import (
	"context"
	"time"
)

// poll calls fn every interval until stop is closed or ctx is done. The
// first call happens immediately when emitOnBegin is set. Calls never
// overlap: the next interval starts after fn returns.
func poll(ctx context.Context, stop <-chan struct{}, interval time.Duration, emitOnBegin bool, fn func(context.Context)) {
	if !emitOnBegin && !wait(ctx, stop, interval) {
		return
	}
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		fn(ctx)

		if !wait(ctx, stop, interval) {
			return
		}
	}
}

func wait(ctx context.Context, stop <-chan struct{}, interval time.Duration) bool {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
