// Package window computes the [start, end) fetch window used by time-based
// stream adapters, grounded on MongoDBAPI.get_window from the Python
// reference implementation.
package window

import (
	"context"
	"time"
)

// MovingWindowDelta is the default amount added to the last committed
// cursor so a window never re-requests the record it left off on. Most
// streams use fractional-second cursors and keep this default; a stream
// whose query parameters only accept integer seconds (logs) must override
// it with a whole-number Config.Delta, or the fraction is lost the moment
// the caller truncates start/end to an integer.
const MovingWindowDelta = 0.001

// Config bounds the size of a computed window.
type Config struct {
	// MinLength is the minimum window size, in seconds, below which Compute
	// asks the caller to wait rather than return a degenerate window.
	MinLength time.Duration
	// MaxLength caps how large a single window may be; callers advance in
	// multiple windows rather than requesting one unbounded range.
	MaxLength time.Duration
	// EndOffset is subtracted from "now" before it is used as the
	// candidate window end, accounting for upstream data propagation lag.
	EndOffset time.Duration
	// Delta is added to the last committed cursor to form the window
	// start, so the record the cursor points at is not re-requested.
	// Defaults to MovingWindowDelta; set to 1 for streams whose cursor is
	// quantized to whole seconds.
	Delta float64
}

// DefaultConfig mirrors the Python reference's defaults (1hr max, 1min min,
// no propagation offset).
func DefaultConfig() Config {
	return Config{
		MinLength: time.Minute,
		MaxLength: time.Hour,
		Delta:     MovingWindowDelta,
	}
}

// Compute returns the [start, end) epoch-seconds window to fetch next,
// given the last committed cursor value and the current time. ok is false
// when the window would be smaller than MinLength, meaning the window is
// not yet wide enough to fetch; WaitForWindow uses this to decide whether
// to keep waiting.
func Compute(lastTimeEpoch float64, now time.Time, cfg Config) (start, end float64, ok bool) {
	start = lastTimeEpoch + cfg.Delta
	end = float64(now.Add(-cfg.EndOffset).Unix())

	if cfg.MinLength > 0 && end-start < cfg.MinLength.Seconds() {
		return start, end, false
	}

	if cfg.MaxLength > 0 && end-start > cfg.MaxLength.Seconds() {
		end = start + cfg.MaxLength.Seconds()
	}

	return start, end, true
}

// WaitForWindow blocks until Compute reports a window at least MinLength
// wide, recomputing the candidate end against the current time and
// sleeping MinLength between attempts, mirroring the retry loop in
// MongoDBAPI.get_window. It returns ctx.Err() if ctx is cancelled or its
// deadline passes before a usable window appears, so a caller bounded by a
// runtime.Deadline does not block forever.
func WaitForWindow(ctx context.Context, lastTimeEpoch float64, cfg Config) (float64, float64, error) {
	wait := cfg.MinLength
	if wait <= 0 {
		wait = time.Minute
	}

	for {
		start, end, ok := Compute(lastTimeEpoch, time.Now(), cfg)
		if ok {
			return start, end, nil
		}
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(wait):
		}
	}
}
