// Package yabackoff provides back-off strategies for retry loops, such as
// polling a distributed lock until it becomes free.
//
// # Quick start
//
//	backoff := yabackoff.NewExponential(10*time.Millisecond, 2, time.Second)
//	for {
//	    acquired, err := tryLock(ctx)
//	    if err != nil || acquired {
//	        break
//	    }
//	    if err := backoff.WaitContext(ctx); err != nil {
//	        return err // ctx cancelled while waiting
//	    }
//	}
package yabackoff

import (
	"context"
	"time"
)

// Defaults applied when NewExponential receives zero values, or when an
// Exponential is used as a zero value.
const (
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMultiplier      = 1.5
	DefaultMaxInterval     = 60 * time.Second
)

// Backoff is the behaviour shared by all back-off strategies in this package.
// Implementations are not safe for concurrent use, create one per retry loop.
type Backoff interface {
	// Next returns the delay for this attempt and advances the strategy.
	Next() time.Duration

	// Current returns the delay the next call to Next will return.
	Current() time.Duration

	// Wait sleeps for Next().
	Wait()

	// WaitContext sleeps for Next() or until ctx is done, returning ctx.Err()
	// in the latter case.
	WaitContext(ctx context.Context) error

	// Reset puts the strategy back to its initial interval.
	Reset()
}
