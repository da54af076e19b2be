package yabackoff

import (
	"context"
	"time"
)

// Exponential multiplies the delay by a constant factor after each attempt,
// capping at maxInterval.
//
// Example:
//
//	backoff := yabackoff.NewExponential(100*time.Millisecond, 2, time.Second)
//	fmt.Println(backoff.Next()) // 100ms
//	fmt.Println(backoff.Next()) // 200ms
//	fmt.Println(backoff.Next()) // 400ms
//
// The zero value is usable, package defaults are substituted on first use.
type Exponential struct {
	initialInterval time.Duration
	multiplier      float64
	maxInterval     time.Duration
	currentInterval time.Duration
}

var _ Backoff = (*Exponential)(nil)

// NewExponential creates an exponential back-off. Zero arguments are replaced
// by the package defaults.
func NewExponential(
	initialInterval time.Duration,
	multiplier float64,
	maxInterval time.Duration,
) *Exponential {
	backoff := &Exponential{
		initialInterval: initialInterval,
		multiplier:      multiplier,
		maxInterval:     maxInterval,
		currentInterval: initialInterval,
	}

	backoff.safety()

	return backoff
}

// Reset sets the current interval back to the initial one.
func (e *Exponential) Reset() {
	e.safety()

	e.currentInterval = e.initialInterval
}

// Next returns the current delay and grows the following one.
func (e *Exponential) Next() time.Duration {
	e.safety()

	delay := e.currentInterval

	e.currentInterval = min(time.Duration(float64(e.currentInterval)*e.multiplier), e.maxInterval)

	return delay
}

// Current reports the delay the next call to Next will return.
func (e *Exponential) Current() time.Duration {
	e.safety()

	return e.currentInterval
}

// Wait sleeps for Next().
func (e *Exponential) Wait() {
	time.Sleep(e.Next())
}

// WaitContext sleeps for Next() unless ctx is done first.
func (e *Exponential) WaitContext(ctx context.Context) error {
	timer := time.NewTimer(e.Next())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// safety lazily substitutes defaults so a zero value Exponential works.
func (e *Exponential) safety() {
	if e.initialInterval <= 0 {
		e.initialInterval = DefaultInitialInterval
	}

	if e.currentInterval <= 0 {
		e.currentInterval = e.initialInterval
	}

	if e.maxInterval <= 0 {
		e.maxInterval = DefaultMaxInterval
	}

	if e.multiplier < 1 {
		e.multiplier = DefaultMultiplier
	}
}
