// Package cancel provides the per-job cooperative cancellation primitive.
// Every suspension point in the orchestration accepts a *Token and either
// polls it or wires its context into the underlying I/O call.
package cancel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrCancelled is returned by every orchestration step once the job's token
// has been triggered. It is never treated as retryable and always wins a race
// with any other outcome.
var ErrCancelled = errors.New("job cancelled")

// Token is a one-shot cancellation flag shared by everything a job does.
// The zero value is not usable; construct with New.
type Token struct {
	ctx       context.Context
	cancelFn  context.CancelFunc
	cancelled atomic.Bool
}

// New creates a token scoped under parent. Cancelling the parent context
// cancels the token's context but does not flip the explicit flag; Err still
// reports cancellation in that case via the derived context.
func New(parent context.Context) *Token {
	ctx, cancelFn := context.WithCancel(parent)
	return &Token{ctx: ctx, cancelFn: cancelFn}
}

// Cancel flips the flag and fires the abort signal. Idempotent and safe to
// call from any goroutine.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
	t.cancelFn()
}

// Cancelled is a cheap, side-effect-free read of the flag.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load() || t.ctx.Err() != nil
}

// Err returns ErrCancelled if the token has been triggered, nil otherwise.
func (t *Token) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Context exposes the abort signal for native cancellation wiring (HTTP
// requests, process waits). It is cancelled the instant Cancel is called.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Done exposes the abort channel for select loops.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Sleep waits for d or until the token is cancelled, whichever comes first.
// On cancellation it returns ErrCancelled early instead of waiting out d.
func (t *Token) Sleep(d time.Duration) error {
	if err := t.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.ctx.Done():
		return ErrCancelled
	case <-timer.C:
		return t.Err()
	}
}

// IsCancellation reports whether err means the job was cancelled, including
// context cancellation surfaced by I/O calls wired to the token.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
